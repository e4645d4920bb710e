package audio

import (
	"errors"
	"time"
)

var ErrUnknownDuration = errors.New("audio: unknown duration")

// Duration 解码 clip 计算播放时长
func Duration(clip *Clip) (time.Duration, error) {
	stream, format, err := decode(clip)
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	n := stream.Len()
	if n <= 0 {
		return 0, ErrUnknownDuration
	}
	return format.SampleRate.D(n), nil
}
