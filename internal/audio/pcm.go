package audio

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/gopxl/beep"
)

// PCMStreamer 把 16bit little-endian PCM 数据转换成 beep.Streamer
type PCMStreamer struct {
	format beep.Format

	mu     sync.Mutex
	data   []byte
	pos    int // 已播放的字节数
	closed bool
}

func NewPCMStreamer(data []byte, sampleRate beep.SampleRate, channels int) *PCMStreamer {
	if channels <= 0 {
		channels = 1
	}
	return &PCMStreamer{
		format: beep.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
			Precision:   2,
		},
		data: data,
	}
}

func (s *PCMStreamer) Format() beep.Format { return s.format }

func (s *PCMStreamer) Stream(samples [][2]float64) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, false
	}

	bytesPerSample := s.format.NumChannels * s.format.Precision
	remaining := (len(s.data) - s.pos) / bytesPerSample
	if remaining <= 0 {
		return 0, false
	}

	n := len(samples)
	if n > remaining {
		n = remaining
	}

	for i := 0; i < n; i++ {
		offset := s.pos + i*bytesPerSample
		if s.format.NumChannels == 1 {
			v := pcm16ToFloat(s.data[offset:])
			samples[i][0] = v
			samples[i][1] = v
		} else {
			samples[i][0] = pcm16ToFloat(s.data[offset:])
			samples[i][1] = pcm16ToFloat(s.data[offset+2:])
		}
	}
	s.pos += n * bytesPerSample

	return n, true
}

func (s *PCMStreamer) Err() error { return nil }

// Close 之后 Stream 返回 (0, false)
func (s *PCMStreamer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

// Progress 返回已播放时长和总时长
func (s *PCMStreamer) Progress() (current, total time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bytesPerSecond := int(s.format.SampleRate) * s.format.NumChannels * s.format.Precision
	if bytesPerSecond == 0 {
		return 0, 0
	}
	current = time.Duration(s.pos) * time.Second / time.Duration(bytesPerSecond)
	total = time.Duration(len(s.data)) * time.Second / time.Duration(bytesPerSecond)
	return current, total
}

func pcm16ToFloat(b []byte) float64 {
	if len(b) < 2 {
		return 0
	}
	v := int16(binary.LittleEndian.Uint16(b))
	return float64(v) / 32768.0
}
