package audio

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"strconv"
	"sync"
)

const (
	MIMEMpeg = "audio/mpeg"
	MIMEPCM  = "audio/pcm"
)

var ErrClipReleased = errors.New("audio: clip released")

// Clip 一段合成好的音频，由播放会话独占
// 会话结束时调用 Release 释放数据（相当于浏览器里的 revokeObjectURL）
type Clip struct {
	mu       sync.Mutex
	data     []byte
	mimeType string
	released bool
}

func NewClip(data []byte, mimeType string) *Clip {
	if mimeType == "" {
		mimeType = MIMEMpeg
	}
	return &Clip{data: data, mimeType: mimeType}
}

func (c *Clip) MIME() string { return c.mimeType }

func (c *Clip) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Bytes 返回底层数据，释放后返回 ErrClipReleased
func (c *Clip) Bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return nil, ErrClipReleased
	}
	return c.data, nil
}

func (c *Clip) Reader() (io.ReadCloser, error) {
	data, err := c.Bytes()
	if err != nil {
		return nil, err
	}
	return clipReader{bytes.NewReader(data)}, nil
}

// clipReader 保留 Seek，mp3 解码器靠它计算总长度
type clipReader struct {
	*bytes.Reader
}

func (clipReader) Close() error { return nil }

// Release 释放音频数据，可以多次调用，只有第一次返回 true
func (c *Clip) Release() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return false
	}
	c.released = true
	c.data = nil
	return true
}

func (c *Clip) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

// PCMFormat 解析 "audio/pcm;rate=16000;channels=1" 形式的 MIME 参数
func PCMFormat(mimeType string) (sampleRate, channels int, ok bool) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil || mediaType != MIMEPCM {
		return 0, 0, false
	}
	sampleRate, channels = 16000, 1
	if v, err := strconv.Atoi(params["rate"]); err == nil && v > 0 {
		sampleRate = v
	}
	if v, err := strconv.Atoi(params["channels"]); err == nil && v > 0 {
		channels = v
	}
	return sampleRate, channels, true
}
