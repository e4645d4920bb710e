package tts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
)

// MinAudioBytes 小于这个长度的合成结果视为无效音频
const MinAudioBytes = 100

var (
	ErrEmptyText       = errors.New("tts: text is required")
	ErrInvalidSettings = errors.New("tts: voice settings out of range")
	ErrAudioTooSmall   = errors.New("tts: audio payload too small")
	ErrNoVoice         = errors.New("tts: no voice configured")
)

// Provider 语音合成服务
type Provider interface {
	Synthesize(ctx context.Context, req Request) (*audio.Clip, error)
}

type VoiceSettings struct {
	Stability       float64 `json:"stability" mapstructure:"stability"`
	SimilarityBoost float64 `json:"similarityBoost" mapstructure:"similarity_boost"`
	Style           float64 `json:"style,omitempty" mapstructure:"style"`
	SpeakerBoost    bool    `json:"speakerBoost,omitempty" mapstructure:"speaker_boost"`
}

// DefaultVoiceSettings 未指定时使用的调音参数
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.75,
		Style:           0,
		SpeakerBoost:    true,
	}
}

func (s VoiceSettings) Validate() error {
	check := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidSettings, name, v)
		}
		return nil
	}
	if err := check("stability", s.Stability); err != nil {
		return err
	}
	if err := check("similarityBoost", s.SimilarityBoost); err != nil {
		return err
	}
	return check("style", s.Style)
}

type Request struct {
	Text     string         `json:"text"`
	VoiceID  string         `json:"voiceId,omitempty"`
	ModelID  string         `json:"modelId,omitempty"`
	Settings *VoiceSettings `json:"voiceSettings,omitempty"`
	// OutputFormat 例如 mp3_44100_128，为空时由 provider 决定
	OutputFormat string `json:"outputFormat,omitempty"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyText
	}
	if r.Settings != nil {
		return r.Settings.Validate()
	}
	return nil
}

// CacheKey 相同的声音、模型、参数和文本得到相同的 key
func (r Request) CacheKey() string {
	h := sha256.New()
	h.Write([]byte(r.VoiceID))
	h.Write([]byte{0})
	h.Write([]byte(r.ModelID))
	h.Write([]byte{0})
	h.Write([]byte(r.OutputFormat))
	h.Write([]byte{0})
	if s := r.Settings; s != nil {
		fmt.Fprintf(h, "%.3f|%.3f|%.3f|%t", s.Stability, s.SimilarityBoost, s.Style, s.SpeakerBoost)
	}
	h.Write([]byte{0})
	h.Write([]byte(r.Text))
	return "tts:" + hex.EncodeToString(h.Sum(nil))
}

// StatusError 合成服务返回的 HTTP 错误
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return "tts: " + strconv.Itoa(e.StatusCode) + " " + e.Message
}

// StatusCode 取出错误对应的 HTTP 状态码，非 StatusError 返回 500
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	switch {
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrInvalidSettings):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// CheckAudio 校验合成结果
func CheckAudio(data []byte) error {
	if len(data) < MinAudioBytes {
		return fmt.Errorf("%w: %d bytes", ErrAudioTooSmall, len(data))
	}
	return nil
}
