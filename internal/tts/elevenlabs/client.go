package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

const (
	DefaultBaseURL      = "https://api.elevenlabs.io/v1"
	DefaultOutputFormat = "mp3_44100_128"
)

var ErrMissingAPIKey = errors.New("elevenlabs: api key not configured")

type Config struct {
	APIKey         string
	BaseURL        string
	DefaultVoiceID string
	DefaultModelID string
	OutputFormat   string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Client ElevenLabs HTTP 客户端，所有请求都经过熔断器
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.DefaultModelID == "" {
		cfg.DefaultModelID = tts.ModelMultilingual
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "elevenlabs",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		// 4xx 是调用方的问题，不计入失败
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *tts.StatusError
			return errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.Warnf("elevenlabs: circuit breaker %s -> %s", from, to)
		},
	})

	return &Client{cfg: cfg, http: hc, breaker: breaker}
}

// Synthesize 实现 tts.Provider
func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = c.cfg.DefaultVoiceID
	}
	if voiceID == "" {
		return nil, tts.ErrNoVoice
	}
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.cfg.DefaultModelID
	}
	format := req.OutputFormat
	if format == "" {
		format = c.cfg.OutputFormat
	}

	body := NewRequestBuilder().
		WithText(req.Text).
		WithVoice(voiceID).
		WithModel(modelID).
		WithOutputFormat(format).
		WithSettings(req.Settings).
		Build()

	data, err := c.TextToSpeech(ctx, body)
	if err != nil {
		return nil, err
	}
	return audio.NewClip(data, audio.MIMEMpeg), nil
}

// TextToSpeech 返回原始音频字节
func (c *Client) TextToSpeech(ctx context.Context, req *Request) ([]byte, error) {
	q := url.Values{}
	if req.outputFormat != "" {
		q.Set("output_format", req.outputFormat)
	}
	endpoint := "/text-to-speech/" + url.PathEscape(req.voiceID)

	log := logrus.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"voice":      req.voiceID,
		"model":      req.ModelID,
		"text_len":   len([]rune(req.Text)),
	})
	log.Debug("elevenlabs: text-to-speech request")

	start := time.Now()
	data, err := c.do(ctx, http.MethodPost, endpoint, q, req, "audio/mpeg")
	if err != nil {
		log.WithError(err).Warn("elevenlabs: text-to-speech failed")
		return nil, err
	}
	if err := tts.CheckAudio(data); err != nil {
		log.Warnf("elevenlabs: audio payload too small (%d bytes)", len(data))
		return nil, err
	}

	log.WithField("bytes", len(data)).Infof("elevenlabs: synthesized in %v", time.Since(start))
	return data, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, q url.Values, body any, accept string) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, &tts.StatusError{StatusCode: http.StatusInternalServerError, Message: ErrMissingAPIKey.Error()}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, endpoint, q, body, accept)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &tts.StatusError{StatusCode: http.StatusServiceUnavailable, Message: "elevenlabs temporarily unavailable"}
	}
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, q url.Values, body any, accept string) ([]byte, error) {
	u := c.cfg.BaseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Accept", accept)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &tts.StatusError{
			StatusCode: http.StatusInternalServerError,
			Message:    "elevenlabs request failed: " + err.Error(),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &tts.StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, data),
		}
	}
	return data, nil
}

// errorMessage 从错误响应中取出可读的信息
// 依次尝试 detail.message、detail、error，最后退回原始文本
func errorMessage(status int, body []byte) string {
	fallback := fmt.Sprintf("ElevenLabs API error (%d)", status)

	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if text := strings.TrimSpace(string(body)); text != "" {
			return text
		}
		return fallback
	}

	if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Detail, &detail) == nil && detail.Message != "" {
			return "ElevenLabs API error: " + detail.Message
		}
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return "ElevenLabs API error: " + s
		}
		return "ElevenLabs API error: " + string(payload.Detail)
	}
	if len(payload.Error) > 0 && string(payload.Error) != "null" {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil {
			return "ElevenLabs API error: " + s
		}
		return "ElevenLabs API error: " + string(payload.Error)
	}
	return fallback
}
