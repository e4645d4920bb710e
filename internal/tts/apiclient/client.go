// Package apiclient 通过 API 服务器的 /api/elevenlabs/tts 合成语音，
// 导览终端不直接持有 ElevenLabs 的 key
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

const ttsPath = "/api/elevenlabs/tts"

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("apiclient: marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ttsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("apiclient: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, data)
	}
	if err := tts.CheckAudio(data); err != nil {
		return nil, err
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = audio.MIMEMpeg
	}
	logrus.Debugf("apiclient: received %d bytes (%s)", len(data), mimeType)
	return audio.NewClip(data, mimeType), nil
}

// 服务端错误体为 {statusCode, statusMessage}
func decodeError(status int, data []byte) error {
	var payload struct {
		StatusCode    int    `json:"statusCode"`
		StatusMessage string `json:"statusMessage"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.StatusMessage == "" {
		return &tts.StatusError{StatusCode: status, Message: http.StatusText(status)}
	}
	if payload.StatusCode == 0 {
		payload.StatusCode = status
	}
	return &tts.StatusError{StatusCode: payload.StatusCode, Message: payload.StatusMessage}
}
