package elevenlabs

import "github.com/ovenzeze/hugo-tour-guide/internal/tts"

// Request 发送给 /text-to-speech/{voice_id} 的请求体
type Request struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id,omitempty"`
	VoiceSettings *VoiceSettings `json:"voice_settings,omitempty"`

	voiceID      string
	outputFormat string
}

type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type RequestBuilder struct {
	req Request
}

func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{}
}

func (b *RequestBuilder) WithText(text string) *RequestBuilder {
	b.req.Text = text
	return b
}

func (b *RequestBuilder) WithVoice(voiceID string) *RequestBuilder {
	b.req.voiceID = voiceID
	return b
}

func (b *RequestBuilder) WithModel(modelID string) *RequestBuilder {
	b.req.ModelID = modelID
	return b
}

func (b *RequestBuilder) WithOutputFormat(format string) *RequestBuilder {
	b.req.outputFormat = format
	return b
}

// WithSettings 只有提供了参数才会带上 voice_settings
func (b *RequestBuilder) WithSettings(s *tts.VoiceSettings) *RequestBuilder {
	if s == nil {
		b.req.VoiceSettings = nil
		return b
	}
	b.req.VoiceSettings = &VoiceSettings{
		Stability:       s.Stability,
		SimilarityBoost: s.SimilarityBoost,
		Style:           s.Style,
		UseSpeakerBoost: s.SpeakerBoost,
	}
	return b
}

func (b *RequestBuilder) Build() *Request {
	return &b.req
}
