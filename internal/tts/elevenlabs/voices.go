package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

type apiVoice struct {
	VoiceID                 string            `json:"voice_id"`
	Name                    string            `json:"name"`
	Category                string            `json:"category"`
	Description             string            `json:"description"`
	Labels                  map[string]string `json:"labels"`
	PreviewURL              string            `json:"preview_url"`
	HighQualityBaseModelIDs []string          `json:"high_quality_base_model_ids"`
	Settings                *apiVoiceSettings `json:"settings"`
}

type apiVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost *bool   `json:"use_speaker_boost"`
}

// Voices 从 /voices 拉取可用音色并转换成 VoiceProfile
func (c *Client) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	data, err := c.do(ctx, http.MethodGet, "/voices", nil, nil, "application/json")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Voices []apiVoice `json:"voices"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode voices: %w", err)
	}
	if resp.Voices == nil {
		return nil, fmt.Errorf("elevenlabs: invalid voices response")
	}

	profiles := make([]tts.VoiceProfile, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		profiles = append(profiles, v.profile())
	}
	return profiles, nil
}

func (v apiVoice) profile() tts.VoiceProfile {
	p := tts.VoiceProfile{
		ID:          v.VoiceID,
		Name:        v.Name,
		Description: v.Description,
		PreviewURL:  v.PreviewURL,
		Language:    v.Labels["language"],
		Gender:      v.Labels["gender"],
		ModelID:     tts.ModelMultilingual,
		Settings:    tts.DefaultVoiceSettings(),
	}
	if p.Gender == "" {
		p.Gender = "neutral"
	}
	if len(v.HighQualityBaseModelIDs) > 0 {
		p.ModelID = v.HighQualityBaseModelIDs[0]
	}

	keys := make([]string, 0, len(v.Labels))
	for k := range v.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Tags = append(p.Tags, v.Labels[k])
	}

	if s := v.Settings; s != nil {
		p.Settings = tts.VoiceSettings{
			Stability:       s.Stability,
			SimilarityBoost: s.SimilarityBoost,
			Style:           s.Style,
			SpeakerBoost:    s.UseSpeakerBoost == nil || *s.UseSpeakerBoost,
		}
	}
	return p
}
