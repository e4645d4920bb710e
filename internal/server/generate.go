package server

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

type generateBody struct {
	GuideTextID     *int64   `json:"guide_text_id"`
	VoiceID         string   `json:"voice_id"`
	ModelID         string   `json:"model_id"`
	OutputFormat    string   `json:"output_format"`
	Stability       *float64 `json:"stability"`
	SimilarityBoost *float64 `json:"similarity_boost"`
	Style           *float64 `json:"style"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost"`
	AudioVersion    int      `json:"audio_version"`
}

func (b *generateBody) settings() tts.VoiceSettings {
	sb := settingsBody{
		Stability:         b.Stability,
		SimilarityBoostSC: b.SimilarityBoost,
		Style:             b.Style,
		SpeakerBoostSC:    b.UseSpeakerBoost,
	}
	return *sb.settings()
}

// generateAudio POST /api/generate-audio
// 用人设的音色合成导览文本，上传到存储并写入 guide_audios
func (s *Server) generateAudio(c *fiber.Ctx) error {
	if s.deps.Store == nil || s.deps.Objects == nil || s.deps.Provider == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database, storage or speech synthesis is not configured")
	}

	var body generateBody
	if err := c.BodyParser(&body); err != nil || body.GuideTextID == nil {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Missing or invalid guide_text_id (must be a number).")
	}
	ctx := c.UserContext()

	text, err := s.deps.Store.GuideTextWithPersona(ctx, *body.GuideTextID)
	if err != nil {
		return s.storeFail(c, *body.GuideTextID, err)
	}
	persona := text.Persona

	voiceID := body.VoiceID
	if voiceID == "" {
		voiceID = persona.VoiceID()
	}
	if voiceID == "" {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Voice ID is required either in request body or set on the Persona.")
	}
	modelID := body.ModelID
	if modelID == "" {
		modelID = s.deps.DefaultModelID
	}
	format := body.OutputFormat
	if format == "" {
		format = s.deps.OutputFormat
	}
	settings := body.settings()
	version := body.AudioVersion
	if version <= 0 {
		version = 1
	}

	log := logrus.WithFields(logrus.Fields{
		"guide_text_id": text.GuideTextID,
		"persona":       persona.Name,
		"voice":         voiceID,
	})
	log.Info("server: generating guide audio")

	clip, err := s.deps.Provider.Synthesize(ctx, tts.Request{
		Text:         text.Transcript,
		VoiceID:      voiceID,
		ModelID:      modelID,
		Settings:     &settings,
		OutputFormat: format,
	})
	if err != nil {
		log.Warnf("server: synthesis failed: %v", err)
		return fail(c, tts.StatusCode(err), "ElevenLabs TTS failed: "+errorMessage(err))
	}
	defer clip.Release()

	data, err := clip.Bytes()
	if err == nil {
		err = tts.CheckAudio(data)
	}
	if err != nil {
		log.Warnf("server: synthesis returned unusable audio: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Speech generation failed: "+err.Error())
	}

	ext := strings.SplitN(format, "_", 2)[0]
	if ext == "" {
		ext = "mp3"
	}
	key := fmt.Sprintf("public/%d/%d_p%d_v%d_%d.%s",
		persona.PersonaID, text.GuideTextID, persona.PersonaID, version, s.deps.Now().UnixMilli(), ext)

	record := store.NewGuideAudio(text, key, version)
	// 时长算不出来不影响入库
	if d, err := audio.Duration(clip); err == nil {
		secs := int(d.Seconds() + 0.5)
		record.DurationSeconds = &secs
	} else {
		log.Warnf("server: cannot compute duration: %v", err)
	}
	record.Metadata = map[string]any{
		"elevenlabs": map[string]any{
			"voiceId":                     voiceID,
			"modelId":                     modelID,
			"outputFormat":                format,
			"voiceSettings":               settings,
			"requested_stability":         body.Stability,
			"requested_similarity_boost":  body.SimilarityBoost,
			"requested_style":             body.Style,
			"requested_use_speaker_boost": body.UseSpeakerBoost,
		},
	}

	return s.uploadAndRecord(c, key, append([]byte(nil), data...), "audio/"+ext, record,
		"Audio generated, uploaded, and record created successfully.")
}
