package server

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/metrics"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

// settingsBody 同时接受 camelCase 和 ElevenLabs 原生的 snake_case
type settingsBody struct {
	Stability         *float64 `json:"stability"`
	SimilarityBoost   *float64 `json:"similarityBoost"`
	SimilarityBoostSC *float64 `json:"similarity_boost"`
	Style             *float64 `json:"style"`
	SpeakerBoost      *bool    `json:"speakerBoost"`
	SpeakerBoostSC    *bool    `json:"use_speaker_boost"`
}

func (b *settingsBody) settings() *tts.VoiceSettings {
	if b == nil {
		return nil
	}
	s := tts.DefaultVoiceSettings()
	if b.Stability != nil {
		s.Stability = *b.Stability
	}
	if v := firstFloat(b.SimilarityBoost, b.SimilarityBoostSC); v != nil {
		s.SimilarityBoost = *v
	}
	if b.Style != nil {
		s.Style = *b.Style
	}
	if v := firstBool(b.SpeakerBoost, b.SpeakerBoostSC); v != nil {
		s.SpeakerBoost = *v
	}
	return &s
}

type ttsBody struct {
	Text          string        `json:"text"`
	VoiceID       string        `json:"voiceId"`
	ModelID       string        `json:"modelId"`
	OutputFormat  string        `json:"outputFormat"`
	VoiceSettings *settingsBody `json:"voiceSettings"`
}

// textToSpeech POST /api/elevenlabs/tts
func (s *Server) textToSpeech(c *fiber.Ctx) error {
	if s.deps.Provider == nil {
		return s.ttsFail(c, fiber.StatusServiceUnavailable, "Speech synthesis is not configured")
	}

	var body ttsBody
	if err := c.BodyParser(&body); err != nil {
		return s.ttsFail(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(body.Text) == "" {
		return s.ttsFail(c, fiber.StatusBadRequest, "Missing required parameter: text")
	}

	req := tts.Request{
		Text:         body.Text,
		VoiceID:      body.VoiceID,
		ModelID:      body.ModelID,
		Settings:     body.VoiceSettings.settings(),
		OutputFormat: body.OutputFormat,
	}
	if req.VoiceID == "" {
		if v, ok := s.deps.Voices.Default(); ok {
			req.VoiceID = v.ID
		}
	}
	if req.ModelID == "" {
		req.ModelID = s.deps.DefaultModelID
	}

	log := logrus.WithFields(logrus.Fields{
		"voice": req.VoiceID,
		"model": req.ModelID,
		"chars": len([]rune(req.Text)),
	})

	clip, err := s.deps.Provider.Synthesize(c.UserContext(), req)
	if err != nil {
		log.Warnf("server: tts failed: %v", err)
		return s.ttsFail(c, tts.StatusCode(err), "Speech generation failed: "+errorMessage(err))
	}
	defer clip.Release()

	data, err := clip.Bytes()
	if err == nil {
		err = tts.CheckAudio(data)
	}
	if err != nil {
		log.Warnf("server: tts returned %d bytes", clip.Len())
		return s.ttsFail(c, fiber.StatusInternalServerError, "Speech generation failed: empty or invalid audio response")
	}

	// Send 之前复制一份，clip 会被释放
	out := append([]byte(nil), data...)

	metrics.TTSRequestsTotal.WithLabelValues("200").Inc()
	metrics.TTSBytesTotal.Add(float64(len(out)))
	log.Infof("server: tts generated %d bytes", len(out))

	c.Set(fiber.HeaderContentType, clip.MIME())
	c.Set(fiber.HeaderContentLength, strconv.Itoa(len(out)))
	c.Set(fiber.HeaderCacheControl, "no-cache, no-store, must-revalidate")
	return c.Status(fiber.StatusOK).Send(out)
}

func (s *Server) ttsFail(c *fiber.Ctx, code int, msg string) error {
	metrics.TTSRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	return fail(c, code, msg)
}

// voices GET /api/elevenlabs/voices，?refresh=true 时先从合成服务同步
func (s *Server) voices(c *fiber.Ctx) error {
	if c.QueryBool("refresh") && s.deps.VoiceSource != nil {
		profiles, err := s.deps.VoiceSource.Voices(c.UserContext())
		if err != nil {
			code := tts.StatusCode(err)
			msg := "Failed to fetch voices: " + errorMessage(err)
			if code == fiber.StatusUnauthorized {
				msg = "Invalid ElevenLabs API key"
			}
			return fail(c, code, msg)
		}
		s.deps.Voices.Load(profiles, false)
		logrus.Infof("server: refreshed %d voices", len(profiles))
	}

	voices := s.deps.Voices.All()
	if lang := c.Query("language"); lang != "" {
		voices = s.deps.Voices.FindByLanguage(lang)
	}
	return c.JSON(fiber.Map{"success": true, "voices": voices})
}

func errorMessage(err error) string {
	var se *tts.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

func firstFloat(vs ...*float64) *float64 {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstBool(vs ...*bool) *bool {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}
