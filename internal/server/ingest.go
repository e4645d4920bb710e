package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/metrics"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
)

type ingestBody struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ingest POST /api/ingest
func (s *Server) ingest(c *fiber.Ctx) error {
	if s.deps.Store == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database is not configured")
	}

	var body ingestBody
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.Type == "" || len(body.Data) == 0 {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Missing type or data in request body.")
	}

	record, err := s.deps.Store.Insert(c.UserContext(), body.Type, body.Data)
	if err != nil {
		var insertErr *store.InsertError
		switch {
		case errors.Is(err, store.ErrUnknownEntity):
			metrics.IngestTotal.WithLabelValues("invalid", "400").Inc()
			return fail(c, fiber.StatusBadRequest, "Bad Request: Invalid type specified. Must be 'museum', 'gallery', or 'object'.")
		case errors.Is(err, store.ErrMissingField), errors.Is(err, store.ErrInvalidData):
			metrics.IngestTotal.WithLabelValues(body.Type, "400").Inc()
			return fail(c, fiber.StatusBadRequest, "Bad Request: "+err.Error())
		case errors.As(err, &insertErr):
			metrics.IngestTotal.WithLabelValues(body.Type, "500").Inc()
			return fail(c, fiber.StatusInternalServerError, insertErr.Error())
		}
		metrics.IngestTotal.WithLabelValues(body.Type, "500").Inc()
		logrus.Errorf("server: ingest %s: %v", body.Type, err)
		return fail(c, fiber.StatusInternalServerError, "Internal Server Error during data ingestion.")
	}

	metrics.IngestTotal.WithLabelValues(body.Type, "201").Inc()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"type":         body.Type,
		"insertedData": record,
	})
}

// ingestAudio POST /api/ingest-audio，multipart 表单上传录好的讲解音频
func (s *Server) ingestAudio(c *fiber.Ctx) error {
	if s.deps.Store == nil || s.deps.Objects == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Database or storage is not configured")
	}

	fh, err := c.FormFile("audioFile")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Missing or invalid audio file (must be name=audioFile and audio/* type).")
	}
	contentType := fh.Header.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, "audio/") {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Missing or invalid audio file (must be name=audioFile and audio/* type).")
	}

	idStr := c.FormValue("guide_text_id")
	if idStr == "" {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Missing guide_text_id field.")
	}
	textID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Bad Request: Invalid guide_text_id format (must be an integer).")
	}

	version := 1
	if v := c.FormValue("audio_version"); v != "" {
		if version, err = strconv.Atoi(v); err != nil {
			return fail(c, fiber.StatusBadRequest, "Bad Request: Invalid audio_version format (must be an integer).")
		}
	}
	var duration *int
	if v := c.FormValue("duration_seconds"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "Bad Request: Invalid duration_seconds format (must be an integer).")
		}
		duration = &d
	}
	var meta map[string]any
	if v := c.FormValue("generation_metadata"); v != "" {
		if err := json.Unmarshal([]byte(v), &meta); err != nil {
			return fail(c, fiber.StatusBadRequest, "Bad Request: Invalid generation_metadata format (must be valid JSON).")
		}
	}

	ctx := c.UserContext()
	text, err := s.deps.Store.GuideText(ctx, textID)
	if err != nil {
		return s.storeFail(c, textID, err)
	}

	f, err := fh.Open()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Bad Request: cannot read audio file.")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "Bad Request: cannot read audio file.")
	}

	ext := strings.TrimPrefix(path.Ext(fh.Filename), ".")
	if ext == "" {
		ext = "mp3"
	}
	key := fmt.Sprintf("public/%d/%d_v%d_%d.%s", text.PersonaID, text.GuideTextID, version, s.deps.Now().UnixMilli(), ext)

	record := store.NewGuideAudio(text, key, version)
	record.DurationSeconds = duration
	record.Metadata = meta
	return s.uploadAndRecord(c, key, data, contentType, record, "Audio file uploaded and record created successfully.")
}

// uploadAndRecord 上传音频并写入 guide_audios，写库失败时删除已上传的文件
func (s *Server) uploadAndRecord(c *fiber.Ctx, key string, data []byte, contentType string, record *store.GuideAudio, message string) error {
	ctx := c.UserContext()
	log := logrus.WithFields(logrus.Fields{"bucket": s.deps.Objects.Bucket(), "key": key})

	uploaded, err := s.deps.Objects.Upload(ctx, key, data, contentType)
	if err != nil {
		log.Errorf("server: upload: %v", err)
		return fail(c, fiber.StatusInternalServerError, "Storage upload failed: "+err.Error())
	}
	record.AudioURL = uploaded

	if err := s.deps.Store.InsertGuideAudio(ctx, record); err != nil {
		log.Warnf("server: insert guide audio failed, removing upload: %v", err)
		if rmErr := s.deps.Objects.Remove(ctx, uploaded); rmErr != nil {
			log.Errorf("server: cleanup %s: %v", uploaded, rmErr)
		}
		return fail(c, fiber.StatusInternalServerError, "Database insert failed into guide_audios: "+err.Error())
	}

	log.Infof("server: guide audio %d recorded", record.AudioGuideID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":     true,
		"message":     message,
		"audioRecord": record,
	})
}

func (s *Server) storeFail(c *fiber.Ctx, textID int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fail(c, fiber.StatusNotFound, fmt.Sprintf("Not Found: %v", err))
	}
	logrus.Errorf("server: guide text %d: %v", textID, err)
	return fail(c, fiber.StatusInternalServerError, "Database error fetching data: "+err.Error())
}
