package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/ovenzeze/hugo-tour-guide/internal/cache"
	"github.com/ovenzeze/hugo-tour-guide/internal/config"
	"github.com/ovenzeze/hugo-tour-guide/internal/storage"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

var fixedNow = time.UnixMilli(1700000000000)

type testEnv struct {
	srv      *Server
	provider *fakeProvider
	store    *fakeStore
	objects  *fakeObjects
	voices   *fakeVoiceSource
}

func newTestEnv() *testEnv {
	voice := "persona-voice"
	museum := int64(1)
	env := &testEnv{
		provider: &fakeProvider{size: 2048},
		store: &fakeStore{texts: map[int64]*store.GuideText{
			9: {
				GuideTextID: 9, PersonaID: 3, Language: "zh", Transcript: "欢迎来到青铜器展厅。", MuseumID: &museum,
				Persona: &store.Persona{PersonaID: 3, Name: "Curator", VoiceModelIdentifier: &voice},
			},
			10: {GuideTextID: 10, PersonaID: 4, Language: "en", Transcript: "No persona.",
				Persona: &store.Persona{PersonaID: 4, Name: "Silent"}},
			11: {GuideTextID: 11, PersonaID: 5, Language: "en", Transcript: "Orphan."},
		}},
		objects: newFakeObjects(),
		voices:  &fakeVoiceSource{},
	}
	env.srv = New(config.HTTPConfig{}, Deps{
		Provider:    env.provider,
		VoiceSource: env.voices,
		Store:       env.store,
		Objects:     env.objects,
		Now:         func() time.Time { return fixedNow },
	})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(t, req)
}

func (e *testEnv) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeError(t *testing.T, data []byte) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(data, &e); err != nil {
		t.Fatalf("error body %q: %v", data, err)
	}
	return e
}

func TestTextToSpeech(t *testing.T) {
	env := newTestEnv()

	resp, data := env.do(t, http.MethodPost, "/api/elevenlabs/tts", map[string]any{
		"text":          "你好",
		"voiceSettings": map[string]any{"stability": 0.2, "similarity_boost": 0.9},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if len(data) != 2048 {
		t.Fatalf("body = %d bytes", len(data))
	}
	if got := resp.Header.Get("Content-Type"); got != "audio/mpeg" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := resp.Header.Get("Content-Length"); got != "2048" {
		t.Errorf("Content-Length = %q", got)
	}
	if got := resp.Header.Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}

	req := env.provider.last
	if req.VoiceID != tts.VoiceJessica.ID || req.ModelID != tts.ModelMultilingual {
		t.Errorf("request = %+v", req)
	}
	if req.Settings == nil || req.Settings.Stability != 0.2 || req.Settings.SimilarityBoost != 0.9 || !req.Settings.SpeakerBoost {
		t.Errorf("settings = %+v", req.Settings)
	}
}

func TestTextToSpeechErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		size     int
		err      error
		wantCode int
		wantMsg  string
	}{
		{"missing text", map[string]any{"voiceId": "x"}, 2048, nil, 400, "text"},
		{"blank text", map[string]any{"text": "   "}, 2048, nil, 400, "text"},
		{"tiny audio", map[string]any{"text": "hi"}, 10, nil, 500, "empty or invalid audio"},
		{"provider status", map[string]any{"text": "hi"}, 0, &tts.StatusError{StatusCode: 401, Message: "invalid api key"}, 401, "invalid api key"},
		{"bad settings", map[string]any{"text": "hi", "voiceSettings": map[string]any{"stability": 3}}, 0, tts.ErrInvalidSettings, 400, "Speech generation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.provider.size = tt.size
			env.provider.err = tt.err

			resp, data := env.do(t, http.MethodPost, "/api/elevenlabs/tts", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantCode, data)
			}
			e := decodeError(t, data)
			if e.StatusCode != tt.wantCode || !strings.Contains(e.StatusMessage, tt.wantMsg) {
				t.Fatalf("error = %+v", e)
			}
		})
	}
}

func TestVoices(t *testing.T) {
	env := newTestEnv()

	var out struct {
		Success bool               `json:"success"`
		Voices  []tts.VoiceProfile `json:"voices"`
	}
	_, data := env.do(t, http.MethodGet, "/api/elevenlabs/voices", nil)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || len(out.Voices) != len(tts.DefaultProfiles()) {
		t.Fatalf("voices = %+v", out)
	}

	env.voices.voices = []tts.VoiceProfile{{ID: "remote-1", Name: "Remote", Language: "fr", Settings: tts.DefaultVoiceSettings()}}
	_, data = env.do(t, http.MethodGet, "/api/elevenlabs/voices?refresh=true&language=fr", nil)
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Voices) != 1 || out.Voices[0].ID != "remote-1" {
		t.Fatalf("voices = %+v", out.Voices)
	}

	env.voices.err = &tts.StatusError{StatusCode: 401, Message: "bad key"}
	resp, data := env.do(t, http.MethodGet, "/api/elevenlabs/voices?refresh=true", nil)
	if resp.StatusCode != 401 || !strings.Contains(decodeError(t, data).StatusMessage, "API key") {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
}

func TestIngest(t *testing.T) {
	env := newTestEnv()

	resp, data := env.do(t, http.MethodPost, "/api/ingest", map[string]any{
		"type": "museum",
		"data": map[string]any{"name": "国家博物馆"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var out struct {
		Success      bool           `json:"success"`
		Type         string         `json:"type"`
		InsertedData map[string]any `json:"insertedData"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Type != "museum" || out.InsertedData["name"] != "国家博物馆" {
		t.Fatalf("response = %+v", out)
	}

	tests := []struct {
		name     string
		body     any
		storeErr error
		wantCode int
		wantMsg  string
	}{
		{"missing data", map[string]any{"type": "museum"}, nil, 400, "Missing type or data"},
		{"missing type", map[string]any{"data": map[string]any{"name": "x"}}, nil, 400, "Missing type or data"},
		{"bad type", map[string]any{"type": "artist", "data": map[string]any{"name": "x"}}, nil, 400, "Invalid type"},
		{"missing field", map[string]any{"type": "gallery", "data": map[string]any{"museum_id": 1}}, nil, 400, "missing required field"},
		{
			"constraint", map[string]any{"type": "gallery", "data": map[string]any{"name": "x"}},
			&store.InsertError{Entity: "gallery", Err: fmt.Errorf("violates foreign key constraint")}, 500, "referenced entity",
		},
		{"unexpected", map[string]any{"type": "museum", "data": map[string]any{"name": "x"}}, errBoom, 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.store.insertErr = tt.storeErr
			resp, data := env.do(t, http.MethodPost, "/api/ingest", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d: %s", resp.StatusCode, data)
			}
			if e := decodeError(t, data); !strings.Contains(e.StatusMessage, tt.wantMsg) {
				t.Fatalf("message = %q, want %q", e.StatusMessage, tt.wantMsg)
			}
		})
	}
}

func TestGenerateAudio(t *testing.T) {
	env := newTestEnv()

	resp, data := env.do(t, http.MethodPost, "/api/generate-audio", map[string]any{
		"guide_text_id": 9,
		"stability":     0.4,
		"audio_version": 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}

	key := fmt.Sprintf("public/3/9_p3_v2_%d.mp3", fixedNow.UnixMilli())
	if _, ok := env.objects.objects[key]; !ok {
		t.Fatalf("not uploaded to %s: %v", key, env.objects.objects)
	}
	if env.objects.types[key] != "audio/mp3" {
		t.Errorf("content type = %q", env.objects.types[key])
	}

	req := env.provider.last
	if req.VoiceID != "persona-voice" || req.Text != "欢迎来到青铜器展厅。" || req.OutputFormat != "mp3_44100_128" {
		t.Errorf("request = %+v", req)
	}
	if req.Settings.Stability != 0.4 || req.Settings.SimilarityBoost != 0.75 {
		t.Errorf("settings = %+v", req.Settings)
	}

	if len(env.store.audios) != 1 {
		t.Fatalf("audios = %d", len(env.store.audios))
	}
	a := env.store.audios[0]
	if a.AudioURL != key || *a.GuideTextID != 9 || a.PersonaID != 3 || *a.Version != 2 || !*a.IsLatestVersion {
		t.Errorf("record = %+v", a)
	}
	meta := a.Metadata["elevenlabs"].(map[string]any)
	if meta["voiceId"] != "persona-voice" || meta["modelId"] != tts.ModelMultilingual {
		t.Errorf("metadata = %+v", meta)
	}

	var out struct {
		Success     bool             `json:"success"`
		AudioRecord store.GuideAudio `json:"audioRecord"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.AudioRecord.AudioGuideID != 1 {
		t.Fatalf("response = %s", data)
	}
}

func TestGenerateAudioOverrides(t *testing.T) {
	env := newTestEnv()
	resp, data := env.do(t, http.MethodPost, "/api/generate-audio", map[string]any{
		"guide_text_id": 10,
		"voice_id":      "override",
		"model_id":      tts.ModelFlash,
		"output_format": "pcm_16000",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if req := env.provider.last; req.VoiceID != "override" || req.ModelID != tts.ModelFlash {
		t.Errorf("request = %+v", req)
	}
	key := fmt.Sprintf("public/4/10_p4_v1_%d.pcm", fixedNow.UnixMilli())
	if _, ok := env.objects.objects[key]; !ok {
		t.Fatalf("objects = %v", env.objects.objects)
	}
}

func TestGenerateAudioErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		setup    func(*testEnv)
		wantCode int
		wantMsg  string
	}{
		{"missing id", map[string]any{}, nil, 400, "guide_text_id"},
		{"string id", map[string]any{"guide_text_id": "9"}, nil, 400, "guide_text_id"},
		{"unknown text", map[string]any{"guide_text_id": 99}, nil, 404, "Not Found"},
		{"no persona", map[string]any{"guide_text_id": 11}, nil, 404, "persona"},
		{"no voice", map[string]any{"guide_text_id": 10}, nil, 400, "Voice ID is required"},
		{
			"synthesis failed", map[string]any{"guide_text_id": 9},
			func(e *testEnv) { e.provider.err = &tts.StatusError{StatusCode: 429, Message: "quota exceeded"} },
			429, "ElevenLabs TTS failed: quota exceeded",
		},
		{
			"near-empty audio", map[string]any{"guide_text_id": 9},
			func(e *testEnv) { e.provider.size = tts.MinAudioBytes - 1 },
			500, "audio payload too small",
		},
		{
			"upload failed", map[string]any{"guide_text_id": 9},
			func(e *testEnv) { e.objects.err = errBoom },
			500, "Storage upload failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			if tt.setup != nil {
				tt.setup(env)
			}
			resp, data := env.do(t, http.MethodPost, "/api/generate-audio", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d: %s", resp.StatusCode, data)
			}
			if e := decodeError(t, data); !strings.Contains(e.StatusMessage, tt.wantMsg) {
				t.Fatalf("message = %q", e.StatusMessage)
			}
			if len(env.store.audios) != 0 {
				t.Fatal("no record should be written")
			}
			if len(env.objects.objects) != 0 {
				t.Fatalf("nothing should be uploaded: %v", env.objects.objects)
			}
		})
	}
}

func TestGenerateAudioRemovesUploadOnInsertFailure(t *testing.T) {
	env := newTestEnv()
	env.store.audioErr = errBoom

	resp, data := env.do(t, http.MethodPost, "/api/generate-audio", map[string]any{"guide_text_id": 9})
	if resp.StatusCode != 500 || !strings.Contains(decodeError(t, data).StatusMessage, "Database insert failed") {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	if len(env.objects.objects) != 0 || len(env.objects.removed) != 1 {
		t.Fatalf("upload not cleaned up: objects=%v removed=%v", env.objects.objects, env.objects.removed)
	}
}

func multipartRequest(t *testing.T, fields map[string]string, filename, contentType string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audioFile"; filename="%s"`, filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(file)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest-audio", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIngestAudio(t *testing.T) {
	env := newTestEnv()

	req := multipartRequest(t, map[string]string{
		"guide_text_id":       "9",
		"audio_version":       "3",
		"duration_seconds":    "42",
		"generation_metadata": `{"source":"studio"}`,
	}, "intro.wav", "audio/wav", []byte("RIFF...."))
	resp, data := env.send(t, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}

	key := fmt.Sprintf("public/3/9_v3_%d.wav", fixedNow.UnixMilli())
	if string(env.objects.objects[key]) != "RIFF...." || env.objects.types[key] != "audio/wav" {
		t.Fatalf("objects = %v", env.objects.objects)
	}
	a := env.store.audios[0]
	if *a.DurationSeconds != 42 || a.Metadata["source"] != "studio" || *a.Version != 3 {
		t.Fatalf("record = %+v", a)
	}
}

func TestIngestAudioErrors(t *testing.T) {
	tests := []struct {
		name     string
		fields   map[string]string
		filename string
		ctype    string
		wantCode int
		wantMsg  string
	}{
		{"no file", map[string]string{"guide_text_id": "9"}, "", "", 400, "audio file"},
		{"not audio", map[string]string{"guide_text_id": "9"}, "a.txt", "text/plain", 400, "audio file"},
		{"no id", map[string]string{}, "a.mp3", "audio/mpeg", 400, "Missing guide_text_id"},
		{"bad id", map[string]string{"guide_text_id": "nine"}, "a.mp3", "audio/mpeg", 400, "Invalid guide_text_id"},
		{"bad version", map[string]string{"guide_text_id": "9", "audio_version": "x"}, "a.mp3", "audio/mpeg", 400, "audio_version"},
		{"bad metadata", map[string]string{"guide_text_id": "9", "generation_metadata": "{"}, "a.mp3", "audio/mpeg", 400, "generation_metadata"},
		{"unknown text", map[string]string{"guide_text_id": "99"}, "a.mp3", "audio/mpeg", 404, "Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			resp, data := env.send(t, multipartRequest(t, tt.fields, tt.filename, tt.ctype, []byte("data")))
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d: %s", resp.StatusCode, data)
			}
			if e := decodeError(t, data); !strings.Contains(e.StatusMessage, tt.wantMsg) {
				t.Fatalf("message = %q", e.StatusMessage)
			}
		})
	}
}

func TestStorageCheck(t *testing.T) {
	env := newTestEnv()
	env.objects.buckets = []storage.Bucket{{Name: "guide-voices"}, {Name: "guide-audios"}}

	resp, data := env.do(t, http.MethodGet, "/api/storage-check", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	var out struct {
		Success             bool             `json:"success"`
		Buckets             []storage.Bucket `json:"buckets"`
		ExpectedBucketFound bool             `json:"expectedBucketFound"`
		ExpectedBucketName  string           `json:"expectedBucketName"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || len(out.Buckets) != 2 || !out.ExpectedBucketFound || out.ExpectedBucketName != "guide-audios" {
		t.Fatalf("response = %+v", out)
	}

	env.objects.err = fmt.Errorf("storage: list buckets: %w", storage.ErrUnauthorized)
	if resp, _ := env.do(t, http.MethodGet, "/api/storage-check", nil); resp.StatusCode != 401 {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	env.objects.err = errBoom
	if resp, _ := env.do(t, http.MethodGet, "/api/storage-check", nil); resp.StatusCode != 500 {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHealthAndDisabledDeps(t *testing.T) {
	env := newTestEnv()
	if resp, data := env.do(t, http.MethodGet, "/health", nil); resp.StatusCode != 200 {
		t.Fatalf("status = %d: %s", resp.StatusCode, data)
	}
	env.store.pingErr = errBoom
	if resp, _ := env.do(t, http.MethodGet, "/health", nil); resp.StatusCode != 503 {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	local := cache.NewLocal(time.Minute)
	defer local.Close()
	bare := New(config.HTTPConfig{}, Deps{Cache: local})
	resp, err := bare.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	if err != nil || resp.StatusCode != 200 {
		t.Fatalf("health without database: %v %v", resp, err)
	}
	for _, path := range []string{"/api/ingest", "/api/generate-audio", "/api/elevenlabs/tts"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := bare.App().Test(req)
		if err != nil || resp.StatusCode != 503 {
			t.Fatalf("%s: status = %v, err = %v", path, resp.StatusCode, err)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv()
	env.do(t, http.MethodPost, "/api/elevenlabs/tts", map[string]any{"text": "hi"})

	resp, data := env.do(t, http.MethodGet, "/metrics", nil)
	if resp.StatusCode != 200 || !strings.Contains(string(data), "tourguide_tts_requests_total") {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
