package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ovenzeze/hugo-tour-guide/internal/audio"
	"github.com/ovenzeze/hugo-tour-guide/internal/storage"
	"github.com/ovenzeze/hugo-tour-guide/internal/store"
	"github.com/ovenzeze/hugo-tour-guide/internal/tts"
)

type fakeProvider struct {
	mu   sync.Mutex
	size int
	err  error
	last tts.Request
}

func (p *fakeProvider) Synthesize(ctx context.Context, req tts.Request) (*audio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = req
	if p.err != nil {
		return nil, p.err
	}
	return audio.NewClip(make([]byte, p.size), audio.MIMEMpeg), nil
}

type fakeStore struct {
	texts    map[int64]*store.GuideText
	inserted []any
	audios   []*store.GuideAudio

	insertErr error
	audioErr  error
	pingErr   error
}

func (s *fakeStore) Insert(ctx context.Context, entity string, data json.RawMessage) (any, error) {
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	switch entity {
	case store.EntityMuseum, store.EntityGallery, store.EntityObject:
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownEntity, entity)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidData, err)
	}
	if _, ok := m["name"]; !ok {
		return nil, fmt.Errorf("%w: name", store.ErrMissingField)
	}
	m["id"] = len(s.inserted) + 1
	s.inserted = append(s.inserted, m)
	return m, nil
}

func (s *fakeStore) GuideText(ctx context.Context, id int64) (*store.GuideText, error) {
	t, ok := s.texts[id]
	if !ok {
		return nil, fmt.Errorf("%w: guide text %d", store.ErrNotFound, id)
	}
	return t, nil
}

func (s *fakeStore) GuideTextWithPersona(ctx context.Context, id int64) (*store.GuideText, error) {
	t, err := s.GuideText(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Persona == nil {
		return nil, fmt.Errorf("%w: persona for guide text %d", store.ErrNotFound, id)
	}
	return t, nil
}

func (s *fakeStore) InsertGuideAudio(ctx context.Context, a *store.GuideAudio) error {
	if s.audioErr != nil {
		return s.audioErr
	}
	a.AudioGuideID = int64(len(s.audios) + 1)
	s.audios = append(s.audios, a)
	return nil
}

func (s *fakeStore) Ping(ctx context.Context) error { return s.pingErr }

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
	removed []string
	buckets []storage.Bucket
	err     error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (o *fakeObjects) Bucket() string { return storage.DefaultBucket }

func (o *fakeObjects) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if o.err != nil {
		return "", o.err
	}
	o.objects[key] = data
	o.types[key] = contentType
	return key, nil
}

func (o *fakeObjects) Remove(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(o.objects, k)
		o.removed = append(o.removed, k)
	}
	return nil
}

func (o *fakeObjects) ListBuckets(ctx context.Context) ([]storage.Bucket, error) {
	return o.buckets, o.err
}

type fakeVoiceSource struct {
	voices []tts.VoiceProfile
	err    error
}

func (v *fakeVoiceSource) Voices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return v.voices, v.err
}

var errBoom = errors.New("boom")
