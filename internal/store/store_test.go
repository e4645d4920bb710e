package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeEntity(t *testing.T) {
	tests := []struct {
		name    string
		entity  string
		data    string
		wantErr error
		check   func(t *testing.T, v any)
	}{
		{
			name:   "museum",
			entity: EntityMuseum,
			data:   `{"name":"国家博物馆","city":"北京"}`,
			check: func(t *testing.T, v any) {
				m := v.(*Museum)
				if m.Name != "国家博物馆" || m.City == nil || *m.City != "北京" {
					t.Fatalf("museum = %+v", m)
				}
			},
		},
		{name: "museum without name", entity: EntityMuseum, data: `{"city":"北京"}`, wantErr: ErrMissingField},
		{
			name:   "gallery",
			entity: EntityGallery,
			data:   `{"name":"古代文明展厅","museum_id":1,"floor_plan_coordinate":{"floor":2}}`,
			check: func(t *testing.T, v any) {
				g := v.(*Gallery)
				if g.MuseumID != 1 || g.Floor() != 2 {
					t.Fatalf("gallery = %+v", g)
				}
			},
		},
		{name: "gallery without museum", entity: EntityGallery, data: `{"name":"x"}`, wantErr: ErrMissingField},
		{
			name:   "object with legacy name",
			entity: EntityObject,
			data:   `{"name":"青铜器","museum_id":1,"gallery_id":3,"tags":["bronze"]}`,
			check: func(t *testing.T, v any) {
				o := v.(*Object)
				if o.Title != "青铜器" || o.GalleryID == nil || *o.GalleryID != 3 || len(o.Tags) != 1 {
					t.Fatalf("object = %+v", o)
				}
			},
		},
		{name: "object without museum", entity: EntityObject, data: `{"title":"x"}`, wantErr: ErrMissingField},
		{name: "unknown type", entity: "artist", data: `{"name":"x"}`, wantErr: ErrUnknownEntity},
		{name: "unknown field", entity: EntityMuseum, data: `{"name":"x","bogus":1}`, wantErr: ErrInvalidData},
		{name: "empty data", entity: EntityMuseum, data: `null`, wantErr: ErrInvalidData},
		{name: "wrong type", entity: EntityGallery, data: `{"name":"x","museum_id":"one"}`, wantErr: ErrInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := decodeEntity(tt.entity, json.RawMessage(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			tt.check(t, v)
		})
	}
}

func TestMissingFieldMessage(t *testing.T) {
	_, err := decodeEntity(EntityGallery, json.RawMessage(`{"description":"x"}`))
	if err == nil || !strings.Contains(err.Error(), "name, museum_id") {
		t.Fatalf("err = %v", err)
	}
}

func TestInsertErrorHints(t *testing.T) {
	tests := []struct {
		err  error
		hint string
	}{
		{errors.New(`duplicate key value violates unique constraint "museums_name_key"`), "might already exist"},
		{errors.New(`insert violates foreign key constraint "galleries_museum_id_fkey"`), "referenced entity"},
		{errors.New("connection reset"), ""},
	}
	for _, tt := range tests {
		e := &InsertError{Entity: EntityGallery, Err: tt.err}
		msg := e.Error()
		if !strings.HasPrefix(msg, "Failed to insert gallery.") {
			t.Errorf("message = %q", msg)
		}
		if tt.hint != "" && !strings.Contains(msg, tt.hint) {
			t.Errorf("message %q missing hint %q", msg, tt.hint)
		}
		if tt.hint == "" && strings.Contains(msg, "Make sure") {
			t.Errorf("unexpected hint in %q", msg)
		}
		if !errors.Is(e, tt.err) {
			t.Error("InsertError should unwrap")
		}
	}
}

func TestObjectExhibit(t *testing.T) {
	desc := "Oil on canvas."
	o := &Object{
		ObjectID:    42,
		Title:       "Starry Night",
		Description: &desc,
		Gallery:     &Gallery{FloorPlanCoordinate: map[string]any{"floor": float64(2)}},
	}
	ex := o.Exhibit()
	if ex.Ref != "42" || ex.Name != "Starry Night" || ex.Description != desc || ex.Floor != 2 {
		t.Fatalf("exhibit = %+v", ex)
	}

	bare := (&Object{ObjectID: 7, Title: "Vase"}).Exhibit()
	if bare.Floor != 0 || bare.Description != "" {
		t.Fatalf("exhibit = %+v", bare)
	}
}

func TestNewGuideAudio(t *testing.T) {
	museum := int64(1)
	text := &GuideText{GuideTextID: 9, PersonaID: 3, Language: "zh", MuseumID: &museum}
	a := NewGuideAudio(text, "public/3/9_p3_v2_1.mp3", 2)
	if *a.GuideTextID != 9 || a.PersonaID != 3 || a.Language != "zh" || *a.Version != 2 {
		t.Fatalf("audio = %+v", a)
	}
	if !*a.IsLatestVersion || !*a.IsActive || *a.MuseumID != 1 {
		t.Fatalf("audio = %+v", a)
	}
}
