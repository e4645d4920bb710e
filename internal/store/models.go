package store

import (
	"time"

	"github.com/lib/pq"
)

// 表结构由托管数据库维护，这里只做映射

type Museum struct {
	MuseumID      int64          `gorm:"column:museum_id;primaryKey" json:"museum_id"`
	Name          string         `gorm:"column:name" json:"name"`
	Description   *string        `gorm:"column:description" json:"description"`
	Address       *string        `gorm:"column:address" json:"address"`
	City          *string        `gorm:"column:city" json:"city"`
	Country       *string        `gorm:"column:country" json:"country"`
	Website       *string        `gorm:"column:website" json:"website"`
	LogoURL       *string        `gorm:"column:logo_url" json:"logo_url"`
	CoverImageURL *string        `gorm:"column:cover_image_url" json:"cover_image_url"`
	OpeningHours  map[string]any `gorm:"column:opening_hours;serializer:json" json:"opening_hours"`
	CreatedAt     *time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     *time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Museum) TableName() string { return "museums" }

type Gallery struct {
	GalleryID           int64          `gorm:"column:gallery_id;primaryKey" json:"gallery_id"`
	MuseumID            int64          `gorm:"column:museum_id" json:"museum_id"`
	Name                string         `gorm:"column:name" json:"name"`
	Description         *string        `gorm:"column:description" json:"description"`
	GalleryNumber       *string        `gorm:"column:gallery_number" json:"gallery_number"`
	LocationDescription *string        `gorm:"column:location_description" json:"location_description"`
	Theme               *string        `gorm:"column:theme" json:"theme"`
	FloorPlanCoordinate map[string]any `gorm:"column:floor_plan_coordinate;serializer:json" json:"floor_plan_coordinate"`
	CreatedAt           *time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           *time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Gallery) TableName() string { return "galleries" }

// Floor 从平面图坐标里读取楼层，没有时返回 0
func (g *Gallery) Floor() int {
	if g == nil {
		return 0
	}
	switch v := g.FloorPlanCoordinate["floor"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

type Object struct {
	ObjectID          int64          `gorm:"column:object_id;primaryKey" json:"object_id"`
	MuseumID          int64          `gorm:"column:museum_id" json:"museum_id"`
	GalleryID         *int64         `gorm:"column:gallery_id" json:"gallery_id"`
	Title             string         `gorm:"column:title" json:"title"`
	ObjectName        *string        `gorm:"column:object_name" json:"object_name"`
	ObjectNumber      *string        `gorm:"column:object_number" json:"object_number"`
	Description       *string        `gorm:"column:description" json:"description"`
	ArtistDisplayName *string        `gorm:"column:artist_display_name" json:"artist_display_name"`
	Classification    *string        `gorm:"column:classification" json:"classification"`
	Culture           *string        `gorm:"column:culture" json:"culture"`
	Period            *string        `gorm:"column:period" json:"period"`
	ObjectDate        *string        `gorm:"column:object_date" json:"object_date"`
	Medium            *string        `gorm:"column:medium" json:"medium"`
	Dimensions        *string        `gorm:"column:dimensions" json:"dimensions"`
	Department        *string        `gorm:"column:department" json:"department"`
	CreditLine        *string        `gorm:"column:credit_line" json:"credit_line"`
	ImageURL          *string        `gorm:"column:image_url" json:"image_url"`
	LinkResource      *string        `gorm:"column:link_resource" json:"link_resource"`
	ObjectWikidataURL *string        `gorm:"column:object_wikidata_url" json:"object_wikidata_url"`
	MetadataDate      *string        `gorm:"column:metadata_date" json:"metadata_date"`
	IsHighlight       *bool          `gorm:"column:is_highlight" json:"is_highlight"`
	IsPublicDomain    *bool          `gorm:"column:is_public_domain" json:"is_public_domain"`
	Tags              pq.StringArray `gorm:"column:tags;type:text[]" json:"tags"`
	CreatedAt         *time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         *time.Time     `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Gallery *Gallery `gorm:"foreignKey:GalleryID;references:GalleryID" json:"-"`
}

func (Object) TableName() string { return "objects" }

type Persona struct {
	PersonaID            int64          `gorm:"column:persona_id;primaryKey" json:"persona_id"`
	Name                 string         `gorm:"column:name" json:"name"`
	Description          *string        `gorm:"column:description" json:"description"`
	AvatarURL            *string        `gorm:"column:avatar_url" json:"avatar_url"`
	VoiceDescription     *string        `gorm:"column:voice_description" json:"voice_description"`
	VoiceModelIdentifier *string        `gorm:"column:voice_model_identifier" json:"voice_model_identifier"`
	LanguageSupport      pq.StringArray `gorm:"column:language_support;type:text[]" json:"language_support"`
	IsActive             *bool          `gorm:"column:is_active" json:"is_active"`
	CreatedAt            *time.Time     `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            *time.Time     `gorm:"column:updated_at" json:"updated_at"`
}

func (Persona) TableName() string { return "personas" }

// VoiceID 人设绑定的音色，没有时返回空串
func (p *Persona) VoiceID() string {
	if p == nil || p.VoiceModelIdentifier == nil {
		return ""
	}
	return *p.VoiceModelIdentifier
}

type GuideText struct {
	GuideTextID     int64      `gorm:"column:guide_text_id;primaryKey" json:"guide_text_id"`
	PersonaID       int64      `gorm:"column:persona_id" json:"persona_id"`
	Language        string     `gorm:"column:language" json:"language"`
	Transcript      string     `gorm:"column:transcript" json:"transcript"`
	MuseumID        *int64     `gorm:"column:museum_id" json:"museum_id"`
	GalleryID       *int64     `gorm:"column:gallery_id" json:"gallery_id"`
	ObjectID        *int64     `gorm:"column:object_id" json:"object_id"`
	Version         *int       `gorm:"column:version" json:"version"`
	IsLatestVersion *bool      `gorm:"column:is_latest_version" json:"is_latest_version"`
	CreatedAt       *time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt       *time.Time `gorm:"column:updated_at" json:"updated_at"`

	Persona *Persona `gorm:"foreignKey:PersonaID;references:PersonaID" json:"personas"`
}

func (GuideText) TableName() string { return "guide_texts" }

type GuideAudio struct {
	AudioGuideID    int64          `gorm:"column:audio_guide_id;primaryKey" json:"audio_guide_id"`
	GuideTextID     *int64         `gorm:"column:guide_text_id" json:"guide_text_id"`
	PersonaID       int64          `gorm:"column:persona_id" json:"persona_id"`
	Language        string         `gorm:"column:language" json:"language"`
	AudioURL        string         `gorm:"column:audio_url" json:"audio_url"`
	DurationSeconds *int           `gorm:"column:duration_seconds" json:"duration_seconds"`
	MuseumID        *int64         `gorm:"column:museum_id" json:"museum_id"`
	GalleryID       *int64         `gorm:"column:gallery_id" json:"gallery_id"`
	ObjectID        *int64         `gorm:"column:object_id" json:"object_id"`
	Version         *int           `gorm:"column:version" json:"version"`
	IsLatestVersion *bool          `gorm:"column:is_latest_version" json:"is_latest_version"`
	IsActive        *bool          `gorm:"column:is_active" json:"is_active"`
	Metadata        map[string]any `gorm:"column:metadata;serializer:json" json:"metadata"`
	GeneratedAt     *time.Time     `gorm:"column:generated_at;autoCreateTime" json:"generated_at"`
}

func (GuideAudio) TableName() string { return "guide_audios" }

// NewGuideAudio 按导览文本生成一条音频记录
func NewGuideAudio(text *GuideText, path string, version int) *GuideAudio {
	id := text.GuideTextID
	yes := true
	return &GuideAudio{
		GuideTextID:     &id,
		PersonaID:       text.PersonaID,
		Language:        text.Language,
		AudioURL:        path,
		MuseumID:        text.MuseumID,
		GalleryID:       text.GalleryID,
		ObjectID:        text.ObjectID,
		Version:         &version,
		IsLatestVersion: &yes,
		IsActive:        &yes,
	}
}
