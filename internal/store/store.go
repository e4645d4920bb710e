package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ovenzeze/hugo-tour-guide/internal/metrics"
	"github.com/ovenzeze/hugo-tour-guide/internal/navigation"
)

type Config struct {
	URL          string
	MaxIdleConns int
	MaxOpenConns int
	// LogLevel silent | error | warn | info
	LogLevel string
}

type Store struct {
	db *gorm.DB
}

// Open 连接 Postgres
func Open(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("store: database url is empty")
	}
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	logrus.Info("store: connected to postgres")
	return New(db), nil
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func logLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

func observe(start time.Time) {
	metrics.DatabaseLatency.Observe(time.Since(start).Seconds())
}

// Insert 导入博物馆、展厅或展品，返回插入后的记录
func (s *Store) Insert(ctx context.Context, entity string, data json.RawMessage) (any, error) {
	record, err := decodeEntity(entity, data)
	if err != nil {
		return nil, err
	}

	defer observe(time.Now())
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		logrus.WithField("type", entity).Errorf("store: insert: %v", err)
		return nil, &InsertError{Entity: entity, Err: err}
	}
	return record, nil
}

func (s *Store) GuideText(ctx context.Context, id int64) (*GuideText, error) {
	defer observe(time.Now())

	var text GuideText
	if err := s.db.WithContext(ctx).First(&text, "guide_text_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: guide text %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: guide text %d: %w", id, err)
	}
	return &text, nil
}

// GuideTextWithPersona 读取导览文本和关联的人设
func (s *Store) GuideTextWithPersona(ctx context.Context, id int64) (*GuideText, error) {
	defer observe(time.Now())

	var text GuideText
	err := s.db.WithContext(ctx).Preload("Persona").First(&text, "guide_text_id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: guide text %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("store: guide text %d: %w", id, err)
	}
	if text.Persona == nil {
		return nil, fmt.Errorf("%w: persona for guide text %d", ErrNotFound, id)
	}
	return &text, nil
}

// PersonaVoiceForTranscript 导览文本所属人设的音色
func (s *Store) PersonaVoiceForTranscript(ctx context.Context, guideTextID int64) (string, error) {
	text, err := s.GuideTextWithPersona(ctx, guideTextID)
	if err != nil {
		return "", err
	}
	return text.Persona.VoiceID(), nil
}

func (s *Store) InsertGuideAudio(ctx context.Context, a *GuideAudio) error {
	defer observe(time.Now())
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return &InsertError{Entity: "guide audio", Err: err}
	}
	return nil
}

// ExhibitByRef 按展品编号、分类或标题查找展品
func (s *Store) ExhibitByRef(ctx context.Context, museumID int64, ref string) (*Object, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	defer observe(time.Now())

	q := s.db.WithContext(ctx).Preload("Gallery")
	if museumID > 0 {
		q = q.Where("museum_id = ?", museumID)
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		q = q.Where("object_id = ?", id)
	} else {
		like := "%" + ref + "%"
		q = q.Where("classification ILIKE ? OR object_name ILIKE ? OR title ILIKE ?", like, like, like).
			Order("is_highlight DESC NULLS LAST").Order("object_id")
	}

	var obj Object
	if err := q.First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: exhibit %q: %w", ref, err)
	}
	return &obj, nil
}

// Catalog 把展品表适配成导览使用的展品目录
type Catalog struct {
	store    *Store
	museumID int64
}

func NewCatalog(s *Store, museumID int64) *Catalog {
	return &Catalog{store: s, museumID: museumID}
}

func (c *Catalog) Exhibit(ctx context.Context, ref string) (navigation.Exhibit, bool, error) {
	obj, err := c.store.ExhibitByRef(ctx, c.museumID, ref)
	if err != nil || obj == nil {
		return navigation.Exhibit{}, false, err
	}
	return obj.Exhibit(), true, nil
}

// Exhibit 转换成导览层的展品
func (o *Object) Exhibit() navigation.Exhibit {
	ex := navigation.Exhibit{
		Ref:   strconv.FormatInt(o.ObjectID, 10),
		Name:  o.Title,
		Floor: o.Gallery.Floor(),
	}
	if o.Description != nil {
		ex.Description = *o.Description
	}
	return ex
}
