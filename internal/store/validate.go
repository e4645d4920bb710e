package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEntity = errors.New("store: unknown entity type")
	ErrMissingField  = errors.New("store: missing required field")
	ErrInvalidData   = errors.New("store: invalid entity data")
	ErrNotFound      = errors.New("store: not found")
)

const (
	EntityMuseum  = "museum"
	EntityGallery = "gallery"
	EntityObject  = "object"
)

// InsertError 数据库拒绝插入，Message 带上约束冲突的提示
type InsertError struct {
	Entity string
	Err    error
}

func (e *InsertError) Error() string {
	msg := fmt.Sprintf("Failed to insert %s. Database error: %v", e.Entity, e.Err)
	return msg + constraintHint(e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

func constraintHint(err error) string {
	if err == nil {
		return ""
	}
	s := err.Error()
	switch {
	case strings.Contains(s, "unique constraint"):
		return " A record with a similar unique identifier (like name or ID) might already exist."
	case strings.Contains(s, "foreign key constraint"):
		return " Make sure the referenced entity (e.g., museum_id for a gallery) exists."
	}
	return ""
}

// decodeEntity 把请求体解码成对应的模型并检查必填字段
func decodeEntity(entity string, data json.RawMessage) (any, error) {
	var (
		record  any
		missing []string
	)

	switch entity {
	case EntityMuseum:
		var m Museum
		if err := decodeStrict(data, &m); err != nil {
			return nil, err
		}
		if strings.TrimSpace(m.Name) == "" {
			missing = append(missing, "name")
		}
		record = &m

	case EntityGallery:
		var g Gallery
		if err := decodeStrict(data, &g); err != nil {
			return nil, err
		}
		if strings.TrimSpace(g.Name) == "" {
			missing = append(missing, "name")
		}
		if g.MuseumID == 0 {
			missing = append(missing, "museum_id")
		}
		record = &g

	case EntityObject:
		var in struct {
			Object
			Name string `json:"name"`
		}
		if err := decodeStrict(data, &in); err != nil {
			return nil, err
		}
		o := in.Object
		// 兼容旧客户端用 name 表示展品标题
		if o.Title == "" {
			o.Title = in.Name
		}
		if strings.TrimSpace(o.Title) == "" {
			missing = append(missing, "title")
		}
		if o.MuseumID == 0 {
			missing = append(missing, "museum_id")
		}
		record = &o

	default:
		return nil, fmt.Errorf("%w: %q (must be museum, gallery or object)", ErrUnknownEntity, entity)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s requires %s", ErrMissingField, entity, strings.Join(missing, ", "))
	}
	return record, nil
}

func decodeStrict(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%w: empty data", ErrInvalidData)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}
