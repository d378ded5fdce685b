package redisearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
)

// CreateIndex creates the FT index with a schema derived from the mapping
// document and stores the mapping for later retrieval.
func (s *Store) CreateIndex(ctx context.Context, name string, mapping, settings *document.Document) error {
	args, err := buildCreateArgs(name, mapping)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return &db.Error{Op: db.OpCreateIndex, Status: 400, Err: domain.ErrIndexExists}
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	if err := s.storeMapping(ctx, name, mapping); err != nil {
		return err
	}
	s.log.Info("index created", zap.String("index", name))
	return nil
}

// DeleteIndex drops the FT index together with its documents and metadata.
func (s *Store) DeleteIndex(ctx context.Context, name string) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return &db.Error{Op: db.OpDeleteIndex, Status: 404, Err: domain.ErrIndexNotFound}
		}
		return &db.Error{Op: db.OpDeleteIndex, Err: err}
	}

	delCmd := s.b().Del().Key(mappingKey(name)).Key(versionKey(name)).Build()
	if err := s.do(ctx, delCmd).Error(); err != nil {
		return &db.Error{Op: db.OpDeleteIndex, Err: err}
	}
	s.log.Info("index deleted", zap.String("index", name))
	return nil
}

// IndexExists probes index existence via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexExists, Err: err}
	}
	return true, nil
}

// PutMapping replaces the stored mapping document. The FT schema itself is
// immutable here; recreate the index to change indexed fields.
func (s *Store) PutMapping(ctx context.Context, name string, mapping *document.Document) error {
	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return &db.Error{Op: db.OpPutMapping, Status: 404, Err: domain.ErrIndexNotFound}
	}
	return s.storeMapping(ctx, name, mapping)
}

// GetMapping returns the stored mapping document.
func (s *Store) GetMapping(ctx context.Context, name string) (*document.Document, error) {
	cmd := s.b().Get().Key(mappingKey(name)).Build()
	res := s.do(ctx, cmd)
	if err := res.Error(); err != nil {
		if rueidisIsNil(err) {
			return nil, &db.Error{Op: db.OpGetMapping, Status: 404, Err: domain.ErrIndexNotFound}
		}
		return nil, &db.Error{Op: db.OpGetMapping, Err: err}
	}
	raw, err := res.ToString()
	if err != nil {
		return nil, &db.Error{Op: db.OpGetMapping, Err: err}
	}
	doc := document.New()
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, &db.Error{Op: db.OpGetMapping, Err: err}
	}
	return doc, nil
}

// RefreshIndex is a no-op: RediSearch indexes synchronously.
func (s *Store) RefreshIndex(ctx context.Context, name string) error {
	exists, err := s.IndexExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return &db.Error{Op: db.OpRefresh, Status: 404, Err: domain.ErrIndexNotFound}
	}
	return nil
}

func (s *Store) storeMapping(ctx context.Context, name string, mapping *document.Document) error {
	if mapping == nil {
		mapping = document.New()
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return &db.Error{Op: db.OpPutMapping, Err: err}
	}
	cmd := s.b().Set().Key(mappingKey(name)).Value(string(data)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPutMapping, Err: err}
	}
	return nil
}

// buildCreateArgs renders FT.CREATE arguments: JSON storage over the index
// prefix, with one schema attribute per mapped scalar field.
func buildCreateArgs(name string, mapping *document.Document) ([]string, error) {
	if name == "" {
		return nil, fmt.Errorf("index name is required")
	}

	args := []string{name, "ON", "JSON", "PREFIX", "1", name + ":", "SCHEMA"}

	fields, err := schemaFields(mapping, nil)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("mapping has no indexable fields")
	}
	args = append(args, fields...)
	return args, nil
}

// schemaFields walks the mapping's properties tree and emits schema
// attribute triples: JSON path, AS alias, field type.
func schemaFields(mapping *document.Document, path []string) ([]string, error) {
	if mapping == nil {
		return nil, nil
	}
	props, ok := mapping.Get("properties")
	if !ok {
		return nil, nil
	}
	propsDoc, ok := props.(*document.Document)
	if !ok {
		return nil, fmt.Errorf("properties is not an object")
	}

	var out []string
	err := propsDoc.Walk(func(field string, v any) error {
		spec, ok := v.(*document.Document)
		if !ok {
			return fmt.Errorf("field %s: mapping entry is not an object", field)
		}
		fullPath := append(append([]string(nil), path...), field)

		if _, hasChildren := spec.Get("properties"); hasChildren {
			nested, err := schemaFields(wrapProperties(spec), fullPath)
			if err != nil {
				return err
			}
			out = append(out, nested...)
			return nil
		}

		esType, _ := spec.GetString("type")
		ftType, ok := ftFieldType(esType)
		if !ok {
			return nil // unmappable types are stored but not indexed
		}

		jsonPath := "$." + strings.Join(fullPath, ".")
		alias := strings.Join(fullPath, "__")
		attr := []string{jsonPath, "AS", alias, ftType}
		if ftType != "GEO" {
			attr = append(attr, "INDEXMISSING")
		}
		out = append(out, attr...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// wrapProperties re-wraps a field spec so schemaFields can recurse into it.
func wrapProperties(spec *document.Document) *document.Document {
	props, _ := spec.Get("properties")
	out := document.New()
	out.Set("properties", props)
	return out
}

// ftFieldType maps a mapping field type onto the FT schema type. Dates ride
// as tags because they are stored as RFC 3339 strings.
func ftFieldType(esType string) (string, bool) {
	switch esType {
	case "text":
		return "TEXT", true
	case "keyword", "boolean", "date":
		return "TAG", true
	case "long", "integer", "double", "float":
		return "NUMERIC", true
	case "geo_point":
		return "GEO", true
	default:
		return "", false
	}
}
