package redisearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// Index writes one document as JSON and bumps its version counter. With a
// sequence number set the write turns into a check-and-set against the
// version hash.
func (s *Store) Index(ctx context.Context, req db.IndexRequest) (domain.IndexedInfo, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	if req.SeqNo > 0 {
		current, err := s.currentVersion(ctx, req.Index, id)
		if err != nil {
			return domain.IndexedInfo{}, err
		}
		if current != req.SeqNo {
			return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Status: 409, Err: domain.ErrVersionConflict}
		}
	}

	data, err := json.Marshal(req.Doc)
	if err != nil {
		return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Err: err}
	}

	setCmd := s.b().JsonSet().Key(docKey(req.Index, id)).Path("$").Value(string(data)).Build()
	if err := s.do(ctx, setCmd).Error(); err != nil {
		return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Err: err}
	}

	verCmd := s.b().Hincrby().Key(versionKey(req.Index)).Field(id).Increment(1).Build()
	version, err := s.do(ctx, verCmd).AsInt64()
	if err != nil {
		return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Err: err}
	}

	s.log.Debug("indexed document", zap.String("index", req.Index), zap.String("id", id))
	return domain.IndexedInfo{ID: id, Version: version, SeqNo: version, PrimaryTerm: 1}, nil
}

func (s *Store) currentVersion(ctx context.Context, index, id string) (int64, error) {
	cmd := s.b().Hget().Key(versionKey(index)).Field(id).Build()
	res := s.do(ctx, cmd)
	if err := res.Error(); err != nil {
		if rueidisIsNil(err) {
			return 0, nil
		}
		return 0, &db.Error{Op: db.OpIndex, Err: err}
	}
	v, err := res.AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIndex, Err: err}
	}
	return v, nil
}

// Get fetches one document by identifier.
func (s *Store) Get(ctx context.Context, index, id string) (*document.Document, error) {
	cmd := s.b().JsonGet().Key(docKey(index, id)).Path("$").Build()
	res := s.do(ctx, cmd)
	if err := res.Error(); err != nil {
		if rueidisIsNil(err) {
			return nil, &db.Error{Op: db.OpGet, Status: 404, Err: domain.ErrDocumentNotFound}
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}

	raw, err := res.ToString()
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	doc, err := decodeJSONDoc(raw)
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return doc, nil
}

// Exists reports whether the document key is present.
func (s *Store) Exists(ctx context.Context, index, id string) (bool, error) {
	cmd := s.b().Exists().Key(docKey(index, id)).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

// Delete removes the document and its version entry.
func (s *Store) Delete(ctx context.Context, index, id string) error {
	delCmd := s.b().Del().Key(docKey(index, id)).Build()
	n, err := s.do(ctx, delCmd).AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if n == 0 {
		return &db.Error{Op: db.OpDelete, Status: 404, Err: domain.ErrDocumentNotFound}
	}

	hdelCmd := s.b().Hdel().Key(versionKey(index)).Field(id).Build()
	if err := s.do(ctx, hdelCmd).Error(); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// Bulk applies the writes in order, stopping at the first failure.
func (s *Store) Bulk(ctx context.Context, reqs []db.IndexRequest) ([]domain.IndexedInfo, error) {
	out := make([]domain.IndexedInfo, 0, len(reqs))
	for i, req := range reqs {
		info, err := s.Index(ctx, req)
		if err != nil {
			return out, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("item %d: %w", i, err)}
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteByQuery removes every document matching the query.
func (s *Store) DeleteByQuery(ctx context.Context, index string, q *query.Query) (int64, error) {
	queryStr, err := queryString(q)
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}

	var removed int64
	for {
		keys, err := s.searchKeys(ctx, index, queryStr, deletePageSize)
		if err != nil {
			return removed, &db.Error{Op: db.OpDeleteByQuery, Err: err}
		}
		if len(keys) == 0 {
			return removed, nil
		}
		for _, key := range keys {
			if err := s.Delete(ctx, index, docID(index, key)); err != nil {
				return removed, &db.Error{Op: db.OpDeleteByQuery, Err: err}
			}
			removed++
		}
		if len(keys) < deletePageSize {
			return removed, nil
		}
	}
}

const deletePageSize = 1000

// decodeJSONDoc unwraps the single-element array JSON.GET returns for the
// $ path and parses the document inside.
func decodeJSONDoc(raw string) (*document.Document, error) {
	var wrapper []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
		// Some paths return a bare object instead of an array.
		doc := document.New()
		if err2 := json.Unmarshal([]byte(raw), doc); err2 != nil {
			return nil, err
		}
		return doc, nil
	}
	if len(wrapper) == 0 {
		return nil, domain.ErrDocumentNotFound
	}
	doc := document.New()
	if err := json.Unmarshal(wrapper[0], doc); err != nil {
		return nil, err
	}
	return doc, nil
}
