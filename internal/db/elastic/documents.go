package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esmap/internal/db"
	"github.com/kailas-cloud/esmap/internal/domain"
	"github.com/kailas-cloud/esmap/internal/domain/document"
	"github.com/kailas-cloud/esmap/internal/domain/query"
)

// writeResult is the response envelope of index and delete calls.
type writeResult struct {
	ID          string `json:"_id"`
	Version     int64  `json:"_version"`
	SeqNo       int64  `json:"_seq_no"`
	PrimaryTerm int64  `json:"_primary_term"`
	Result      string `json:"result"`
}

// Index writes one document. Sequence number and primary term above zero
// turn the write into a compare-and-set.
func (s *Store) Index(ctx context.Context, req db.IndexRequest) (domain.IndexedInfo, error) {
	data, err := json.Marshal(req.Doc)
	if err != nil {
		return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Err: err}
	}

	opts := []func(*esapi.IndexRequest){
		s.client.Index.WithContext(ctx),
	}
	if req.ID != "" {
		opts = append(opts, s.client.Index.WithDocumentID(req.ID))
	}
	if req.Routing != "" {
		opts = append(opts, s.client.Index.WithRouting(req.Routing))
	}
	if req.SeqNo > 0 || req.PrimaryTerm > 0 {
		opts = append(opts,
			s.client.Index.WithIfSeqNo(int(req.SeqNo)),
			s.client.Index.WithIfPrimaryTerm(int(req.PrimaryTerm)),
		)
	}
	if req.Refresh {
		opts = append(opts, s.client.Index.WithRefresh("true"))
	}

	res, err := s.client.Index(req.Index, bytes.NewReader(data), opts...)
	if err != nil {
		return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return domain.IndexedInfo{}, decodeError(db.OpIndex, res)
	}

	var out writeResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return domain.IndexedInfo{}, &db.Error{Op: db.OpIndex, Err: err}
	}
	s.log.Debug("indexed document", zap.String("index", req.Index), zap.String("id", out.ID))
	return domain.IndexedInfo{ID: out.ID, Version: out.Version, SeqNo: out.SeqNo, PrimaryTerm: out.PrimaryTerm}, nil
}

// getResult is the response envelope of a document fetch.
type getResult struct {
	Found  bool               `json:"found"`
	Source *document.Document `json:"_source"`
}

// Get fetches one document by identifier.
func (s *Store) Get(ctx context.Context, index, id string) (*document.Document, error) {
	res, err := s.client.Get(index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(db.OpGet, res)
	}

	var out getResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	if !out.Found || out.Source == nil {
		return nil, &db.Error{Op: db.OpGet, Status: 404, Err: domain.ErrDocumentNotFound}
	}
	return out.Source, nil
}

// Exists reports whether the document is present, without fetching it.
func (s *Store) Exists(ctx context.Context, index, id string) (bool, error) {
	res, err := s.client.Exists(index, id, s.client.Exists.WithContext(ctx))
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	defer closeBody(res)

	switch res.StatusCode {
	case 200:
		return true, nil
	case 404:
		return false, nil
	default:
		return false, decodeError(db.OpExists, res)
	}
}

// Delete removes one document by identifier.
func (s *Store) Delete(ctx context.Context, index, id string) error {
	res, err := s.client.Delete(index, id, s.client.Delete.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return decodeError(db.OpDelete, res)
	}
	return nil
}

// bulkResult is the response envelope of a bulk call.
type bulkResult struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID          string `json:"_id"`
			Version     int64  `json:"_version"`
			SeqNo       int64  `json:"_seq_no"`
			PrimaryTerm int64  `json:"_primary_term"`
			Status      int    `json:"status"`
			Error       struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"index"`
	} `json:"items"`
}

// Bulk writes documents through the NDJSON bulk API. Per-item failures
// surface as one combined error; successful items still report their
// indexing results.
func (s *Store) Bulk(ctx context.Context, reqs []db.IndexRequest) ([]domain.IndexedInfo, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	refresh := false
	for _, req := range reqs {
		action := map[string]any{"_index": req.Index}
		if req.ID != "" {
			action["_id"] = req.ID
		}
		if req.Routing != "" {
			action["routing"] = req.Routing
		}
		if err := json.NewEncoder(&buf).Encode(map[string]any{"index": action}); err != nil {
			return nil, &db.Error{Op: db.OpBulk, Err: err}
		}
		if err := json.NewEncoder(&buf).Encode(req.Doc); err != nil {
			return nil, &db.Error{Op: db.OpBulk, Err: err}
		}
		refresh = refresh || req.Refresh
	}

	opts := []func(*esapi.BulkRequest){s.client.Bulk.WithContext(ctx)}
	if refresh {
		opts = append(opts, s.client.Bulk.WithRefresh("true"))
	}

	res, err := s.client.Bulk(bytes.NewReader(buf.Bytes()), opts...)
	if err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return nil, decodeError(db.OpBulk, res)
	}

	var out bulkResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, &db.Error{Op: db.OpBulk, Err: err}
	}

	infos := make([]domain.IndexedInfo, 0, len(out.Items))
	var failures []string
	for _, item := range out.Items {
		it := item.Index
		if it.Error.Type != "" {
			failures = append(failures, "id="+it.ID+" "+it.Error.Type+": "+it.Error.Reason)
			infos = append(infos, domain.IndexedInfo{ID: it.ID})
			continue
		}
		infos = append(infos, domain.IndexedInfo{ID: it.ID, Version: it.Version, SeqNo: it.SeqNo, PrimaryTerm: it.PrimaryTerm})
	}
	if out.Errors {
		return infos, &db.Error{Op: db.OpBulk, Err: fmt.Errorf("%d item(s) failed: %s", len(failures), joinLimited(failures, 5))}
	}
	s.log.Debug("bulk indexed", zap.Int("count", len(infos)))
	return infos, nil
}

// DeleteByQuery removes every document matching the query.
func (s *Store) DeleteByQuery(ctx context.Context, index string, q *query.Query) (int64, error) {
	clause, err := emitQueryClause(q)
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}
	data, err := json.Marshal(map[string]any{"query": clause})
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}

	res, err := s.client.DeleteByQuery(
		[]string{index},
		bytes.NewReader(data),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}
	defer closeBody(res)

	if res.IsError() {
		return 0, decodeError(db.OpDeleteByQuery, res)
	}

	var out struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return 0, &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}
	return out.Deleted, nil
}

// joinLimited joins up to max entries, noting how many were cut.
func joinLimited(parts []string, max int) string {
	if len(parts) <= max {
		return strings.Join(parts, "; ")
	}
	return strings.Join(parts[:max], "; ") + "; and " + strconv.Itoa(len(parts)-max) + " more"
}
