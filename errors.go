package esmap

import "github.com/kailas-cloud/esmap/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnknownProperty     = domain.ErrUnknownProperty
	ErrInvalidQueryMethod  = domain.ErrInvalidQueryMethod
	ErrUnsupportedOperator = domain.ErrUnsupportedOperator
	ErrConversion          = domain.ErrConversion
	ErrDocumentNotFound    = domain.ErrDocumentNotFound
	ErrIndexNotFound       = domain.ErrIndexNotFound
	ErrIndexExists         = domain.ErrIndexExists
	ErrUnknownAlias        = domain.ErrUnknownAlias
	ErrVersionConflict     = domain.ErrVersionConflict
	ErrScrollExpired       = domain.ErrScrollExpired
)
