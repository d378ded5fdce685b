package domain

// IndexedInfo is the ephemeral record returned after a write: the store-side
// identifier and concurrency metadata, applied back onto the saved object.
type IndexedInfo struct {
	ID          string
	Version     int64
	SeqNo       int64
	PrimaryTerm int64
}
