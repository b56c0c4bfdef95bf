package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pebblestore "github.com/hyperrixel/logos/internal/storage/pebble"
)

// ErrUnknownBlob reports a reference to an unregistered blob.
var ErrUnknownBlob = errors.New("unknown blob")

var blobPrefix = []byte("blob/")

func blobKey(id string) []byte {
	k := make([]byte, 0, len(blobPrefix)+len(id))
	k = append(k, blobPrefix...)
	k = append(k, id...)
	return k
}

// BlobInfo describes one registered attachment payload. The payload
// bytes themselves live outside the log; entries carry references only.
type BlobInfo struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	CreatedAtMs int64  `json:"createdAtMs"`
}

// BlobRegistry records attachment metadata in the store so the pipeline
// can verify that every attachment an entry names was registered first.
type BlobRegistry struct {
	db    *pebblestore.DB
	nowMs func() int64
}

// NewBlobRegistry binds a registry to the store.
func NewBlobRegistry(db *pebblestore.DB) *BlobRegistry {
	return &BlobRegistry{db: db, nowMs: func() int64 { return time.Now().UnixMilli() }}
}

// Register records blob metadata and returns it with a fresh id.
func (r *BlobRegistry) Register(contentType string, size int64) (BlobInfo, error) {
	if strings.TrimSpace(contentType) == "" {
		return BlobInfo{}, errors.New("blob content type is empty")
	}
	if size < 0 {
		return BlobInfo{}, fmt.Errorf("negative blob size %d", size)
	}
	info := BlobInfo{
		ID:          uuid.NewString(),
		ContentType: contentType,
		Size:        size,
		CreatedAtMs: r.nowMs(),
	}
	value, err := json.Marshal(info)
	if err != nil {
		return BlobInfo{}, err
	}
	if err := r.db.Set(blobKey(info.ID), value); err != nil {
		return BlobInfo{}, err
	}
	return info, nil
}

// Get looks up registered blob metadata.
func (r *BlobRegistry) Get(id string) (BlobInfo, error) {
	b, err := r.db.Get(blobKey(id))
	if errors.Is(err, pebblestore.ErrKeyNotFound) {
		return BlobInfo{}, fmt.Errorf("%w: %q", ErrUnknownBlob, id)
	}
	if err != nil {
		return BlobInfo{}, err
	}
	var info BlobInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return BlobInfo{}, err
	}
	return info, nil
}

// Has reports whether the blob id is registered.
func (r *BlobRegistry) Has(id string) bool {
	ok, err := r.db.Has(blobKey(id))
	return err == nil && ok
}
