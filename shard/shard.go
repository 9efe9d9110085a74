// Package shard defines the abstract shard/record capability set that both
// concrete backends (native and third-party) implement.
package shard

import (
	"context"
	"io"
	"sync"

	"knowledgecore/taxonomy"
)

// Shard is the capability set every backend exposes. Implementations are
// safe for concurrent read access once AsyncInit has completed.
type Shard interface {
	// Path returns the shard's on-disk path.
	Path() string
	// FindByID looks up a record by its backend-native key. It returns
	// (nil, nil) on a clean miss.
	FindByID(objectID string) (*Record, error)
	// GetModel materializes a record's metadata into a typed entity.
	GetModel(record *Record) (taxonomy.Entity, error)
	// StreamData returns a cursor over the record's payload bytes.
	StreamData(record *Record) (io.ReadCloser, error)
	// DataSize returns the record's uncompressed payload size.
	DataSize(record *Record) (uint64, error)
	// TestLink looks up an external URL in the shard's link table, if any.
	// It returns ("", nil) when the shard has no link table or no match.
	TestLink(externalURL string) (string, error)
	// ComputeIndexOffset derives the byte offset of the embedded full-text
	// index blob, or -1 if the shard carries none.
	ComputeIndexOffset() int64
	// IndexOffset returns the effective offset: the manifest override if
	// one was set, otherwise the lazily computed default.
	IndexOffset() int64
	// OverrideIndexOffset records a manifest-supplied offset override.
	OverrideIndexOffset(offset int64)
	// AsyncInit performs backend-specific open/validate work.
	AsyncInit(ctx context.Context) error
}

// Base is embedded by every concrete shard backend; it implements the
// offset-override-then-lazy-compute-and-cache bookkeeping shared by both
// backends, so each backend need only implement ComputeIndexOffset and the
// data-access methods.
type Base struct {
	path string

	mu                 sync.Mutex
	offsetOverride     int64
	calculatedOffset   int64
	calculatedOffsetSet bool
}

// NewBase constructs the shared offset/path bookkeeping for one shard file.
func NewBase(path string) Base {
	return Base{path: path, offsetOverride: -1, calculatedOffset: -1}
}

// Path returns the shard's on-disk path.
func (b *Base) Path() string { return b.path }

// OverrideIndexOffset records a manifest-supplied offset override.
func (b *Base) OverrideIndexOffset(offset int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.offsetOverride = offset
}

// ResolveIndexOffset returns the override if set, else lazily invokes
// compute to obtain and cache the backend's default offset.
func (b *Base) ResolveIndexOffset(compute func() int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.offsetOverride >= 0 {
		return b.offsetOverride
	}
	if !b.calculatedOffsetSet {
		b.calculatedOffset = compute()
		b.calculatedOffsetSet = true
	}
	return b.calculatedOffset
}

// Record is a short-lived handle to one record inside one shard. It boxes
// a backend-native handle behind a drop action and is reference-counted;
// dropping the last reference invokes the drop action.
type Record struct {
	Owner  Shard
	Native interface{}

	mu       sync.Mutex
	refCount int32
	drop     func()
	dropped  bool
}

// NewRecord constructs a record wrapping a backend-native handle, with the
// drop action the owning backend supplies to release it.
func NewRecord(owner Shard, native interface{}, drop func()) *Record {
	return &Record{Owner: owner, Native: native, refCount: 1, drop: drop}
}

// Ref increments the reference count.
func (r *Record) Ref() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refCount++
}

// Unref decrements the reference count, invoking the drop action when it
// reaches zero.
func (r *Record) Unref() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refCount--
	if r.refCount <= 0 && !r.dropped {
		r.dropped = true
		if r.drop != nil {
			r.drop()
		}
	}
}
