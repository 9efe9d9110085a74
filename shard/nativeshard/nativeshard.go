// Package nativeshard implements the native ("eosshard") shard backend:
// records keyed by 40-hex-digit id, metadata and blob payload stored in a
// bbolt database, and an embedded full-text index blob addressed by a
// manifest-supplied byte offset.
package nativeshard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"go.etcd.io/bbolt"

	"knowledgecore/errs"
	"knowledgecore/idgrammar"
	"knowledgecore/metaparse"
	"knowledgecore/shard"
	"knowledgecore/shard/idxblob"
	"knowledgecore/taxonomy"
)

var (
	recordsBucket = []byte("records")
	blobsBucket   = []byte("blobs")
)

// recordsFileName and blobFileName are the two files that make up a native
// shard directory: the bbolt record store, and the length-prefixed tar
// index blob. Keeping them as separate files (rather than appending the
// blob to the bbolt file) avoids bbolt misinterpreting trailing bytes past
// its own recorded file size as corruption.
const (
	recordsFileName = "records.bolt"
	blobFileName    = "content.blob"
)

var _ shard.Shard = (*Shard)(nil)

// Shard is the native backend implementation of shard.Shard.
type Shard struct {
	shard.Base

	db       *bbolt.DB
	blobFile *os.File
}

// New constructs a native shard rooted at dir, which must contain
// records.bolt and, optionally, content.blob.
func New(dir string) *Shard {
	return &Shard{Base: shard.NewBase(dir)}
}

// AsyncInit opens the underlying bbolt database and, if present, the index
// blob file. It is safe to call from any goroutine; all shards in a domain
// are initialized concurrently.
func (s *Shard) AsyncInit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Cancelled, err, "native shard init cancelled")
	}

	dbPath := filepath.Join(s.Path(), recordsFileName)
	db, err := bbolt.Open(dbPath, 0644, nil)
	if err != nil {
		return errs.Wrap(errs.Io, err, "failed to open native shard database %s", dbPath)
	}
	s.db = db

	blobPath := filepath.Join(s.Path(), blobFileName)
	if f, err := os.Open(blobPath); err == nil {
		s.blobFile = f
	} else if !os.IsNotExist(err) {
		return errs.Wrap(errs.Io, err, "failed to open native shard index blob %s", blobPath)
	}

	return nil
}

// FindByID looks up a record by its bare 40-hex-digit id (without the
// ekn:/// scheme).
func (s *Shard) FindByID(objectID string) (*shard.Record, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordsBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(objectID))
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "failed to read native shard record %s", objectID)
	}
	if data == nil {
		return nil, nil
	}
	return shard.NewRecord(s, data, func() {}), nil
}

// GetModel materializes a record's metadata document into a typed entity.
func (s *Shard) GetModel(record *shard.Record) (taxonomy.Entity, error) {
	data, ok := record.Native.([]byte)
	if !ok {
		return nil, errs.New(errs.BadFormat, "native shard record does not carry a metadata document")
	}
	return metaparse.Parse(data)
}

// StreamData returns a cursor over the record's payload, stored in the
// blobs bucket keyed by the same id as its metadata record.
func (s *Shard) StreamData(record *shard.Record) (io.ReadCloser, error) {
	id, err := s.idOf(record)
	if err != nil {
		return nil, err
	}
	var payload []byte
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobsBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		if v != nil {
			payload = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "failed to read native shard payload for %s", id)
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

// DataSize returns the uncompressed size of the record's payload.
func (s *Shard) DataSize(record *shard.Record) (uint64, error) {
	id, err := s.idOf(record)
	if err != nil {
		return 0, err
	}
	var size uint64
	err = s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(blobsBucket)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(id))
		size = uint64(len(v))
		return nil
	})
	if err != nil {
		return 0, errs.Wrap(errs.Io, err, "failed to size native shard payload for %s", id)
	}
	return size, nil
}

// TestLink looks up an external URL in the well-known link-table record.
func (s *Shard) TestLink(externalURL string) (string, error) {
	record, err := s.FindByID(idgrammar.LinkTableRecordID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	data, _ := record.Native.([]byte)
	table, err := decodeLinkTable(data)
	if err != nil {
		return "", errs.Wrap(errs.Io, err, "failed to decode link table")
	}
	return table[externalURL], nil
}

// ComputeIndexOffset always reports -1: the native backend has no
// self-describing index-discovery record and relies entirely on the
// manifest's explicit offset override.
func (s *Shard) ComputeIndexOffset() int64 {
	return -1
}

// IndexOffset returns the effective index offset (override-or-computed).
func (s *Shard) IndexOffset() int64 {
	return s.ResolveIndexOffset(s.ComputeIndexOffset)
}

// OverrideIndexOffset is inherited from shard.Base via embedding, but is
// re-declared here in doc form: see shard.Base.OverrideIndexOffset.

// OpenIndex opens the embedded bleve index blob at the shard's effective
// offset. It returns errs.DatabaseInvalid if the shard carries no index.
func (s *Shard) OpenIndex() (bleve.Index, error) {
	offset := s.IndexOffset()
	if offset < 0 || s.blobFile == nil {
		return nil, errs.New(errs.DatabaseInvalid, "native shard %s has no embedded index", s.Path())
	}
	idx, err := idxblob.Open(s.blobFile, offset)
	if err != nil {
		return nil, errs.Wrap(errs.DatabaseInvalid, err, "failed to open native shard index for %s", s.Path())
	}
	return idx, nil
}

func (s *Shard) idOf(record *shard.Record) (string, error) {
	data, ok := record.Native.([]byte)
	if !ok {
		return "", errs.New(errs.BadFormat, "native shard record does not carry a metadata document")
	}
	entity, err := metaparse.Parse(data)
	if err != nil {
		return "", err
	}
	id := entity.Common().ID
	hexID := strings.TrimPrefix(id, idgrammar.Scheme)
	if !idgrammar.IsValidHexID(hexID) {
		return "", errs.New(errs.IdNotValid, "record id %q is not well-formed", id)
	}
	return hexID, nil
}

func decodeLinkTable(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	m := map[string]string{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode link table JSON: %w", err)
	}
	return m, nil
}
