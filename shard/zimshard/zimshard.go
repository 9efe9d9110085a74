// Package zimshard implements the third-party ("openzim") shard backend.
// Records live inside a standard zip archive (the idiomatic Go stand-in for
// the original ZIM container — see DESIGN.md), keyed by
// "<namespace-char>/<url-suffix>" entry names. A redirect table and a mime
// table travel alongside the content entries as small JSON sidecar entries.
package zimshard

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"knowledgecore/errs"
	"knowledgecore/idgrammar"
	"knowledgecore/metaparse"
	"knowledgecore/shard"
	"knowledgecore/shard/idxblob"
	"knowledgecore/taxonomy"

	"github.com/blevesearch/bleve/v2"
)

// FulltextIndexPath is the fixed record path whose byte offset within the
// archive doubles as the default full-text index offset.
const FulltextIndexPath = "X/fulltext/xapian"

const (
	redirectsEntry = "meta/redirects.json"
	mimeEntry      = "meta/mime.json"
)

var _ shard.Shard = (*Shard)(nil)

// Shard is the third-party backend implementation of shard.Shard.
type Shard struct {
	shard.Base

	reader    *zip.ReadCloser
	entries   map[string]*zip.File
	redirects map[string]string
	mime      map[string]string
}

// New constructs a zim shard backed by the zip archive at path.
func New(path string) *Shard {
	return &Shard{Base: shard.NewBase(path)}
}

// AsyncInit opens the zip archive and loads its redirect/mime sidecars.
func (s *Shard) AsyncInit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.Cancelled, err, "zim shard init cancelled")
	}

	r, err := zip.OpenReader(s.Path())
	if err != nil {
		return errs.Wrap(errs.Io, err, "failed to open zim archive %s", s.Path())
	}
	s.reader = r

	entries := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		entries[f.Name] = f
	}
	s.entries = entries

	s.redirects = map[string]string{}
	if f, ok := entries[redirectsEntry]; ok {
		if err := readJSONEntry(f, &s.redirects); err != nil {
			return errs.Wrap(errs.Io, err, "failed to read zim redirect table")
		}
	}

	s.mime = map[string]string{}
	if f, ok := entries[mimeEntry]; ok {
		if err := readJSONEntry(f, &s.mime); err != nil {
			return errs.Wrap(errs.Io, err, "failed to read zim mime table")
		}
	}

	return nil
}

// FindByID looks up "<namespace>/<url-suffix>", following one redirect hop.
func (s *Shard) FindByID(objectID string) (*shard.Record, error) {
	path := objectID
	if target, ok := s.redirects[path]; ok {
		path = target
	}
	if _, ok := s.entries[path]; !ok {
		return nil, nil
	}
	return shard.NewRecord(s, path, func() {}), nil
}

// GetModel synthesizes a typed entity from the record's namespace and mime
// type, matching the namespace→discriminator mapping of the original
// archive format.
func (s *Shard) GetModel(record *shard.Record) (taxonomy.Entity, error) {
	path, ok := record.Native.(string)
	if !ok {
		return nil, errs.New(errs.BadFormat, "zim shard record does not carry a path")
	}
	namespace, suffix, err := idgrammar.ParseThirdPartyPath(path)
	if err != nil {
		return nil, errs.Wrap(errs.BadFormat, err, "malformed zim record path %q", path)
	}

	var typ string
	var tags []string
	switch namespace {
	case 'A':
		typ = "ekn://_vocab/ArticleObject"
		tags = []string{"EknArticleObject"}
	case 'I':
		typ = "ekn://_vocab/ImageObject"
		tags = []string{"EknMediaObject"}
	default:
		typ = "ekn://_vocab/ContentObject"
	}

	title := suffix
	if i := strings.LastIndex(suffix, "/"); i >= 0 {
		title = suffix[i+1:]
	}

	doc := map[string]interface{}{
		"@type":             typ,
		"@id":               fmt.Sprintf("%s%c/%s", idgrammar.ThirdPartyScheme, namespace, suffix),
		"title":             title,
		"contentType":       s.mimeFor(path),
		"isServerTemplated": true,
	}
	if len(tags) > 0 {
		tagsIface := make([]interface{}, len(tags))
		for i, t := range tags {
			tagsIface[i] = t
		}
		doc["tags"] = tagsIface
	}

	entity, err := metaparse.ParseNode(doc)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// StreamData returns the raw bytes of the record's zip entry.
func (s *Shard) StreamData(record *shard.Record) (io.ReadCloser, error) {
	path, ok := record.Native.(string)
	if !ok {
		return nil, errs.New(errs.BadFormat, "zim shard record does not carry a path")
	}
	f, ok := s.entries[path]
	if !ok {
		return nil, errs.New(errs.IdNotFound, "zim record %q vanished", path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errs.Wrap(errs.Io, err, "failed to open zim entry %q", path)
	}
	return rc, nil
}

// DataSize returns the record's uncompressed size.
func (s *Shard) DataSize(record *shard.Record) (uint64, error) {
	path, ok := record.Native.(string)
	if !ok {
		return 0, errs.New(errs.BadFormat, "zim shard record does not carry a path")
	}
	f, ok := s.entries[path]
	if !ok {
		return 0, errs.New(errs.IdNotFound, "zim record %q vanished", path)
	}
	return f.UncompressedSize64, nil
}

// TestLink is unsupported by this backend: it carries no external link
// table, only an internal redirect table.
func (s *Shard) TestLink(externalURL string) (string, error) {
	return "", nil
}

// ComputeIndexOffset finds the fixed-path fulltext-index record and returns
// its byte offset within the archive file, a real literal offset obtained
// via (*zip.File).DataOffset().
func (s *Shard) ComputeIndexOffset() int64 {
	f, ok := s.entries[FulltextIndexPath]
	if !ok {
		return -1
	}
	offset, err := f.DataOffset()
	if err != nil {
		return -1
	}
	return offset
}

// IndexOffset returns the effective index offset (override-or-computed).
func (s *Shard) IndexOffset() int64 {
	return s.ResolveIndexOffset(s.ComputeIndexOffset)
}

// OpenIndex opens the embedded bleve index blob at the shard's effective
// offset, reading directly out of the open zip file by byte offset.
func (s *Shard) OpenIndex() (bleve.Index, error) {
	offset := s.IndexOffset()
	if offset < 0 {
		return nil, errs.New(errs.DatabaseInvalid, "zim shard %s has no embedded index", s.Path())
	}
	f, err := os.Open(s.Path())
	if err != nil {
		return nil, errs.Wrap(errs.DatabaseInvalid, err, "failed to reopen zim archive %s for indexing", s.Path())
	}
	idx, err := idxblob.Open(f, offset)
	if err != nil {
		return nil, errs.Wrap(errs.DatabaseInvalid, err, "failed to open zim shard index for %s", s.Path())
	}
	return idx, nil
}

func (s *Shard) mimeFor(path string) string {
	if m, ok := s.mime[path]; ok {
		return m
	}
	return "application/octet-stream"
}

func readJSONEntry(f *zip.File, target interface{}) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return json.NewDecoder(rc).Decode(target)
}
