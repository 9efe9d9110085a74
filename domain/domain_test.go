package domain

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"knowledgecore/errs"
	"knowledgecore/idgrammar"
	"knowledgecore/shard"
	"knowledgecore/taxonomy"
)

// fakeShard is a minimal in-memory shard.Shard used to exercise Domain's
// dispatch logic without any real bbolt/zip/bleve backing store.
type fakeShard struct {
	shard.Base
	records  map[string]taxonomy.Entity
	payloads map[string][]byte
	links    map[string]string
	initErr  error
}

func newFakeShard() *fakeShard {
	return &fakeShard{
		Base:     shard.NewBase("fake"),
		records:  map[string]taxonomy.Entity{},
		payloads: map[string][]byte{},
		links:    map[string]string{},
	}
}

func (f *fakeShard) AsyncInit(ctx context.Context) error { return f.initErr }

func (f *fakeShard) FindByID(id string) (*shard.Record, error) {
	e, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return shard.NewRecord(f, e, func() {}), nil
}

func (f *fakeShard) GetModel(record *shard.Record) (taxonomy.Entity, error) {
	return record.Native.(taxonomy.Entity), nil
}

func (f *fakeShard) StreamData(record *shard.Record) (io.ReadCloser, error) {
	entity := record.Native.(taxonomy.Entity)
	return io.NopCloser(strings.NewReader(string(f.payloads[entity.Common().ID]))), nil
}

func (f *fakeShard) DataSize(record *shard.Record) (uint64, error) {
	entity := record.Native.(taxonomy.Entity)
	return uint64(len(f.payloads[entity.Common().ID])), nil
}

func (f *fakeShard) TestLink(url string) (string, error) {
	return f.links[url], nil
}

func (f *fakeShard) ComputeIndexOffset() int64 { return -1 }
func (f *fakeShard) IndexOffset() int64        { return -1 }

var _ shard.Shard = (*fakeShard)(nil)

func TestGetObjectFirstHitWins(t *testing.T) {
	hexID := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	first := newFakeShard()
	second := newFakeShard()
	want := &taxonomy.Content{Base: taxonomy.Base{ID: idgrammar.Canonical(hexID), Title: "from first shard"}}
	first.records[hexID] = want
	second.records[hexID] = &taxonomy.Content{Base: taxonomy.Base{ID: idgrammar.Canonical(hexID), Title: "from second shard"}}

	d := &Domain{shards: []shard.Shard{first, second}}

	got, err := d.GetObject(idgrammar.Canonical(hexID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Common().Title != "from first shard" {
		t.Fatalf("expected the first matching shard to win, got %q", got.Common().Title)
	}
}

func TestGetObjectNotFound(t *testing.T) {
	d := &Domain{shards: []shard.Shard{newFakeShard()}}
	hexID := "4dba9091495e8f277893e0d400e9e092f9f6f551"
	_, err := d.GetObject(idgrammar.Canonical(hexID))
	if !errs.Is(err, errs.IdNotFound) {
		t.Fatalf("expected IdNotFound, got %v", err)
	}
}

func TestGetObjectInvalidURI(t *testing.T) {
	d := &Domain{shards: []shard.Shard{newFakeShard()}}
	_, err := d.GetObject("not-a-uri")
	if !errs.Is(err, errs.IdNotValid) {
		t.Fatalf("expected IdNotValid, got %v", err)
	}
}

func TestTestLinkFallsThroughToLaterShard(t *testing.T) {
	first := newFakeShard()
	second := newFakeShard()
	second.links["https://example.com/a"] = idgrammar.Canonical("4dba9091495e8f277893e0d400e9e092f9f6f551")

	d := &Domain{shards: []shard.Shard{first, second}}
	uri, err := d.TestLink("https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uri == "" {
		t.Fatalf("expected TestLink to fall through to the second shard's link table")
	}
}

func TestTestLinkNoMatch(t *testing.T) {
	d := &Domain{shards: []shard.Shard{newFakeShard(), newFakeShard()}}
	uri, err := d.TestLink("https://example.com/nowhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uri != "" {
		t.Fatalf("expected no match, got %q", uri)
	}
}

func TestInitShardsParallelFailsFastOnOneError(t *testing.T) {
	ok1 := newFakeShard()
	bad := newFakeShard()
	bad.initErr = errors.New("disk fell off")
	ok2 := newFakeShard()

	err := initShardsParallel(context.Background(), []shard.Shard{ok1, bad, ok2})
	if err == nil {
		t.Fatalf("expected an error when one shard's init fails")
	}
}

func TestInitShardsParallelAllSucceed(t *testing.T) {
	err := initShardsParallel(context.Background(), []shard.Shard{newFakeShard(), newFakeShard()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewObjectKeyForURIThirdParty(t *testing.T) {
	key, err := objectKeyForURI(idgrammar.ThirdPartyScheme + "A/some/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "A/some/page" {
		t.Fatalf("objectKeyForURI = %q, want %q", key, "A/some/page")
	}
}

func TestNormalizeMatchID(t *testing.T) {
	if got := normalizeMatchID("A/some/page"); got != idgrammar.ThirdPartyScheme+"A/some/page" {
		t.Fatalf("got %q", got)
	}
	native := "ekn://app/4dba9091495e8f277893e0d400e9e092f9f6f551"
	if got := normalizeMatchID(native); got != native {
		t.Fatalf("native id should pass through unchanged, got %q", got)
	}
}
