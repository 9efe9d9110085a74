package nativeshard

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"knowledgecore/errs"
	"knowledgecore/idgrammar"
)

const testHexID = "4dba9091495e8f277893e0d400e9e092f9f6f552"

func buildFixture(t *testing.T, dir string, records map[string][]byte, blobs map[string][]byte) {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(dir, recordsFileName), 0644, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		rb, err := tx.CreateBucketIfNotExists(recordsBucket)
		if err != nil {
			return err
		}
		for id, doc := range records {
			if err := rb.Put([]byte(id), doc); err != nil {
				return err
			}
		}
		bb, err := tx.CreateBucketIfNotExists(blobsBucket)
		if err != nil {
			return err
		}
		for id, payload := range blobs {
			if err := bb.Put([]byte(id), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
}

func articleDoc(t *testing.T, hexID, title string) []byte {
	t.Helper()
	doc := map[string]interface{}{
		"@id":    idgrammar.Canonical(hexID),
		"@type":  "ekn://_vocab/ArticleObject",
		"title":  title,
		"tags":   []string{"physics"},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return b
}

func TestFindByIDAndGetModel(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir, map[string][]byte{
		testHexID: articleDoc(t, testHexID, "Gravity"),
	}, nil)

	s := New(dir)
	if err := s.AsyncInit(context.Background()); err != nil {
		t.Fatalf("AsyncInit: %v", err)
	}

	record, err := s.FindByID(testHexID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if record == nil {
		t.Fatalf("expected a record, got nil")
	}

	entity, err := s.GetModel(record)
	if err != nil {
		t.Fatalf("GetModel: %v", err)
	}
	if entity.Common().Title != "Gravity" {
		t.Fatalf("Title = %q, want %q", entity.Common().Title, "Gravity")
	}
}

func TestFindByIDMiss(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir, nil, nil)
	s := New(dir)
	if err := s.AsyncInit(context.Background()); err != nil {
		t.Fatalf("AsyncInit: %v", err)
	}
	record, err := s.FindByID(testHexID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if record != nil {
		t.Fatalf("expected a clean miss, got a record")
	}
}

func TestStreamDataAndDataSize(t *testing.T) {
	dir := t.TempDir()
	payload := []byte("full article body")
	buildFixture(t, dir, map[string][]byte{
		testHexID: articleDoc(t, testHexID, "Gravity"),
	}, map[string][]byte{
		testHexID: payload,
	})

	s := New(dir)
	if err := s.AsyncInit(context.Background()); err != nil {
		t.Fatalf("AsyncInit: %v", err)
	}
	record, err := s.FindByID(testHexID)
	if err != nil || record == nil {
		t.Fatalf("FindByID: %v", err)
	}

	size, err := s.DataSize(record)
	if err != nil {
		t.Fatalf("DataSize: %v", err)
	}
	if size != uint64(len(payload)) {
		t.Fatalf("DataSize = %d, want %d", size, len(payload))
	}

	rc, err := s.StreamData(record)
	if err != nil {
		t.Fatalf("StreamData: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, len(payload))
	if _, err := rc.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != string(payload) {
		t.Fatalf("streamed payload = %q, want %q", buf, payload)
	}
}

func TestTestLinkWithNoLinkTable(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir, nil, nil)
	s := New(dir)
	if err := s.AsyncInit(context.Background()); err != nil {
		t.Fatalf("AsyncInit: %v", err)
	}
	uri, err := s.TestLink("https://example.com/a")
	if err != nil {
		t.Fatalf("TestLink: %v", err)
	}
	if uri != "" {
		t.Fatalf("expected no match without a link table, got %q", uri)
	}
}

func TestTestLinkResolvesFromLinkTable(t *testing.T) {
	dir := t.TempDir()
	linkTable, err := json.Marshal(map[string]string{
		"https://example.com/a": idgrammar.Canonical(testHexID),
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	buildFixture(t, dir, map[string][]byte{
		idgrammar.LinkTableRecordID: linkTable,
	}, nil)

	s := New(dir)
	if err := s.AsyncInit(context.Background()); err != nil {
		t.Fatalf("AsyncInit: %v", err)
	}
	uri, err := s.TestLink("https://example.com/a")
	if err != nil {
		t.Fatalf("TestLink: %v", err)
	}
	if uri != idgrammar.Canonical(testHexID) {
		t.Fatalf("TestLink = %q, want %q", uri, idgrammar.Canonical(testHexID))
	}
}

func TestOpenIndexWithoutBlobIsDatabaseInvalid(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir, nil, nil)
	s := New(dir)
	if err := s.AsyncInit(context.Background()); err != nil {
		t.Fatalf("AsyncInit: %v", err)
	}
	_, err := s.OpenIndex()
	if !errs.Is(err, errs.DatabaseInvalid) {
		t.Fatalf("expected DatabaseInvalid, got %v", err)
	}
}

func TestComputeIndexOffsetAlwaysNegativeOne(t *testing.T) {
	s := New(t.TempDir())
	if off := s.ComputeIndexOffset(); off != -1 {
		t.Fatalf("ComputeIndexOffset() = %d, want -1", off)
	}
}

func TestAsyncInitMissingDirFails(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := s.AsyncInit(context.Background()); err == nil {
		t.Fatalf("expected an error opening a database in a nonexistent directory")
	}
}

func TestAsyncInitRespectsCancelledContext(t *testing.T) {
	dir := t.TempDir()
	buildFixture(t, dir, nil, nil)
	s := New(dir)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.AsyncInit(ctx); !errs.Is(err, errs.Cancelled) {
		t.Fatalf("expected Cancelled, got %v", err)
	}
}
