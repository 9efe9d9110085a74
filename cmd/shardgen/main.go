// Command shardgen builds a native ("eosshard") shard fixture directory
// from a folder of JSON metadata documents: a bbolt record store plus an
// embedded, tar-packaged bleve full-text index.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"go.etcd.io/bbolt"

	"knowledgecore/asyncwork"
	"knowledgecore/idgrammar"
	"knowledgecore/indexer"
	"knowledgecore/metaparse"
	"knowledgecore/shard/idxblob"
)

var (
	recordsBucket = []byte("records")
	blobsBucket   = []byte("blobs")
)

func main() {
	var (
		docsDir       = flag.String("docs-dir", "", "Directory of *.json metadata documents to ingest")
		outDir        = flag.String("out-dir", "", "Destination shard directory (created if absent)")
		payloadDir    = flag.String("payload-dir", "", "Optional directory of <hex-id> payload files")
		concurrency   = flag.Int("concurrency", 4, "Number of documents parsed concurrently")
		publishBucket = flag.String("publish-s3-bucket", "", "Optional S3 bucket to publish the built shard to, for domains configured with s3Sync")
		publishPrefix = flag.String("publish-s3-prefix", "", "S3 key prefix to publish under; must match the consuming domain's s3Sync.prefix")
		publishDir    = flag.String("publish-dir", "", "Optional local directory to publish the built shard to, as a stand-in for S3 during development")
	)
	flag.Parse()

	if *docsDir == "" || *outDir == "" {
		log.Fatal("shardgen: -docs-dir and -out-dir are required")
	}

	if err := run(*docsDir, *outDir, *payloadDir, *concurrency); err != nil {
		log.Fatalf("shardgen: %v", err)
	}

	if err := publish(*outDir, *publishBucket, *publishPrefix, *publishDir); err != nil {
		log.Fatalf("shardgen: publish: %v", err)
	}
}

// publish uploads the freshly built shard directory to whichever shard
// storage the caller configured, so a domain with a matching s3Sync
// configuration can pull it back down via domain.S3Fetcher.Sync: the keys
// S3Storage writes under bucket/prefix are exactly the relative paths Sync
// mirrors into the subscription directory. At most one of bucket/localDir
// should be set; publish is a no-op if neither is.
func publish(shardDir, bucket, prefix, localDir string) error {
	var storage indexer.ShardStorage
	switch {
	case bucket != "":
		s3Storage, err := indexer.NewS3Storage(bucket, prefix)
		if err != nil {
			return err
		}
		storage = s3Storage
	case localDir != "":
		localStorage, err := indexer.NewLocalFileStorage(localDir)
		if err != nil {
			return err
		}
		storage = localStorage
	default:
		return nil
	}
	return storage.UploadShard(shardDir)
}

type parsedDoc struct {
	hexID            string
	raw              []byte
	title            string
	synopsis         string
	tags             []string
	contentType      string
	sequenceNumber   uint64
	lastModifiedDate string
	dataRef          string
}

func run(docsDir, outDir, payloadDir string, concurrency int) error {
	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			paths = append(paths, filepath.Join(docsDir, e.Name()))
		}
	}

	docs := make([]*parsedDoc, len(paths))
	pool := asyncwork.New(concurrency)
	tasks := make([]asyncwork.Task, len(paths))
	for i, p := range paths {
		i, p := i, p
		tasks[i] = func() error {
			doc, err := parseDoc(p)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		}
	}
	if errs := pool.Run(tasks); len(errs) > 0 {
		return errs[0]
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	if err := writeRecords(outDir, docs, payloadDir); err != nil {
		return err
	}

	indexDir, err := os.MkdirTemp("", "shardgen-index-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(indexDir)

	if err := buildIndex(indexDir, docs); err != nil {
		return err
	}

	blobPath := filepath.Join(outDir, "content.blob")
	out, err := os.Create(blobPath)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := idxblob.Write(out, indexDir); err != nil {
		return err
	}

	log.Printf("shardgen: wrote %d records to %s (index offset 0)", len(docs), outDir)
	return nil
}

func parseDoc(path string) (*parsedDoc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	entity, err := metaparse.Parse(raw)
	if err != nil {
		return nil, err
	}
	common := entity.Common()
	hexID := strings.TrimPrefix(common.ID, idgrammar.Scheme)
	if !idgrammar.IsValidHexID(hexID) {
		hexID = idgrammar.SyntheticID(path)
	}
	return &parsedDoc{
		hexID:            hexID,
		raw:              raw,
		title:            common.Title,
		synopsis:         common.Synopsis,
		tags:             common.Tags,
		contentType:      common.ContentType,
		sequenceNumber:   common.SequenceNumber,
		lastModifiedDate: common.LastModifiedDate,
		dataRef:          idgrammar.Canonical(hexID),
	}, nil
}

func writeRecords(outDir string, docs []*parsedDoc, payloadDir string) error {
	db, err := bbolt.Open(filepath.Join(outDir, "records.bolt"), 0644, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		records, err := tx.CreateBucketIfNotExists(recordsBucket)
		if err != nil {
			return err
		}
		blobs, err := tx.CreateBucketIfNotExists(blobsBucket)
		if err != nil {
			return err
		}
		for _, d := range docs {
			if err := records.Put([]byte(d.hexID), d.raw); err != nil {
				return err
			}
			if payloadDir == "" {
				continue
			}
			payload, err := os.ReadFile(filepath.Join(payloadDir, d.hexID))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			if err := blobs.Put([]byte(d.hexID), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

type indexDoc struct {
	Title            string   `json:"title"`
	Synopsis         string   `json:"synopsis"`
	Tags             []string `json:"tags"`
	ID               string   `json:"id"`
	ContentType      string   `json:"contentType"`
	SequenceNumber   uint64   `json:"sequenceNumber"`
	LastModifiedDate string   `json:"lastModifiedDate,omitempty"`
	Data             string   `json:"data"`
}

func buildIndex(indexDir string, docs []*parsedDoc) error {
	idx, err := bleve.New(indexDir, indexer.ContentIndexMapping())
	if err != nil {
		return err
	}
	defer idx.Close()

	for _, d := range docs {
		doc := indexDoc{
			Title:            d.title,
			Synopsis:         d.synopsis,
			Tags:             d.tags,
			ID:               d.hexID,
			ContentType:      d.contentType,
			SequenceNumber:   d.sequenceNumber,
			LastModifiedDate: d.lastModifiedDate,
			Data:             d.dataRef,
		}
		if err := idx.Index(d.hexID, doc); err != nil {
			return err
		}
	}

	meta, _ := json.Marshal(struct {
		Prefixes []struct {
			Field  string `json:"field"`
			Prefix string `json:"prefix"`
		} `json:"prefixes"`
	}{})
	return idx.SetInternal([]byte("XbPrefixes"), meta)
}
