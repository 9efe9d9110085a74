// Package idxblob implements the on-disk convention shared by both shard
// backends for embedding a full-text index inside (or alongside) a shard
// file: an 8-byte big-endian length prefix followed by a tar archive of a
// bleve index directory. Neither shard backend's native container format
// (bbolt or zip) can hold an arbitrary directory tree natively, so both
// backends linearize their bleve index through this one helper.
package idxblob

import (
	"archive/tar"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
)

// Write tars the bleve index directory at indexDir and writes it to w as
// [8-byte big-endian length][tar bytes].
func Write(w io.Writer, indexDir string) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	walkErr := filepath.Walk(indexDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(indexDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("idxblob: failed to tar index directory %s: %w", indexDir, walkErr)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("idxblob: failed to finalize tar stream: %w", err)
	}

	var lenPrefix [8]byte
	binary.BigEndian.PutUint64(lenPrefix[:], uint64(buf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("idxblob: failed to write length prefix: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("idxblob: failed to write tar payload: %w", err)
	}
	return nil
}

// Open reads the length-prefixed tar blob at offset within r, extracts it
// into a fresh temp directory, and opens the resulting bleve index. The
// caller is responsible for eventually closing the returned index. The
// temp directory is left in place: nothing in this package removes it.
func Open(r io.ReaderAt, offset int64) (bleve.Index, error) {
	var lenPrefix [8]byte
	if _, err := r.ReadAt(lenPrefix[:], offset); err != nil {
		return nil, fmt.Errorf("idxblob: failed to read length prefix at offset %d: %w", offset, err)
	}
	length := binary.BigEndian.Uint64(lenPrefix[:])

	section := io.NewSectionReader(r, offset+8, int64(length))

	dir, err := os.MkdirTemp("", "knowledgecore-idx-*")
	if err != nil {
		return nil, fmt.Errorf("idxblob: failed to create temp dir: %w", err)
	}

	tr := tar.NewReader(section)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("idxblob: failed to read tar entry: %w", err)
		}
		target := filepath.Join(dir, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("idxblob: failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, fmt.Errorf("idxblob: failed to create parent of %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
			if err != nil {
				return nil, fmt.Errorf("idxblob: failed to create %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return nil, fmt.Errorf("idxblob: failed to write %s: %w", target, err)
			}
			f.Close()
		}
	}

	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("idxblob: failed to open extracted index at %s: %w", dir, err)
	}
	return idx, nil
}
