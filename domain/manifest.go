package domain

import (
	"encoding/json"
	"os"
	"path/filepath"

	"knowledgecore/errs"
)

// shardKind is the manifest's declared backend type for one shard.
type shardKind string

const (
	shardKindNative    shardKind = "eosshard"
	shardKindThirdParty shardKind = "openzim"
)

type manifestShardEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

type manifestOffsetEntry struct {
	Path   string `json:"path"`
	Offset *int64 `json:"offset"`
}

type manifestDocument struct {
	Shards          []manifestShardEntry   `json:"shards"`
	XapianDatabases []manifestOffsetEntry  `json:"xapian_databases"`
}

// shardSpec is one fully resolved shard description pulled from a parsed
// manifest: its absolute path, its backend kind, and any offset override.
type shardSpec struct {
	AbsPath        string
	Kind           shardKind
	OffsetOverride int64 // -1 means "no override"
}

// parseManifest reads and validates subscriptionDir/manifest.json, per
// SPEC_FULL.md §6.2: shards must be an array of {path, type?} entries, all
// sharing one type; xapian_databases entries key offset overrides by
// shard path.
func parseManifest(subscriptionDir string) ([]shardSpec, error) {
	manifestPath := filepath.Join(subscriptionDir, "manifest.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, errs.Wrap(errs.BadManifest, err, "failed to read manifest %s", manifestPath)
	}

	var doc manifestDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errs.Wrap(errs.BadManifest, err, "manifest %s is not valid JSON", manifestPath)
	}
	if doc.Shards == nil {
		return nil, errs.New(errs.BadManifest, "manifest %s has no \"shards\" array", manifestPath)
	}

	offsets := map[string]int64{}
	for _, e := range doc.XapianDatabases {
		if e.Path == "" {
			return nil, errs.New(errs.BadManifest, "manifest %s has an xapian_databases entry with no path", manifestPath)
		}
		if e.Offset == nil {
			return nil, errs.New(errs.BadManifest, "manifest %s has xapian_databases entry %q with no offset", manifestPath, e.Path)
		}
		offsets[e.Path] = *e.Offset
	}

	var kindSeen shardKind
	specs := make([]shardSpec, 0, len(doc.Shards))
	for _, e := range doc.Shards {
		if e.Path == "" {
			return nil, errs.New(errs.BadManifest, "manifest %s has a shard entry with no path", manifestPath)
		}
		kind := shardKindNative
		if e.Type != "" {
			kind = shardKind(e.Type)
		}
		if kind != shardKindNative && kind != shardKindThirdParty {
			return nil, errs.New(errs.BadManifest, "manifest %s has shard %q with unsupported type %q", manifestPath, e.Path, e.Type)
		}
		if kindSeen == "" {
			kindSeen = kind
		} else if kindSeen != kind {
			return nil, errs.New(errs.BadManifest, "manifest %s mixes shard types %q and %q", manifestPath, kindSeen, kind)
		}

		spec := shardSpec{
			AbsPath: filepath.Join(subscriptionDir, e.Path),
			Kind:    kind,
			OffsetOverride: -1,
		}
		if off, ok := offsets[e.Path]; ok {
			spec.OffsetOverride = off
		}
		specs = append(specs, spec)
	}

	return specs, nil
}
