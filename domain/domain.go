// Package domain implements one subscription set for one application:
// shard discovery, the federated database manager, per-request index
// serialization, and asynchronous record/query operations.
package domain

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"knowledgecore/errs"
	"knowledgecore/idgrammar"
	"knowledgecore/query"
	"knowledgecore/resultset"
	"knowledgecore/searchdb"
	"knowledgecore/shard"
	"knowledgecore/shard/nativeshard"
	"knowledgecore/shard/zimshard"
	"knowledgecore/taxonomy"
)

// Domain owns one application's content: its shard set, database manager,
// and per-request index serialization. A Domain is constructed once and is
// thereafter read-only with respect to its shard set.
type Domain struct {
	AppID    string
	Path     string
	Language string

	shards          []shard.Shard
	thirdPartyIndex bool

	indexMu sync.Mutex
	db      *searchdb.Manager
}

// Options configures construction beyond the mandatory app id / path.
type Options struct {
	Path     string // explicit subscription directory; overrides discovery
	Language string
	// S3Sync, if non-nil, is invoked before local discovery to pull down a
	// subscription bundle from object storage (see fetch.go).
	S3Sync func(ctx context.Context, destDir string) error
}

// New discovers an application's subscriptions, instantiates every shard,
// and runs the parallel init barrier. It returns an error (never a
// partially published Domain) if discovery or any shard's init fails.
func New(ctx context.Context, appID string, opts Options) (*Domain, error) {
	if appID == "" && opts.Path == "" {
		return nil, errs.New(errs.AppIdNotSet, "neither app id nor explicit path was provided")
	}

	var subscriptionDirs []string
	if opts.Path != "" {
		info, err := os.Stat(opts.Path)
		if err != nil || !info.IsDir() {
			return nil, errs.New(errs.PathNotFound, "explicit path %q is missing or not a directory", opts.Path)
		}
		subscriptionDirs = []string{opts.Path}
	} else {
		if opts.S3Sync != nil {
			primary := primarySubscriptionsDir(appID)
			if err := opts.S3Sync(ctx, primary); err != nil {
				log.Printf("domain: subscription bundle sync failed for %s, continuing with local state: %v", appID, err)
			}
		}
		subscriptionDirs = discoverSubscriptionDirs(appID)
	}

	var specs []shardSpec
	for _, dir := range subscriptionDirs {
		s, err := parseManifest(dir)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s...)
	}

	if len(specs) == 0 {
		return nil, errs.New(errs.Empty, "no shards discovered for app id %q", appID)
	}

	var kindSeen shardKind
	for _, s := range specs {
		if kindSeen == "" {
			kindSeen = s.Kind
		} else if kindSeen != s.Kind {
			return nil, errs.New(errs.BadManifest, "domain %q mixes shard types across subscriptions", appID)
		}
	}

	shards := make([]shard.Shard, len(specs))
	for i, s := range specs {
		switch s.Kind {
		case shardKindNative:
			shards[i] = nativeshard.New(s.AbsPath)
		case shardKindThirdParty:
			shards[i] = zimshard.New(s.AbsPath)
		}
		if s.OffsetOverride >= 0 {
			shards[i].OverrideIndexOffset(s.OffsetOverride)
		}
	}

	if err := initShardsParallel(ctx, shards); err != nil {
		return nil, err
	}

	d := &Domain{
		AppID:           appID,
		Path:            opts.Path,
		Language:        opts.Language,
		shards:          shards,
		thirdPartyIndex: kindSeen == shardKindThirdParty,
		db:              searchdb.New(toIndexOpeners(shards)),
	}
	return d, nil
}

// toIndexOpeners narrows []shard.Shard to the subset of shards that also
// implement searchdb.IndexOpener, in order. Every current backend
// (nativeshard.Shard, zimshard.Shard) satisfies it.
func toIndexOpeners(shards []shard.Shard) []searchdb.IndexOpener {
	openers := make([]searchdb.IndexOpener, 0, len(shards))
	for _, s := range shards {
		if opener, ok := s.(searchdb.IndexOpener); ok {
			openers = append(openers, opener)
		}
	}
	return openers
}

func initShardsParallel(ctx context.Context, shards []shard.Shard) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range shards {
		s := s
		g.Go(func() error {
			return s.AsyncInit(gctx)
		})
	}
	return g.Wait()
}

func primarySubscriptionsDir(appID string) string {
	return dataHome() + "/" + appID + "/" + subscriptionsSuffix
}

// TestLink consults each shard's link table in order; the first hit wins.
func (d *Domain) TestLink(externalURL string) (string, error) {
	for _, s := range d.shards {
		uri, err := s.TestLink(externalURL)
		if err != nil {
			return "", err
		}
		if uri != "" {
			return uri, nil
		}
	}
	return "", nil
}

// objectKeyForURI derives the backend-appropriate lookup key for a URI:
// a 40-hex-digit id for native ekn:// URIs, or a bare namespace path for
// ekn+zim:/// URIs.
func objectKeyForURI(uri string) (key string, err error) {
	if strings.HasPrefix(uri, idgrammar.ThirdPartyScheme) {
		return strings.TrimPrefix(uri, idgrammar.ThirdPartyScheme), nil
	}
	if hexID, ok := idgrammar.ExtractHexID(uri); ok {
		return hexID, nil
	}
	return "", errs.New(errs.IdNotValid, "uri %q does not match the id grammar", uri)
}

// GetObject extracts the object id from uri, queries each shard in order
// (first hit wins), and loads the matching entity.
func (d *Domain) GetObject(uri string) (taxonomy.Entity, error) {
	key, err := objectKeyForURI(uri)
	if err != nil {
		return nil, err
	}

	for _, s := range d.shards {
		record, err := s.FindByID(key)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		defer record.Unref()
		return s.GetModel(record)
	}

	return nil, errs.New(errs.IdNotFound, "no shard holds id %q", key)
}

// ReadURI resolves uri and streams its full payload plus its content type.
// The returned mime string is read out of the hydrated entity before the
// entity goes out of scope at the end of this call — the entity is never
// retained past that point, honoring the spec's MIME-ownership requirement.
func (d *Domain) ReadURI(uri string) ([]byte, string, error) {
	entity, err := d.GetObject(uri)
	if err != nil {
		return nil, "", err
	}
	mime := entity.Common().ContentType

	key, err := objectKeyForURI(uri)
	if err != nil {
		return nil, "", err
	}
	for _, s := range d.shards {
		record, err := s.FindByID(key)
		if err != nil {
			return nil, "", err
		}
		if record == nil {
			continue
		}
		defer record.Unref()
		r, err := s.StreamData(record)
		if err != nil {
			return nil, "", err
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, "", errs.Wrap(errs.Io, err, "failed to read record data for %q", uri)
		}
		return data, mime, nil
	}
	return nil, "", errs.New(errs.IdNotFound, "no shard holds id for %q", uri)
}

// GetFixedQuery runs stop-word stripping and spelling correction over q's
// search terms and returns a copy-on-modify query carrying the non-empty
// results, or q unchanged if neither correction applied.
func (d *Domain) GetFixedQuery(q query.Query) (query.Query, error) {
	if q.SearchTerms == "" {
		return q, nil
	}

	d.indexMu.Lock()
	stopFixed, spellFixed, err := d.db.FixQuery(q.SearchTerms)
	d.indexMu.Unlock()
	if err != nil {
		return query.Query{}, err
	}

	if stopFixed == "" && spellFixed == "" {
		return q, nil
	}

	var opts []query.Option
	if stopFixed != "" {
		opts = append(opts, query.WithStopwordFreeTerms(stopFixed))
	}
	if spellFixed != "" {
		opts = append(opts, query.WithCorrectedTerms(spellFixed))
	}
	return query.NewFrom(q, opts...), nil
}

// Query executes q against the federated index and hydrates every match
// into a typed entity, aborting the whole query on the first hydration
// error (no partial result set is ever returned).
func (d *Domain) Query(ctx context.Context, q query.Query) (resultset.ResultSet, error) {
	if d.thirdPartyIndex {
		q = query.NewFrom(q,
			query.WithMatch(query.TitleSynopsis),
			query.WithTagsMatchAll(nil),
			query.WithTagsMatchAny(nil),
			query.WithContentType(nil),
			query.WithExcludedContentType(nil),
		)
	}

	d.indexMu.Lock()
	defer d.indexMu.Unlock()

	ids, upperBound, err := d.db.Query(ctx, q, d.Language)
	if err != nil {
		return resultset.ResultSet{}, err
	}
	if len(ids) == 0 {
		return resultset.Empty(upperBound), nil
	}

	entities := make([]taxonomy.Entity, 0, len(ids))
	for _, raw := range ids {
		if err := ctx.Err(); err != nil {
			return resultset.ResultSet{}, errs.Wrap(errs.Cancelled, err, "query cancelled during hydration")
		}
		uri := normalizeMatchID(raw)
		entity, err := d.GetObject(uri)
		if err != nil {
			return resultset.ResultSet{}, err
		}
		entities = append(entities, entity)
	}

	return resultset.New(entities, upperBound), nil
}

// normalizeMatchID prefixes a bare third-party namespace path with the
// ekn+zim:/// scheme; a fully qualified ekn:// identifier passes through
// unchanged.
func normalizeMatchID(raw string) string {
	if strings.HasPrefix(raw, "ekn://") || strings.HasPrefix(raw, idgrammar.ThirdPartyScheme) {
		return raw
	}
	return idgrammar.ThirdPartyScheme + raw
}

// Close releases the domain's database manager resources.
func (d *Domain) Close() error {
	return d.db.Close()
}
