// Package engine is the process-wide façade over every application's
// domain: it lazily constructs and caches one domain per app id and routes
// queries, object fetches, and link tests to the right one.
package engine

import (
	"context"
	"sync"

	"knowledgecore/config"
	"knowledgecore/domain"
	"knowledgecore/errs"
	"knowledgecore/query"
	"knowledgecore/resultset"
	"knowledgecore/taxonomy"
)

// Engine is the main entry point for fetching and querying content across
// applications. Construct one with New and keep it for the process
// lifetime; domains are created lazily on first use and cached thereafter.
type Engine struct {
	defaultAppID string
	language     string
	s3Sync       func(ctx context.Context, destDir string) error

	mu      sync.RWMutex
	domains map[string]*domain.Domain
}

// New constructs an Engine from loaded configuration.
func New(cfg *config.Configuration) *Engine {
	e := &Engine{
		defaultAppID: cfg.DefaultAppID,
		language:     cfg.DefaultLang,
		domains:      make(map[string]*domain.Domain),
	}
	if cfg.S3Sync != nil {
		fetcher, err := domain.NewS3Fetcher(cfg.S3Sync.Bucket, cfg.S3Sync.Prefix)
		if err == nil {
			e.s3Sync = fetcher.Sync
		}
	}
	return e
}

// GetDomainForApp returns the cached domain for appID, constructing and
// caching it on first use.
func (e *Engine) GetDomainForApp(ctx context.Context, appID string) (*domain.Domain, error) {
	e.mu.RLock()
	d, ok := e.domains[appID]
	e.mu.RUnlock()
	if ok {
		return d, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.domains[appID]; ok {
		return d, nil
	}

	d, err := domain.New(ctx, appID, domain.Options{
		Language: e.language,
		S3Sync:   e.s3Sync,
	})
	if err != nil {
		return nil, err
	}
	e.domains[appID] = d
	return d, nil
}

// AddDomainForPath registers a domain rooted at an explicit content path
// under appID, if one is not already cached.
func (e *Engine) AddDomainForPath(ctx context.Context, appID, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.domains[appID]; ok {
		return nil
	}

	d, err := domain.New(ctx, appID, domain.Options{Path: path, Language: e.language})
	if err != nil {
		return err
	}
	e.domains[appID] = d
	return nil
}

// domainForQuery resolves which app id a query targets: the query's own
// AppID if set, else the engine's default.
func (e *Engine) domainForQuery(ctx context.Context, q query.Query) (*domain.Domain, error) {
	appID := q.AppID
	if appID == "" {
		appID = e.defaultAppID
	}
	if appID == "" {
		return nil, errs.New(errs.AppIdNotSet, "query carries no app id and the engine has no default")
	}
	return e.GetDomainForApp(ctx, appID)
}

// Query fixes q's search terms (stop-word stripping, spelling correction)
// when it carries free text, then executes it, mirroring the engine's
// fix-then-search pipeline for text queries versus the direct path for
// filter-only queries.
func (e *Engine) Query(ctx context.Context, q query.Query) (resultset.ResultSet, error) {
	d, err := e.domainForQuery(ctx, q)
	if err != nil {
		return resultset.ResultSet{}, err
	}

	if q.SearchTerms != "" {
		fixed, err := d.GetFixedQuery(q)
		if err != nil {
			return resultset.ResultSet{}, err
		}
		q = fixed
	}

	return d.Query(ctx, q)
}

// GetObject fetches an object for the engine's default application.
func (e *Engine) GetObject(ctx context.Context, uri string) (taxonomy.Entity, error) {
	return e.GetObjectForApp(ctx, uri, e.defaultAppID)
}

// GetObjectForApp fetches an object for a specific application.
func (e *Engine) GetObjectForApp(ctx context.Context, uri, appID string) (taxonomy.Entity, error) {
	if appID == "" {
		return nil, errs.New(errs.AppIdNotSet, "no app id was provided and the engine has no default")
	}
	d, err := e.GetDomainForApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	return d.GetObject(uri)
}

// TestLink checks whether link corresponds to content in the default
// application's domain.
func (e *Engine) TestLink(ctx context.Context, link string) (string, error) {
	return e.TestLinkForApp(ctx, link, e.defaultAppID)
}

// TestLinkForApp checks whether link corresponds to content in appID's
// domain.
func (e *Engine) TestLinkForApp(ctx context.Context, link, appID string) (string, error) {
	if appID == "" {
		return "", errs.New(errs.AppIdNotSet, "no app id was provided and the engine has no default")
	}
	d, err := e.GetDomainForApp(ctx, appID)
	if err != nil {
		return "", err
	}
	return d.TestLink(link)
}
