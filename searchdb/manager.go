// Package searchdb federates the per-shard full-text indices into one
// searchable database, and implements the query-fixing (stop-word +
// spelling correction) and query-execution pipeline.
package searchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"

	"knowledgecore/errs"
	"knowledgecore/query"
)

// StandardTextPrefixes names the original Xapian text-field term prefixes
// that "standard defaults" refers to when the federated index carries no
// (or malformed) prefix metadata. Kept as a reference constant for
// ensurePrefixes' default-detection log message and tests; bleve field
// roles are fixed by indexer.ContentIndexMapping rather than resolved from
// these values.
var StandardTextPrefixes = map[string]string{
	"title":       "S",
	"exact_title": "XEXACTS",
}

// StandardBooleanPrefixes is StandardTextPrefixes for boolean-field terms.
var StandardBooleanPrefixes = map[string]string{
	"tag": "K",
	"id":  "Q",
}

const (
	internalKeyPrefixes  = "XbPrefixes"
	internalKeyStopwords = "XbStopwords"
)

// defaultStemmerLang is the analyzer name substituted for a language with
// no registered bleve stemmer (SPEC_FULL.md §4.4).
const defaultStemmerLang = query.DefaultAnalyzer

// prefixMetadata mirrors the JSON document shape of the XbPrefixes value.
type prefixMetadata struct {
	Prefixes        []prefixEntry `json:"prefixes"`
	BooleanPrefixes []prefixEntry `json:"booleanPrefixes"`
}

type prefixEntry struct {
	Field  string `json:"field"`
	Prefix string `json:"prefix"`
}

// IndexOpener is implemented by shard backends that carry an embedded
// full-text index (both nativeshard.Shard and zimshard.Shard).
type IndexOpener interface {
	OpenIndex() (bleve.Index, error)
}

// Manager owns the federated index, the derived prefix/stop-word
// configuration, and the per-language stemmer cache.
type Manager struct {
	shards []IndexOpener

	mu          sync.Mutex
	initialized bool
	initErr     error

	alias                    bleve.IndexAlias
	memberIndices            []bleve.Index
	defaultPrefixesInstalled bool
	stopwords                map[string]struct{}

	stemmerMu    sync.Mutex
	stemmerCache map[string]string
}

// New constructs a database manager over the given shards. Shards that do
// not carry an embedded index (IndexOpener) are accepted but contribute
// nothing to the federated index.
func New(shards []IndexOpener) *Manager {
	return &Manager{
		shards:       shards,
		stemmerCache: map[string]string{},
	}
}

// selectAnalyzer resolves lang to the bleve analyzer used to stem free text
// search terms, per SPEC_FULL.md §4.4: select the stemmer for lang; if no
// analyzer is registered under that name, fall back to defaultStemmerLang;
// cache the resolution so repeated queries in the same language don't
// re-probe the registry.
func (m *Manager) selectAnalyzer(lang string) string {
	if lang == "" {
		lang = defaultStemmerLang
	}

	m.stemmerMu.Lock()
	defer m.stemmerMu.Unlock()
	if resolved, ok := m.stemmerCache[lang]; ok {
		return resolved
	}

	resolved := lang
	if _, err := bleve.Config.Cache.AnalyzerNamed(lang); err != nil {
		log.Printf("searchdb: no stemmer registered for language %q, falling back to %q", lang, defaultStemmerLang)
		resolved = defaultStemmerLang
	}
	m.stemmerCache[lang] = resolved
	return resolved
}

// ensureInitialized performs the lazy, once-only federated-index open and
// prefix/stop-word registration described in the component design.
func (m *Manager) ensureInitialized() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return m.initErr
	}
	m.initialized = true

	alias := bleve.NewIndexAlias()
	var members []bleve.Index
	for _, s := range m.shards {
		idx, err := s.OpenIndex()
		if err != nil {
			log.Printf("searchdb: shard contributed no index: %v", err)
			continue
		}
		alias.Add(idx)
		members = append(members, idx)
	}
	m.alias = alias
	m.memberIndices = members

	m.ensurePrefixes()
	m.ensureStopwords()

	return nil
}

// ensurePrefixes detects whether any member index carries prefix metadata
// (XbPrefixes), installing standard defaults on missing or malformed
// metadata regardless of whether a warning fires (resolved Open Question,
// SPEC_FULL.md §9). Unlike the original Xapian term-prefix table, this
// bleve rendition has no per-query field-name indirection to drive from
// the parsed values — indexer.ContentIndexMapping fixes every field's role
// (title/tags/id/contentType/...) at index-build time, the same way every
// shard producer in this tree builds its index — so only presence/validity
// is tracked rather than the specific field->prefix entries.
func (m *Manager) ensurePrefixes() {
	m.defaultPrefixesInstalled = true
	for _, idx := range m.memberIndices {
		raw, err := idx.GetInternal([]byte(internalKeyPrefixes))
		if err != nil || len(raw) == 0 {
			continue
		}
		var parsed prefixMetadata
		if err := json.Unmarshal(raw, &parsed); err != nil {
			log.Printf("searchdb: malformed %s metadata, installing standard defaults: %v", internalKeyPrefixes, err)
			continue
		}
		if len(parsed.Prefixes) > 0 || len(parsed.BooleanPrefixes) > 0 {
			m.defaultPrefixesInstalled = false
		}
		break
	}
	if m.defaultPrefixesInstalled {
		log.Printf("searchdb: no %s metadata found, installing standard defaults", internalKeyPrefixes)
	}
}

// UsingStandardPrefixes reports whether the federated index fell back to
// StandardTextPrefixes/StandardBooleanPrefixes because no member shard
// carried valid XbPrefixes metadata — a diagnostic signal for callers that
// want to flag a shard as using a legacy or non-standard prefix scheme.
func (m *Manager) UsingStandardPrefixes() (bool, error) {
	if err := m.ensureInitialized(); err != nil {
		return false, err
	}
	return m.defaultPrefixesInstalled, nil
}

// ensureStopwords installs the stop-word set found on the first member
// index that carries one. Missing is not an error; a member whose value is
// malformed JSON is logged and skipped, and if no member carries a valid
// set the stop-word set stays empty.
func (m *Manager) ensureStopwords() {
	m.stopwords = map[string]struct{}{}
	for _, idx := range m.memberIndices {
		raw, err := idx.GetInternal([]byte(internalKeyStopwords))
		if err != nil || len(raw) == 0 {
			continue
		}
		var words []string
		if err := json.Unmarshal(raw, &words); err != nil {
			log.Printf("searchdb: malformed %s metadata, ignoring: %v", internalKeyStopwords, err)
			continue
		}
		for _, w := range words {
			m.stopwords[strings.TrimRight(w, "\n")] = struct{}{}
		}
		return
	}
}

// DocCount returns the federated index's total document count.
func (m *Manager) DocCount() (uint64, error) {
	if err := m.ensureInitialized(); err != nil {
		return 0, err
	}
	return m.alias.DocCount()
}

// FixQuery tokenizes terms on spaces and returns (stopFixed, spellFixed).
// Either return value is "" if no change was made.
func (m *Manager) FixQuery(terms string) (stopFixed string, spellFixed string, err error) {
	if err := m.ensureInitialized(); err != nil {
		return "", "", err
	}

	tokens := strings.Fields(terms)
	stopFixed = m.stripStopwords(tokens)

	spellFixed, err = m.correctSpelling(tokens)
	if err != nil {
		return "", "", errs.Wrap(errs.Io, err, "spelling correction failed")
	}

	return stopFixed, spellFixed, nil
}

func (m *Manager) stripStopwords(tokens []string) string {
	kept := make([]string, 0, len(tokens))
	removedAny := false
	for _, t := range tokens {
		if _, isStop := m.stopwords[strings.ToLower(t)]; isStop {
			removedAny = true
			continue
		}
		kept = append(kept, t)
	}
	if !removedAny {
		return ""
	}
	return strings.Join(kept, " ")
}

// Query executes q against the federated index in language lang (selecting
// and caching the matching stemmer per SPEC_FULL.md §4.4) and returns the
// raw hits (field "data" of each matching document) plus the upper-bound
// match estimate. Hydration into typed entities happens one layer up, in
// package domain.
func (m *Manager) Query(ctx context.Context, q query.Query, lang string) (ids []string, upperBound uint64, err error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, errs.Wrap(errs.Cancelled, err, "query cancelled")
	}
	if err := m.ensureInitialized(); err != nil {
		return nil, 0, err
	}

	count, err := m.alias.DocCount()
	if err != nil {
		return nil, 0, errs.Wrap(errs.DatabaseInvalid, err, "failed to count federated index documents")
	}
	if count == 0 {
		return nil, 0, errs.New(errs.DatabaseEmpty, "federated index has zero documents")
	}

	analyzer := m.selectAnalyzer(lang)
	req := q.BuildSearchRequestWithAnalyzer(analyzer)
	result, err := m.alias.SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, errs.Wrap(errs.DatabaseInvalid, err, "federated search failed")
	}

	hits := applyCutoff(result.Hits, q.Cutoff)

	upperBound = result.Total
	if q.Offset >= len(hits) {
		return nil, upperBound, nil
	}
	end := q.Offset + q.Limit
	if end > len(hits) {
		end = len(hits)
	}
	page := hits[q.Offset:end]

	ids = make([]string, 0, len(page))
	for _, h := range page {
		if err := ctx.Err(); err != nil {
			return nil, 0, errs.Wrap(errs.Cancelled, err, "query cancelled during hydration")
		}
		if data, ok := h.Fields["data"].(string); ok {
			ids = append(ids, data)
		} else {
			ids = append(ids, h.ID)
		}
	}
	return ids, upperBound, nil
}

// applyCutoff filters hits below cutoff percent of the top hit's score.
// bleve has no native minimum-relevance-percentage knob, so this is
// implemented as a post-search filter (see SPEC_FULL.md §10.2).
func applyCutoff(hits search.DocumentMatchCollection, cutoff float64) search.DocumentMatchCollection {
	if cutoff <= 0 || len(hits) == 0 {
		return hits
	}
	top := hits[0].Score
	if top <= 0 {
		return hits
	}
	threshold := top * (cutoff / 100.0)
	out := make(search.DocumentMatchCollection, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out
}

// Close releases every member index.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for _, idx := range m.memberIndices {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close member index: %w", err)
		}
	}
	return firstErr
}
