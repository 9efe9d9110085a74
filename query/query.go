// Package query implements the immutable, copy-on-modify search query
// object and its rendering into bleve's query language.
package query

import (
	"fmt"
	"sort"
	"strings"
)

// Mode controls how free text is tokenized for matching.
type Mode int

const (
	Incremental Mode = iota
	Delimited
)

// Match controls which fields free text is matched against.
type Match int

const (
	OnlyTitle Match = iota
	TitleSynopsis
)

// Sort selects the result ordering key.
type Sort int

const (
	Relevance Sort = iota
	SequenceNumber
	Date
	Alphabetical
)

// Order selects ascending or descending ordering.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Query is an immutable description of a search request. Construct with
// New and derive variants with NewFrom; never mutate a Query in place.
type Query struct {
	SearchTerms          string
	TagsMatchAll         []string
	TagsMatchAny         []string
	ExcludedTags         []string
	IDs                  []string
	ExcludedIDs          []string
	ContentType          []string
	ExcludedContentType  []string
	Mode                 Mode
	Match                Match
	Sort                 Sort
	Order                Order
	Cutoff               float64
	Offset               int
	Limit                int
	StopwordFreeTerms    string
	CorrectedTerms       string
	AppID                string
}

// New constructs a Query with the given search terms and engine defaults
// (Incremental mode, TitleSynopsis match, Relevance sort, Ascending order).
func New(searchTerms string) Query {
	return Query{
		SearchTerms: searchTerms,
		Mode:        Incremental,
		Match:       TitleSynopsis,
		Sort:        Relevance,
		Order:       Ascending,
		Limit:       20,
	}
}

// Option mutates a copy of a Query during NewFrom.
type Option func(*Query)

// NewFrom returns a new Query equal to original with the given options
// applied, sharing all other fields (copy-on-modify construction).
func NewFrom(original Query, opts ...Option) Query {
	q := original
	q.TagsMatchAll = copyStrings(original.TagsMatchAll)
	q.TagsMatchAny = copyStrings(original.TagsMatchAny)
	q.ExcludedTags = copyStrings(original.ExcludedTags)
	q.IDs = copyStrings(original.IDs)
	q.ExcludedIDs = copyStrings(original.ExcludedIDs)
	q.ContentType = copyStrings(original.ContentType)
	q.ExcludedContentType = copyStrings(original.ExcludedContentType)
	for _, opt := range opts {
		opt(&q)
	}
	return q
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// WithStopwordFreeTerms sets the stop-word-stripped terms derived by
// query-fix.
func WithStopwordFreeTerms(s string) Option {
	return func(q *Query) { q.StopwordFreeTerms = s }
}

// WithCorrectedTerms sets the spelling-corrected terms derived by
// query-fix.
func WithCorrectedTerms(s string) Option {
	return func(q *Query) { q.CorrectedTerms = s }
}

// WithMatch overrides the match mode.
func WithMatch(m Match) Option {
	return func(q *Query) { q.Match = m }
}

// WithTagsMatchAll overrides the tags-match-all filter (nil clears it).
func WithTagsMatchAll(tags []string) Option {
	return func(q *Query) { q.TagsMatchAll = tags }
}

// WithTagsMatchAny overrides the tags-match-any filter (nil clears it).
func WithTagsMatchAny(tags []string) Option {
	return func(q *Query) { q.TagsMatchAny = tags }
}

// WithContentType overrides the content-type filter (nil clears it).
func WithContentType(types []string) Option {
	return func(q *Query) { q.ContentType = types }
}

// WithExcludedContentType overrides the excluded-content-type filter.
func WithExcludedContentType(types []string) Option {
	return func(q *Query) { q.ExcludedContentType = types }
}

// EffectiveSearchTerms returns CorrectedTerms if set, else
// StopwordFreeTerms if set, else the raw SearchTerms — the fallback chain
// every downstream reader of a query's text should use.
func (q Query) EffectiveSearchTerms() string {
	if q.CorrectedTerms != "" {
		return q.CorrectedTerms
	}
	if q.StopwordFreeTerms != "" {
		return q.StopwordFreeTerms
	}
	return q.SearchTerms
}

// Equal reports whether two queries are field-for-field equal, comparing
// their ToString dumps: slice fields compare as sorted sets, so filter
// lists holding the same values in a different order are equal.
func (q Query) Equal(other Query) bool {
	return q.ToString() == other.ToString()
}

// ToString produces a stable textual dump used for logging and test
// assertions. Field order is fixed; slice fields are sorted so that
// equivalent filter sets always render identically.
func (q Query) ToString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "terms=%q", q.SearchTerms)
	fmt.Fprintf(&b, " stopwordFree=%q", q.StopwordFreeTerms)
	fmt.Fprintf(&b, " corrected=%q", q.CorrectedTerms)
	fmt.Fprintf(&b, " tagsAll=%s", sortedJoin(q.TagsMatchAll))
	fmt.Fprintf(&b, " tagsAny=%s", sortedJoin(q.TagsMatchAny))
	fmt.Fprintf(&b, " excludedTags=%s", sortedJoin(q.ExcludedTags))
	fmt.Fprintf(&b, " ids=%s", sortedJoin(q.IDs))
	fmt.Fprintf(&b, " excludedIds=%s", sortedJoin(q.ExcludedIDs))
	fmt.Fprintf(&b, " contentType=%s", sortedJoin(q.ContentType))
	fmt.Fprintf(&b, " excludedContentType=%s", sortedJoin(q.ExcludedContentType))
	fmt.Fprintf(&b, " mode=%d match=%d sort=%d order=%d", q.Mode, q.Match, q.Sort, q.Order)
	fmt.Fprintf(&b, " cutoff=%g offset=%d limit=%d appId=%q", q.Cutoff, q.Offset, q.Limit, q.AppID)
	return b.String()
}

func sortedJoin(in []string) string {
	if len(in) == 0 {
		return "[]"
	}
	cp := copyStrings(in)
	sort.Strings(cp)
	return "[" + strings.Join(cp, ",") + "]"
}
