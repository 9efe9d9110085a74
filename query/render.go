package query

import (
	"github.com/blevesearch/bleve/v2"
	bquery "github.com/blevesearch/bleve/v2/search/query"
)

// Field names used by the rendered bleve query. These mirror the prefix
// roles described in the federated index's prefix metadata (title/tag/id/
// content-type), projected onto bleve field names rather than Xapian term
// prefixes.
const (
	FieldTitle       = "title"
	FieldSynopsis    = "synopsis"
	FieldTag         = "tags"
	FieldID          = "id"
	FieldContentType = "contentType"
	FieldSequence    = "sequenceNumber"
	FieldDate        = "lastModifiedDate"
)

// DefaultAnalyzer is the federated index's fallback per-language analyzer
// name, applied when the caller specifies no language or one the index has
// no registered stemmer for (searchdb.Manager's stemmer-selection rule).
const DefaultAnalyzer = "en"

// Render translates a Query into a bleve query.Query, stemming free text
// with DefaultAnalyzer. Sort and pagination are not part of the result;
// see SortField and BuildSearchRequest.
func (q Query) Render() bquery.Query {
	return q.RenderWithAnalyzer(DefaultAnalyzer)
}

// RenderWithAnalyzer is Render, stemming free text with the given analyzer
// name rather than DefaultAnalyzer. Callers that have already resolved a
// query's language to a concrete bleve analyzer (searchdb.Manager) use this
// directly.
func (q Query) RenderWithAnalyzer(analyzer string) bquery.Query {
	var clauses []bquery.Query

	if textQuery := q.renderText(analyzer); textQuery != nil {
		clauses = append(clauses, textQuery)
	}

	if tag := q.renderTagsMatchAll(); tag != nil {
		clauses = append(clauses, tag)
	}
	if tag := q.renderTagsMatchAny(); tag != nil {
		clauses = append(clauses, tag)
	}
	if ids := q.renderIDs(); ids != nil {
		clauses = append(clauses, ids)
	}
	if ct := q.renderContentType(); ct != nil {
		clauses = append(clauses, ct)
	}

	var mustNot []bquery.Query
	if excl := q.renderExcludedTags(); excl != nil {
		mustNot = append(mustNot, excl)
	}
	if excl := q.renderExcludedIDs(); excl != nil {
		mustNot = append(mustNot, excl)
	}
	if excl := q.renderExcludedContentType(); excl != nil {
		mustNot = append(mustNot, excl)
	}

	if len(clauses) == 0 && len(mustNot) == 0 {
		return bleve.NewMatchAllQuery()
	}

	bq := bleve.NewBooleanQuery()
	for _, c := range clauses {
		bq.AddMust(c)
	}
	for _, c := range mustNot {
		bq.AddMustNot(c)
	}
	if len(clauses) == 0 {
		bq.AddShould(bleve.NewMatchAllQuery())
	}
	return bq
}

// renderText renders the free-text portion of the query, or nil if
// search_terms is empty — per the boundary rule that an empty search_terms
// with filters set renders a tag-only query, not a degenerate text query.
// Delimited-mode matching stems terms with analyzer ("stem-some" per
// SPEC_FULL.md §4.4); incremental-mode wildcard matching has no analyzer
// knob to set since it matches the raw term prefix.
func (q Query) renderText(analyzer string) bquery.Query {
	terms := q.EffectiveSearchTerms()
	if terms == "" {
		return nil
	}

	fields := []string{FieldTitle}
	if q.Match == TitleSynopsis {
		fields = append(fields, FieldSynopsis)
	}

	var perField []bquery.Query
	for _, f := range fields {
		if q.Mode == Incremental {
			wq := bleve.NewWildcardQuery(terms + "*")
			wq.SetField(f)
			perField = append(perField, wq)
		} else {
			mq := bleve.NewMatchQuery(terms)
			mq.SetField(f)
			mq.SetAnalyzer(analyzer)
			perField = append(perField, mq)
		}
	}
	if len(perField) == 1 {
		return perField[0]
	}
	return bleve.NewDisjunctionQuery(perField...)
}

func (q Query) renderTagsMatchAll() bquery.Query {
	if len(q.TagsMatchAll) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, t := range q.TagsMatchAll {
		tq := bleve.NewTermQuery(t)
		tq.SetField(FieldTag)
		terms = append(terms, tq)
	}
	return bleve.NewConjunctionQuery(terms...)
}

func (q Query) renderTagsMatchAny() bquery.Query {
	if len(q.TagsMatchAny) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, t := range q.TagsMatchAny {
		tq := bleve.NewTermQuery(t)
		tq.SetField(FieldTag)
		terms = append(terms, tq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

func (q Query) renderExcludedTags() bquery.Query {
	if len(q.ExcludedTags) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, t := range q.ExcludedTags {
		tq := bleve.NewTermQuery(t)
		tq.SetField(FieldTag)
		terms = append(terms, tq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

func (q Query) renderIDs() bquery.Query {
	if len(q.IDs) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, id := range q.IDs {
		tq := bleve.NewTermQuery(id)
		tq.SetField(FieldID)
		terms = append(terms, tq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

func (q Query) renderExcludedIDs() bquery.Query {
	if len(q.ExcludedIDs) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, id := range q.ExcludedIDs {
		tq := bleve.NewTermQuery(id)
		tq.SetField(FieldID)
		terms = append(terms, tq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

func (q Query) renderContentType() bquery.Query {
	if len(q.ContentType) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, ct := range q.ContentType {
		tq := bleve.NewTermQuery(ct)
		tq.SetField(FieldContentType)
		terms = append(terms, tq)
	}
	return bleve.NewConjunctionQuery(terms...)
}

func (q Query) renderExcludedContentType() bquery.Query {
	if len(q.ExcludedContentType) == 0 {
		return nil
	}
	var terms []bquery.Query
	for _, ct := range q.ExcludedContentType {
		tq := bleve.NewTermQuery(ct)
		tq.SetField(FieldContentType)
		terms = append(terms, tq)
	}
	return bleve.NewDisjunctionQuery(terms...)
}

// SortField returns the bleve sort-by field name for the query's Sort
// mode, or "" for Relevance (bleve's native default ordering).
func (q Query) SortField() string {
	field := ""
	switch q.Sort {
	case SequenceNumber:
		field = FieldSequence
	case Date:
		field = FieldDate
	case Alphabetical:
		field = FieldTitle
	default:
		return ""
	}
	if q.Order == Descending {
		return "-" + field
	}
	return field
}

// BuildSearchRequest builds a bleve SearchRequest from the query's render,
// sort and pagination fields, stemming free text with DefaultAnalyzer.
// Cutoff is not applied here: it is a post-search filter applied by the
// caller (see searchdb.Manager.Query), since bleve has no native
// minimum-relevance-percentage knob.
func (q Query) BuildSearchRequest() *bleve.SearchRequest {
	return q.BuildSearchRequestWithAnalyzer(DefaultAnalyzer)
}

// BuildSearchRequestWithAnalyzer is BuildSearchRequest, stemming free text
// with the given analyzer name.
func (q Query) BuildSearchRequestWithAnalyzer(analyzer string) *bleve.SearchRequest {
	req := bleve.NewSearchRequestOptions(q.RenderWithAnalyzer(analyzer), q.Offset+q.Limit, 0, false)
	if sf := q.SortField(); sf != "" {
		req.SortBy([]string{sf})
	}
	req.Fields = []string{"data"}
	return req
}
