// Package indexer provides the bleve index mapping shared by the shard
// fixture builder and anything else that needs to build a federated-index
// document shape consistent with the query package's field names.
package indexer

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"knowledgecore/query"
)

// ContentIndexMapping builds the bleve mapping used for every shard's
// embedded index: an analyzed, stored title field; an analyzed synopsis
// field; keyword fields for tags, id and content type (exact match, no
// tokenization); a numeric sequence number; and a date field for the last
// modified timestamp. Field names match the query package's Field*
// constants so a Query renders directly against documents built with this
// mapping.
func ContentIndexMapping() *mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = "en"
	title.Store = true
	doc.AddFieldMappingsAt(query.FieldTitle, title)

	synopsis := bleve.NewTextFieldMapping()
	synopsis.Analyzer = "en"
	doc.AddFieldMappingsAt(query.FieldSynopsis, synopsis)

	keyword := func() *mapping.FieldMapping {
		f := bleve.NewKeywordFieldMapping()
		f.Store = true
		return f
	}
	doc.AddFieldMappingsAt(query.FieldTag, keyword())
	doc.AddFieldMappingsAt(query.FieldID, keyword())
	doc.AddFieldMappingsAt(query.FieldContentType, keyword())

	sequence := bleve.NewNumericFieldMapping()
	sequence.Store = true
	doc.AddFieldMappingsAt(query.FieldSequence, sequence)

	date := bleve.NewDateTimeFieldMapping()
	date.Store = true
	doc.AddFieldMappingsAt(query.FieldDate, date)

	im.DefaultMapping = doc
	return im
}
