// Package metaparse maps a generic structured metadata document (decoded
// JSON) to one of the typed content-entity variants in package taxonomy,
// dispatching on the document's "@type" discriminator.
package metaparse

import (
	"encoding/json"
	"fmt"

	"knowledgecore/errs"
	"knowledgecore/idgrammar"
	"knowledgecore/taxonomy"
)

// Parse decodes raw JSON bytes into a typed content entity.
func Parse(raw []byte) (taxonomy.Entity, error) {
	var node interface{}
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, errs.Wrap(errs.BadFormat, err, "record metadata is not valid JSON")
	}
	return ParseNode(node)
}

// ParseNode dispatches an already-decoded document tree (as produced by
// encoding/json's generic decoding into interface{}) to the matching
// variant. The document is never mutated.
func ParseNode(node interface{}) (taxonomy.Entity, error) {
	doc, ok := node.(map[string]interface{})
	if !ok {
		return nil, errs.New(errs.BadFormat, "record metadata root is not an object")
	}

	typ, ok := str(doc, "@type")
	if !ok || typ == "" {
		return nil, errs.New(errs.BadFormat, "record metadata is missing @type")
	}
	discriminator := taxonomy.Discriminator(lastPathSegment(typ))

	base := parseBase(doc)

	switch discriminator {
	case taxonomy.TypeContent:
		return &taxonomy.Content{Base: base}, nil
	case taxonomy.TypeDictionaryEntry:
		return &taxonomy.DictionaryEntry{Base: base}, nil
	case taxonomy.TypeArticle:
		return &taxonomy.Article{
			Base:             base,
			Authors:          strSlice(doc, "authors"),
			TemporalCoverage: strSlice(doc, "temporalCoverage"),
			OutgoingLinks:    strSlice(doc, "outgoingLinks"),
			TableOfContents:  parseTableOfContents(doc["tableOfContents"]),
		}, nil
	case taxonomy.TypeSet:
		return &taxonomy.Set{
			Base:      base,
			ChildTags: strSlice(doc, "childTags"),
		}, nil
	case taxonomy.TypeMedia:
		return &taxonomy.Media{
			Base:      base,
			Caption:   stringOr(doc, "caption", ""),
			Width:     intOr(doc, "width", 0),
			Height:    intOr(doc, "height", 0),
			ParentURI: stringOr(doc, "parent", ""),
		}, nil
	case taxonomy.TypeImage:
		return &taxonomy.Image{
			Media: taxonomy.Media{
				Base:      base,
				Caption:   stringOr(doc, "caption", ""),
				Width:     intOr(doc, "width", 0),
				Height:    intOr(doc, "height", 0),
				ParentURI: stringOr(doc, "parent", ""),
			},
		}, nil
	case taxonomy.TypeVideo:
		return &taxonomy.Video{
			Media: taxonomy.Media{
				Base:      base,
				Caption:   stringOr(doc, "caption", ""),
				Width:     intOr(doc, "width", 0),
				Height:    intOr(doc, "height", 0),
				ParentURI: stringOr(doc, "parent", ""),
			},
			Duration:   stringOr(doc, "duration", ""),
			Transcript: stringOr(doc, "transcript", ""),
			PosterURI:  stringOr(doc, "poster", ""),
		}, nil
	case taxonomy.TypeAudio:
		return &taxonomy.Audio{
			Media: taxonomy.Media{
				Base:      base,
				Caption:   stringOr(doc, "caption", ""),
				Width:     intOr(doc, "width", 0),
				Height:    intOr(doc, "height", 0),
				ParentURI: stringOr(doc, "parent", ""),
			},
			Duration:   stringOr(doc, "duration", ""),
			Transcript: stringOr(doc, "transcript", ""),
		}, nil
	default:
		return nil, errs.New(errs.BadFormat, fmt.Sprintf("unknown @type %q", typ))
	}
}

func parseBase(doc map[string]interface{}) taxonomy.Base {
	id, _ := str(doc, "@id")
	hexID, ok := idgrammar.ExtractHexID(id)
	if id == "" || !ok {
		id = idgrammar.Canonical(idgrammar.SyntheticID(fmt.Sprintf("%v", doc)))
	} else {
		id = idgrammar.Canonical(hexID)
	}

	return taxonomy.Base{
		ID:                   id,
		ContentType:          stringOr(doc, "contentType", ""),
		Title:                stringOr(doc, "title", ""),
		OriginalTitle:        stringOr(doc, "originalTitle", ""),
		OriginalURI:          stringOr(doc, "originalURI", ""),
		ThumbnailURI:         stringOr(doc, "thumbnail", ""),
		Language:             stringOr(doc, "language", ""),
		CopyrightHolder:      stringOr(doc, "copyrightHolder", ""),
		SourceURI:            stringOr(doc, "sourceURI", ""),
		Synopsis:             stringOr(doc, "synopsis", ""),
		LastModifiedDate:     stringOr(doc, "lastModifiedDate", ""),
		License:              stringOr(doc, "license", ""),
		Featured:             boolOr(doc, "featured", false),
		CanPrint:             boolOr(doc, "canPrint", true),
		CanExport:            boolOr(doc, "canExport", true),
		Tags:                 strSlice(doc, "tags"),
		Resources:            strSlice(doc, "resources"),
		DiscoveryFeedContent: doc["discoveryFeedContent"],
		SequenceNumber:       sequenceNumberOr(doc, "sequenceNumber", taxonomy.UnsetSequenceNumber),
	}
}

func parseTableOfContents(node interface{}) []taxonomy.TableOfContentsEntry {
	items, ok := node.([]interface{})
	if !ok {
		return nil
	}
	out := make([]taxonomy.TableOfContentsEntry, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, taxonomy.TableOfContentsEntry{
			Label:      stringOr(m, "label", ""),
			IndexLabel: stringOr(m, "indexLabel", ""),
			HasSection: boolOr(m, "hasSection", false),
			Children:   parseTableOfContents(m["children"]),
		})
	}
	return out
}

func str(doc map[string]interface{}, key string) (string, bool) {
	v, ok := doc[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringOr(doc map[string]interface{}, key, def string) string {
	if s, ok := str(doc, key); ok {
		return s
	}
	return def
}

func boolOr(doc map[string]interface{}, key string, def bool) bool {
	if v, ok := doc[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func intOr(doc map[string]interface{}, key string, def int) int {
	if v, ok := doc[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

func sequenceNumberOr(doc map[string]interface{}, key string, def uint64) uint64 {
	if v, ok := doc[key]; ok {
		if f, ok := v.(float64); ok && f >= 0 {
			return uint64(f)
		}
	}
	return def
}

func strSlice(doc map[string]interface{}, key string) []string {
	v, ok := doc[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// lastPathSegment returns the part after the last '/' in a string such as
// "ekn://_vocab/ArticleObject", or the whole string if there is no '/'.
// This lets both bare discriminators ("ArticleObject") and fully qualified
// vocabulary URIs be matched against the same taxonomy.Discriminator set.
func lastPathSegment(s string) string {
	last := s
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			last = s[i+1:]
			break
		}
	}
	return last
}
