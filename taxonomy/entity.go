// Package taxonomy holds the closed set of content-entity variants served
// by the engine. Entities are immutable once constructed.
package taxonomy

import "math"

// UnsetSequenceNumber is the sentinel value for an absent sequence number.
const UnsetSequenceNumber = math.MaxUint64

// TableOfContentsEntry is one entry in an article's structured table of
// contents.
type TableOfContentsEntry struct {
	Label      string                 `json:"label"`
	IndexLabel string                 `json:"indexLabel,omitempty"`
	HasSection bool                   `json:"hasSection"`
	Children   []TableOfContentsEntry `json:"children,omitempty"`
}

// Base carries the property bag shared by every variant.
type Base struct {
	ID                   string
	ContentType          string
	Title                string
	OriginalTitle        string
	OriginalURI          string
	ThumbnailURI         string
	Language             string
	CopyrightHolder      string
	SourceURI            string
	Synopsis             string
	LastModifiedDate     string
	License              string
	Featured             bool
	CanPrint             bool
	CanExport            bool
	Tags                 []string
	Resources            []string
	DiscoveryFeedContent interface{}
	SequenceNumber       uint64
}

// Discriminator is the closed set of `@type` values the parser recognizes.
type Discriminator string

const (
	TypeContent         Discriminator = "ContentObject"
	TypeArticle         Discriminator = "ArticleObject"
	TypeDictionaryEntry Discriminator = "DictionaryObject"
	TypeSet             Discriminator = "SetObject"
	TypeMedia           Discriminator = "MediaObject"
	TypeImage           Discriminator = "ImageObject"
	TypeVideo           Discriminator = "VideoObject"
	TypeAudio           Discriminator = "AudioObject"
)

// Entity is implemented by every content-entity variant.
type Entity interface {
	// Type returns the variant's discriminator.
	Type() Discriminator
	// Common returns the shared base property bag.
	Common() Base
}

// Content is the base variant: no properties beyond the common bag.
type Content struct {
	Base
}

func (c *Content) Type() Discriminator { return TypeContent }
func (c *Content) Common() Base        { return c.Base }

// Article adds authorship, coverage, outgoing links and a table of contents.
type Article struct {
	Base
	Authors          []string
	TemporalCoverage []string
	OutgoingLinks    []string
	TableOfContents  []TableOfContentsEntry
}

func (a *Article) Type() Discriminator { return TypeArticle }
func (a *Article) Common() Base        { return a.Base }

// DictionaryEntry is the base variant under a distinct discriminator.
type DictionaryEntry struct {
	Base
}

func (d *DictionaryEntry) Type() Discriminator { return TypeDictionaryEntry }
func (d *DictionaryEntry) Common() Base        { return d.Base }

// Set adds a list of child tags.
type Set struct {
	Base
	ChildTags []string
}

func (s *Set) Type() Discriminator { return TypeSet }
func (s *Set) Common() Base        { return s.Base }

// Media is the base variant for all media kinds.
type Media struct {
	Base
	Caption   string
	Width     int
	Height    int
	ParentURI string
}

func (m *Media) Type() Discriminator { return TypeMedia }
func (m *Media) Common() Base        { return m.Base }

// Image is a Media with no additional properties.
type Image struct {
	Media
}

func (i *Image) Type() Discriminator { return TypeImage }
func (i *Image) Common() Base        { return i.Media.Base }

// Video adds duration, transcript and poster uri to Media.
type Video struct {
	Media
	Duration   string
	Transcript string
	PosterURI  string
}

func (v *Video) Type() Discriminator { return TypeVideo }
func (v *Video) Common() Base        { return v.Media.Base }

// Audio adds duration and transcript to Media.
type Audio struct {
	Media
	Duration   string
	Transcript string
}

func (a *Audio) Type() Discriminator { return TypeAudio }
func (a *Audio) Common() Base        { return a.Media.Base }
