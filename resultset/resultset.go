// Package resultset holds the immutable container of hydrated content
// entities returned by a query, plus an upper-bound estimate of the total
// match count.
package resultset

import "knowledgecore/taxonomy"

// ResultSet is owned by the requesting caller; it is never mutated after
// construction.
type ResultSet struct {
	Entities    []taxonomy.Entity
	UpperBound  uint64
}

// New builds a ResultSet from an ordered slice of hydrated entities and the
// index's reported upper-bound match estimate.
func New(entities []taxonomy.Entity, upperBound uint64) ResultSet {
	return ResultSet{Entities: entities, UpperBound: upperBound}
}

// Empty returns a zero-result ResultSet carrying the given upper bound
// (used e.g. when offset >= upperBound).
func Empty(upperBound uint64) ResultSet {
	return ResultSet{Entities: nil, UpperBound: upperBound}
}

// Len returns the number of hydrated entities in the result set.
func (r ResultSet) Len() int { return len(r.Entities) }
