// Package catalog declares the entities served by lookups: ontology classes
// stored locally and measurements scoped by the samples a caller may see.
package catalog

import (
	"strings"

	"ontologycore/internal/fulltext"
	"ontologycore/internal/lookup"
	"ontologycore/internal/spec"
	"ontologycore/pkg/domain"
)

// Fields of the ontology_classes table.
var (
	ClassID          = spec.IntegerField("id", "c.id")
	ClassOntology    = spec.TextField("ontology", "c.ontology")
	ClassLabel       = spec.TextField("label", "c.label")
	ClassCurie       = spec.TextField("curie", "c.curie")
	ClassDescription = spec.TextField("description", "c.description")
)

// OntologyEntity searches class labels with the fulltext builder, scoped to
// the ontology abbreviations in the filter scope.
func OntologyEntity() lookup.Entity[domain.Class] {
	return lookup.Entity[domain.Class]{
		Type: domain.EntityOntologyClass,
		Key:  ClassID,
		SortKeys: map[string]spec.Field{
			"label":    ClassLabel,
			"curie":    ClassCurie,
			"ontology": ClassOntology,
		},
		Predicate: func(f domain.Filter) spec.Predicate {
			return spec.And(
				spec.In(ClassOntology, f.EffectiveScope()...),
				spec.Matches(ClassLabel, fulltext.Build(f.Term())),
			)
		},
		Accept: func(f domain.Filter) bool { return !fulltext.TooShort(f.Term()) },
		Rank: func(f domain.Filter) *lookup.Rank {
			return &lookup.Rank{Field: ClassLabel, Query: fulltext.Build(f.Term())}
		},
		DefaultOrder: []lookup.Order{{Field: ClassLabel}},
	}
}

// ClassValues exposes a class to the in-memory evaluator.
func ClassValues(c domain.Class) spec.Values {
	return spec.Values{
		ClassID.Name:          c.ID,
		ClassOntology.Name:    c.Ontology,
		ClassLabel.Name:       c.Label,
		ClassCurie.Name:       c.Curie,
		ClassDescription.Name: c.Description,
	}
}

// NormalizeCurie converts a CURIE to the stored notation, with an underscore
// between prefix and local id.
func NormalizeCurie(curie string) string {
	return strings.ReplaceAll(strings.TrimSpace(curie), ":", "_")
}

// ClassByCurie matches the classes stored under curie, in either obo or
// stored notation. Stored prefixes are mostly upper case, so the
// capitalised form matches as well.
func ClassByCurie(curie string) spec.Predicate {
	c := NormalizeCurie(curie)
	if c == "" {
		return spec.False()
	}
	if upper := strings.ToUpper(c); upper != c {
		return spec.AnyOf(spec.ExactMatch(ClassCurie, c), spec.ExactMatch(ClassCurie, upper))
	}
	return spec.ExactMatch(ClassCurie, c)
}
