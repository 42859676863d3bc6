// Package domain defines the ontology records, lookup value types, and error
// taxonomy shared by the ontologycore services.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the kind of record served by a lookup.
type EntityType string

// Supported entity type identifiers used in lookups, errors and events.
const (
	// EntityOntologyClass identifies a locally stored ontology class.
	EntityOntologyClass EntityType = "ontology_class"
	// EntityMeasurement identifies a registered measurement record.
	EntityMeasurement EntityType = "measurement"
	// EntityTerm identifies a term from the external terminology service.
	EntityTerm EntityType = "term"
)

// Term is a record returned by the external terminology service. Terms are
// immutable values; two terms are equal when all fields are equal.
type Term struct {
	ID             string `json:"id"`
	IRI            string `json:"iri"`
	ShortForm      string `json:"short_form"`
	OboID          string `json:"obo_id"`
	Label          string `json:"label"`
	OntologyName   string `json:"ontology_name"`
	OntologyPrefix string `json:"ontology_prefix"`
	Description    string `json:"description,omitempty"`
}

// Key returns the natural key of the term, its ontology-scoped CURIE.
func (t Term) Key() string { return t.OboID }

// Class converts the term into the locally stored class representation.
func (t Term) Class() Class {
	return Class{
		Ontology:    t.OntologyName,
		Label:       t.Label,
		Curie:       t.ShortForm,
		Description: t.Description,
		ClassIRI:    t.IRI,
	}
}

// Class is an ontology class stored in the backing relational store.
type Class struct {
	ID              int64  `json:"id,omitempty"`
	Ontology        string `json:"ontology"`
	OntologyVersion string `json:"ontology_version,omitempty"`
	OntologyIRI     string `json:"ontology_iri,omitempty"`
	Label           string `json:"label"`
	Curie           string `json:"curie"`
	Description     string `json:"description,omitempty"`
	ClassIRI        string `json:"class_iri,omitempty"`
}

// OboID returns the curie in obo notation (idSpace:localId).
func (c Class) OboID() string {
	return strings.Replace(c.Curie, "_", ":", 1)
}

// Reference points at an ontology term embedded in a measurement, for
// example the instrument or the organisation that produced it.
type Reference struct {
	Label string `json:"label"`
	OboID string `json:"oboId,omitempty"`
	IRI   string `json:"IRI,omitempty"`
}

// Measurement is a registered measurement linked to one or more samples.
type Measurement struct {
	ID              int64     `json:"id"`
	Code            string    `json:"measurement_code"`
	Name            string    `json:"measurement_name"`
	Facility        string    `json:"facility"`
	Comment         string    `json:"comment,omitempty"`
	InjectionVolume int64     `json:"injection_volume"`
	RegisteredAt    time.Time `json:"registered_at"`
	Device          Reference `json:"ms_device"`
	Organisation    Reference `json:"organisation"`
}
