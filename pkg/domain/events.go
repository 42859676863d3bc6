package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResolutionSource tells where a resolved term came from.
type ResolutionSource string

const (
	// SourceCache marks a term served from the in-process term cache.
	SourceCache ResolutionSource = "cache"
	// SourceRemote marks a term fetched from the terminology service.
	SourceRemote ResolutionSource = "remote"
)

// TermResolved is published after a CURIE has been resolved to a term.
type TermResolved struct {
	ID     uuid.UUID        `json:"id"`
	Curie  string           `json:"curie"`
	Term   Term             `json:"term"`
	Source ResolutionSource `json:"source"`
	At     time.Time        `json:"at"`
}

// TermsImported is published after an ontology dump object was imported.
type TermsImported struct {
	ID     uuid.UUID `json:"id"`
	Object string    `json:"object"`
	Count  int       `json:"count"`
	At     time.Time `json:"at"`
}
