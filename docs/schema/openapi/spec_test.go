package openapi

import (
	"bytes"
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestSpecMatchesFileAndIsCopied(t *testing.T) {
	want, err := os.ReadFile("ontologycore.yaml")
	if err != nil {
		t.Fatalf("read ontologycore.yaml: %v", err)
	}
	got := Spec()
	if !bytes.Equal(got, want) {
		t.Fatalf("embedded document differs from ontologycore.yaml")
	}
	got[0] ^= 0xFF
	if !bytes.Equal(Spec(), want) {
		t.Fatalf("mutation leaked into embedded document")
	}
}

func TestSpecParses(t *testing.T) {
	var doc struct {
		OpenAPI string                    `yaml:"openapi"`
		Paths   map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(Spec(), &doc); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.OpenAPI == "" || len(doc.Paths) == 0 {
		t.Fatalf("expected an openapi version and paths, got %+v", doc)
	}
	if _, ok := doc.Paths["/api/v1/terms/{curie}"]["get"]; !ok {
		t.Fatalf("missing term resolution path")
	}
}
