package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"ontologycore/internal/blob"
	"ontologycore/internal/core"
	"ontologycore/internal/infra/persistence/memory"
	"ontologycore/pkg/domain"
)

type fakeTerms struct {
	terms map[string]domain.Term
	err   error
}

func (f *fakeTerms) SearchByOboID(_ context.Context, curie string) (domain.Term, bool, error) {
	if f.err != nil {
		return domain.Term{}, false, f.err
	}
	t, ok := f.terms[curie]
	return t, ok, nil
}

func (f *fakeTerms) Select(_ context.Context, q string, offset, limit int) ([]domain.Term, error) {
	return []domain.Term{{Label: fmt.Sprintf("select:%s:%d:%d", q, offset, limit)}}, nil
}

func (f *fakeTerms) Search(_ context.Context, q string, offset, limit int) ([]domain.Term, error) {
	return []domain.Term{{Label: fmt.Sprintf("search:%s:%d:%d", q, offset, limit)}}, nil
}

const dump = `{"ontology":"go","label":"liver development","curie":"GO_0001889"}
{"ontology":"go","label":"liver morphogenesis","curie":"GO_0072576"}
{"ontology":"efo","label":"liver","curie":"EFO_0000887"}
{"ontology":"bto","label":"liver cell","curie":"BTO_0000759"}
`

func newHandler(t *testing.T, terms core.TermSearcher) (*Handler, *prometheus.Registry) {
	t.Helper()
	store := blob.NewMemory()
	if _, err := store.Put(context.Background(), "dumps/classes.jsonl", strings.NewReader(dump), "application/x-ndjson"); err != nil {
		t.Fatalf("put dump: %v", err)
	}
	deps := core.Deps{Catalog: core.NewMemoryCatalog(), Blob: store}
	if terms != nil {
		deps.Terms = terms
	}
	svc, err := core.New(deps)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "ontologycore_test_total", Help: "test"}))
	return NewHandler(svc, reg, nil), reg
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var payload map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode %s %s: %v", method, target, err)
		}
	}
	return rec, payload
}

func labels(t *testing.T, payload map[string]any) []string {
	t.Helper()
	items, ok := payload["items"].([]any)
	if !ok {
		t.Fatalf("expected items, got %v", payload)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.(map[string]any)["label"].(string))
	}
	return out
}

func TestImportAndSearchClasses(t *testing.T) {
	h, _ := newHandler(t, nil)
	rec, payload := do(t, h, http.MethodPost, "/api/v1/imports", `{"prefix":"dumps/"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status %d: %v", rec.Code, payload)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/classes?q=liver&ontology=go,efo&limit=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status %d: %v", rec.Code, payload)
	}
	got := labels(t, payload)
	if len(got) != 3 || got[0] != "liver" {
		t.Fatalf("unexpected labels %v", got)
	}
	if payload["limit"].(float64) != 10 || payload["offset"].(float64) != 0 {
		t.Fatalf("unexpected window %v", payload)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/classes/count?q=liver&ontology=go&ontology=bto", "")
	if rec.Code != http.StatusOK || payload["count"].(float64) != 3 {
		t.Fatalf("unexpected count %d %v", rec.Code, payload)
	}
}

func TestBadRequests(t *testing.T) {
	h, _ := newHandler(t, nil)
	cases := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"bad limit", http.MethodGet, "/api/v1/classes?limit=ten", ""},
		{"negative offset", http.MethodGet, "/api/v1/classes?offset=-1", ""},
		{"bad sort direction", http.MethodGet, "/api/v1/classes?sort=label:up", ""},
		{"unknown sort key", http.MethodGet, "/api/v1/classes?sort=nonexistentField", ""},
		{"bad offset_ms", http.MethodGet, "/api/v1/measurements/count?sample=S1&offset_ms=x", ""},
		{"bad measurement body", http.MethodPost, "/api/v1/measurements", "{"},
		{"missing samples", http.MethodPost, "/api/v1/measurements", `{"measurement":{"measurement_code":"X"}}`},
		{"missing code", http.MethodPost, "/api/v1/measurements", `{"measurement":{"facility":"Core"},"sample_ids":["S1"]}`},
		{"bad import body", http.MethodPost, "/api/v1/imports", "nope"},
	}
	for _, tc := range cases {
		rec, _ := do(t, h, tc.method, tc.target, tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestRegisterAndSearchMeasurements(t *testing.T) {
	h, _ := newHandler(t, nil)
	body := `{"measurement":{"measurement_code":"NGSQ001","facility":"Core Facility","registered_at":"2024-05-01T22:30:00Z"},"sample_ids":["S1","S2"]}`
	rec, payload := do(t, h, http.MethodPost, "/api/v1/measurements", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %v", rec.Code, payload)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/measurements?q=ngsq&sample=S1,S2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status %d: %v", rec.Code, payload)
	}
	items := payload["items"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["measurement_code"] != "NGSQ001" {
		t.Fatalf("unexpected measurements %v", items)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/measurements/count?q=ngsq&sample=S1&exclude=S1", "")
	if rec.Code != http.StatusOK || payload["count"].(float64) != 0 {
		t.Fatalf("excluded sample must hide the measurement: %d %v", rec.Code, payload)
	}
}

func TestResolveTerm(t *testing.T) {
	terms := &fakeTerms{terms: map[string]domain.Term{
		"GO:0001889": {OboID: "GO:0001889", Label: "liver development", OntologyName: "go"},
	}}
	h, _ := newHandler(t, terms)
	rec, payload := do(t, h, http.MethodGet, "/api/v1/terms/GO_0001889", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status %d: %v", rec.Code, payload)
	}
	term := payload["term"].(map[string]any)
	if term["label"] != "liver development" {
		t.Fatalf("unexpected term %v", term)
	}
	if class := payload["class"].(map[string]any); class["ontology"] != "go" {
		t.Fatalf("unexpected class %v", class)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/terms/GO_9999999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	terms.err = &domain.LookupError{Op: "search_by_obo_id", Key: "GO:1", Err: errors.New("boom")}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/terms/GO_1", "")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestTermSearchAndSuggest(t *testing.T) {
	h, _ := newHandler(t, &fakeTerms{})
	rec, payload := do(t, h, http.MethodGet, "/api/v1/terms?q=liver&offset=5&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status %d", rec.Code)
	}
	if got := labels(t, payload); len(got) != 1 || got[0] != "search:liver:5:2" {
		t.Fatalf("unexpected search %v", got)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/terms/suggest?q=liv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("suggest status %d", rec.Code)
	}
	if got := labels(t, payload); got[0] != fmt.Sprintf("select:liv:0:%d", DefaultLimit) {
		t.Fatalf("unexpected suggest %v", got)
	}
}

func TestTermsWithoutTerminology(t *testing.T) {
	h, _ := newHandler(t, nil)
	for _, target := range []string{"/api/v1/terms/GO_1", "/api/v1/terms?q=x", "/api/v1/terms/suggest?q=x"} {
		rec, _ := do(t, h, http.MethodGet, target, "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", target, rec.Code)
		}
	}
}

func TestMetricsAndHealth(t *testing.T) {
	h, _ := newHandler(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ontologycore_test_total") {
		t.Fatalf("unexpected metrics response %d %s", rec.Code, rec.Body.String())
	}
	rec, payload := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("unexpected health %d %v", rec.Code, payload)
	}
	rec, _ = do(t, h, http.MethodDelete, "/api/v1/classes", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestNilService(t *testing.T) {
	h := NewHandler(nil, nil, nil)
	rec, _ := do(t, h, http.MethodGet, "/api/v1/classes", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	h, _ := newHandler(t, nil)
	rec, _ := do(t, h, http.MethodGet, "/openapi.yaml", "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/yaml" {
		t.Fatalf("unexpected openapi response %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	var doc struct {
		Paths map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("parse openapi: %v", err)
	}
	routes := map[string]string{
		"/api/v1/classes":            "get",
		"/api/v1/classes/count":      "get",
		"/api/v1/classes/{curie}":    "get",
		"/api/v1/ontologies":         "get",
		"/api/v1/measurements":       "post",
		"/api/v1/measurements/count": "get",
		"/api/v1/terms":              "get",
		"/api/v1/terms/suggest":      "get",
		"/api/v1/terms/{curie}":      "get",
		"/api/v1/imports":            "post",
		"/healthz":                   "get",
		"/metrics":                   "get",
	}
	for path, method := range routes {
		if _, ok := doc.Paths[path][method]; !ok {
			t.Errorf("openapi lacks %s %s", method, path)
		}
	}
}

func TestClassByCurieAndOntologies(t *testing.T) {
	h, _ := newHandler(t, nil)
	rec, payload := do(t, h, http.MethodGet, "/api/v1/ontologies", "")
	if rec.Code != http.StatusOK || len(payload["ontologies"].([]any)) != 0 {
		t.Fatalf("expected empty ontology list, got %d %v", rec.Code, payload)
	}
	if rec, _ := do(t, h, http.MethodPost, "/api/v1/imports", `{"prefix":"dumps/"}`); rec.Code != http.StatusOK {
		t.Fatalf("import status %d", rec.Code)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/classes/GO:0072576", "")
	if rec.Code != http.StatusOK || payload["label"] != "liver morphogenesis" {
		t.Fatalf("unexpected class %d %v", rec.Code, payload)
	}
	rec, _ = do(t, h, http.MethodGet, "/api/v1/classes/GO:9999999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/classes/count?q=liver&ontology=go", "")
	if rec.Code != http.StatusOK || payload["count"].(float64) != 2 {
		t.Fatalf("count route must not be taken for a curie: %d %v", rec.Code, payload)
	}
	rec, payload = do(t, h, http.MethodGet, "/api/v1/ontologies", "")
	got := payload["ontologies"].([]any)
	if rec.Code != http.StatusOK || len(got) != 3 || got[0] != "bto" || got[2] != "go" {
		t.Fatalf("unexpected ontologies %d %v", rec.Code, payload)
	}
}

type failingMeasurements struct {
	*memory.Measurements
}

func (failingMeasurements) InsertMeasurement(context.Context, domain.Measurement, []string) error {
	return errors.New("disk full")
}

func TestRegisterMeasurementStoreFailureIsInternal(t *testing.T) {
	cat := core.NewMemoryCatalog()
	cat.Measurements = failingMeasurements{Measurements: memory.NewMeasurements()}
	svc, err := core.New(core.Deps{Catalog: cat})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h := NewHandler(svc, nil, nil)
	rec, payload := do(t, h, http.MethodPost, "/api/v1/measurements", `{"measurement":{"measurement_code":"X"},"sample_ids":["S1"]}`)
	if rec.Code != http.StatusInternalServerError || payload["error"] != "internal error" {
		t.Fatalf("expected opaque 500, got %d %v", rec.Code, payload)
	}
}
