package terminology

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"ontologycore/pkg/domain"
)

const livDocs = `{"response":{"numFound":2,"docs":[
 {"id":"go:class:1","iri":"http://purl.obolibrary.org/obo/GO_0001889","short_form":"GO_0001889","obo_id":"GO:0001889",
  "label":"liver development","ontology_name":"go","ontology_prefix":"GO","description":["The process whose specific outcome is the progression of the liver.","second"]},
 {"id":"efo:class:2","iri":"http://www.ebi.ac.uk/efo/EFO_0000887","short_form":"EFO_0000887","obo_id":"EFO:0000887",
  "label":"liver","ontology_name":"efo","ontology_prefix":"EFO"}]}}`

type fakeService struct {
	mu       sync.Mutex
	requests []*url.URL
	status   int
	body     string
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL)
	status, body := f.status, f.body
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeService) calls() []*url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*url.URL(nil), f.requests...)
}

func newFake(t *testing.T, status int, body string) (*fakeService, *Client) {
	t.Helper()
	fake := &fakeService{status: status, body: body}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL+"/api/"), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return fake, c
}

func TestSelectSendsWindowAndWhitelist(t *testing.T) {
	fake, c := newFake(t, http.StatusOK, livDocs)
	terms, err := c.Select(context.Background(), " liv ", 10, 5)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(terms) != 2 || terms[0].OboID != "GO:0001889" || terms[1].Label != "liver" {
		t.Fatalf("unexpected terms %+v", terms)
	}
	if !strings.HasPrefix(terms[0].Description, "The process") || terms[1].Description != "" {
		t.Fatalf("expected first description only, got %q / %q", terms[0].Description, terms[1].Description)
	}
	calls := fake.calls()
	if len(calls) != 1 || calls[0].Path != "/api/select" {
		t.Fatalf("unexpected requests %v", calls)
	}
	q := calls[0].Query()
	if q.Get("q") != "liv" || q.Get("rows") != "5" || q.Get("start") != "10" ||
		q.Get("ontology") != "bao,bto,chebi,edam,efo,envo,go,mi,ms,ncit,po" {
		t.Fatalf("unexpected query %v", q)
	}
}

func TestShortAndBlankQueriesSkipTheService(t *testing.T) {
	fake, c := newFake(t, http.StatusOK, livDocs)
	terms, err := c.Select(context.Background(), "l", 0, 10)
	if err != nil || terms == nil || len(terms) != 0 {
		t.Fatalf("expected empty select, got %v %v", terms, err)
	}
	terms, err = c.Search(context.Background(), "   ", 0, 10)
	if err != nil || len(terms) != 0 {
		t.Fatalf("expected empty search, got %v %v", terms, err)
	}
	if _, found, err := c.SearchByOboID(context.Background(), " "); found || err != nil {
		t.Fatalf("expected blank curie to be not found, got %v %v", found, err)
	}
	if n := len(fake.calls()); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestSearchUsesSearchEndpoint(t *testing.T) {
	fake, c := newFake(t, http.StatusOK, livDocs)
	if _, err := c.Search(context.Background(), "liver", 0, 20); err != nil {
		t.Fatalf("search: %v", err)
	}
	if calls := fake.calls(); calls[0].Path != "/api/search" {
		t.Fatalf("unexpected path %s", calls[0].Path)
	}
}

func TestSearchByOboIDExactQuery(t *testing.T) {
	fake, c := newFake(t, http.StatusOK, livDocs)
	term, found, err := c.SearchByOboID(context.Background(), "GO_0001889")
	if err != nil || !found || term.Label != "liver development" {
		t.Fatalf("unexpected result %+v %v %v", term, found, err)
	}
	q := fake.calls()[0].Query()
	if q.Get("q") != "GO:0001889" || q.Get("queryFields") != "obo_id" || q.Get("exact") != "true" {
		t.Fatalf("unexpected exact query %v", q)
	}
	if term.Class().Curie != "GO_0001889" || term.Class().Ontology != "go" {
		t.Fatalf("unexpected class conversion %+v", term.Class())
	}
}

func TestSearchByOboIDStatusHandling(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantFound bool
		wantErr   bool
	}{
		{"not found", http.StatusNotFound, ``, false, false},
		{"empty docs", http.StatusOK, `{"response":{"docs":[]}}`, false, false},
		{"missing response", http.StatusOK, `{}`, false, false},
		{"server error", http.StatusInternalServerError, `oops`, false, true},
		{"bad request", http.StatusBadRequest, `{}`, false, true},
		{"malformed", http.StatusOK, `{"response":`, false, true},
	}
	for _, tc := range cases {
		_, c := newFake(t, tc.status, tc.body)
		_, found, err := c.SearchByOboID(context.Background(), "GO:0001889")
		if found != tc.wantFound {
			t.Errorf("%s: found=%v", tc.name, found)
		}
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err=%v", tc.name, err)
			continue
		}
		if err != nil {
			var lookupErr *domain.LookupError
			if !errors.As(err, &lookupErr) || !errors.Is(err, domain.ErrLookupFailed) || lookupErr.Key != "GO:0001889" {
				t.Errorf("%s: expected lookup error, got %v", tc.name, err)
			}
		}
	}
}

func TestListFailuresAreLookupErrors(t *testing.T) {
	_, c := newFake(t, http.StatusServiceUnavailable, ``)
	if _, err := c.Select(context.Background(), "liver", 0, 10); !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("expected lookup failure, got %v", err)
	}
	unreachable, err := NewClient(WithBaseURL("http://127.0.0.1:1/api/"), WithTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := unreachable.Search(context.Background(), "liver", 0, 10); !errors.Is(err, domain.ErrLookupFailed) {
		t.Fatalf("expected transport failure as lookup error, got %v", err)
	}
}

func TestCustomEndpointsAndOntologies(t *testing.T) {
	fake := &fakeService{body: livDocs}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c, err := NewClient(WithBaseURL(srv.URL+"/ols/api/"), WithEndpoints("suggest", ""), WithOntologies("go"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := c.Select(context.Background(), "liver", 0, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	call := fake.calls()[0]
	if call.Path != "/ols/api/suggest" || call.Query().Get("ontology") != "go" {
		t.Fatalf("unexpected request %v", call)
	}
	if got := c.Ontologies(); len(got) != 1 || got[0] != "go" {
		t.Fatalf("unexpected whitelist %v", got)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient(WithBaseURL("://bad")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOboID(t *testing.T) {
	if got := OboID(" NCBITaxon_9606 "); got != "NCBITaxon:9606" {
		t.Fatalf("unexpected obo id %q", got)
	}
}
