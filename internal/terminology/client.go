// Package terminology talks to the TIB terminology service and resolves
// CURIEs to terms through a bounded in-process cache.
package terminology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ontologycore/internal/fulltext"
	"ontologycore/internal/observability"
	"ontologycore/pkg/domain"
)

const (
	// DefaultAPIURL is the TIB terminology service API root.
	DefaultAPIURL = "https://api.terminology.tib.eu/api/"
	// DefaultSelectEndpoint serves autocomplete queries.
	DefaultSelectEndpoint = "select"
	// DefaultSearchEndpoint serves full and exact searches.
	DefaultSearchEndpoint = "search"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 5 * time.Second
)

// DefaultOntologies is the ontology whitelist sent with every query.
var DefaultOntologies = []string{
	"bao", "bto", "chebi", "edam", "efo", "envo", "go", "mi", "ms", "ncit", "po",
}

// Client queries the terminology service. It is safe for concurrent use.
type Client struct {
	httpClient     *http.Client
	apiURL         string
	selectEndpoint string
	searchEndpoint string
	ontologies     []string
	obs            observability.Options

	selectURL *url.URL
	searchURL *url.URL
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets the API root the endpoints are resolved against.
func WithBaseURL(apiURL string) ClientOption {
	return func(c *Client) {
		if apiURL != "" {
			c.apiURL = apiURL
		}
	}
}

// WithEndpoints overrides the select and search endpoint paths. Empty
// values keep the defaults.
func WithEndpoints(selectEndpoint, searchEndpoint string) ClientOption {
	return func(c *Client) {
		if selectEndpoint != "" {
			c.selectEndpoint = selectEndpoint
		}
		if searchEndpoint != "" {
			c.searchEndpoint = searchEndpoint
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithOntologies replaces the ontology whitelist.
func WithOntologies(ontologies ...string) ClientOption {
	return func(c *Client) {
		if len(ontologies) > 0 {
			c.ontologies = append([]string(nil), ontologies...)
		}
	}
}

// WithObservability sets logger, metrics, tracer and clock in one go.
func WithObservability(o observability.Options) ClientOption {
	return func(c *Client) { c.obs = o.Normalize() }
}

// NewClient creates a client for the configured service.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		apiURL:         DefaultAPIURL,
		selectEndpoint: DefaultSelectEndpoint,
		searchEndpoint: DefaultSearchEndpoint,
		ontologies:     append([]string(nil), DefaultOntologies...),
		obs:            observability.Defaults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	base, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse terminology api url: %w", err)
	}
	if c.selectURL, err = base.Parse(c.selectEndpoint); err != nil {
		return nil, fmt.Errorf("parse select endpoint: %w", err)
	}
	if c.searchURL, err = base.Parse(c.searchEndpoint); err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	return c, nil
}

// Ontologies returns a copy of the whitelist.
func (c *Client) Ontologies() []string { return append([]string(nil), c.ontologies...) }

// Select runs an autocomplete query. Input shorter than the fulltext
// minimum returns no terms without contacting the service.
func (c *Client) Select(ctx context.Context, q string, offset, limit int) ([]domain.Term, error) {
	if fulltext.TooShort(q) {
		return []domain.Term{}, nil
	}
	return c.list(ctx, "select", c.selectURL, c.windowQuery(q, offset, limit))
}

// Search runs a full search. Blank input returns no terms without
// contacting the service.
func (c *Client) Search(ctx context.Context, q string, offset, limit int) ([]domain.Term, error) {
	if strings.TrimSpace(q) == "" {
		return []domain.Term{}, nil
	}
	return c.list(ctx, "search", c.searchURL, c.windowQuery(q, offset, limit))
}

// SearchByOboID looks a term up by exact obo id. Both GO_0001889 and
// GO:0001889 notations are accepted. A missing term is reported with
// found == false and no error.
func (c *Client) SearchByOboID(ctx context.Context, curie string) (term domain.Term, found bool, err error) {
	oboID := OboID(curie)
	if oboID == "" {
		return domain.Term{}, false, nil
	}
	params := url.Values{}
	params.Set("q", oboID)
	params.Set("queryFields", "obo_id")
	params.Set("exact", "true")
	params.Set("ontology", strings.Join(c.ontologies, ","))
	err = c.obs.Run(ctx, "terminology.search_by_obo_id", func(ctx context.Context) error {
		status, body, err := c.get(ctx, c.searchURL, params)
		if err != nil {
			return &domain.LookupError{Op: "search_by_obo_id", Key: oboID, Err: err}
		}
		c.obs.Logger.Debug("terminology response", "status", status, "obo_id", oboID)
		switch status {
		case http.StatusNotFound:
			return nil
		case http.StatusOK:
		default:
			c.obs.Logger.Error("unexpected terminology response", "status", status, "obo_id", oboID)
			return &domain.LookupError{Op: "search_by_obo_id", Key: oboID, Err: statusError(status)}
		}
		terms, err := decodeDocs(body)
		if err != nil {
			return &domain.LookupError{Op: "search_by_obo_id", Key: oboID, Err: err}
		}
		if len(terms) > 0 {
			term, found = terms[0], true
		}
		return nil
	})
	if err != nil {
		return domain.Term{}, false, err
	}
	return term, found, nil
}

// OboID normalises a CURIE to obo notation by replacing underscores with
// colons.
func OboID(curie string) string {
	return strings.ReplaceAll(strings.TrimSpace(curie), "_", ":")
}

func (c *Client) windowQuery(q string, offset, limit int) url.Values {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(q))
	params.Set("rows", strconv.Itoa(limit))
	params.Set("start", strconv.Itoa(offset))
	params.Set("ontology", strings.Join(c.ontologies, ","))
	return params
}

func (c *Client) list(ctx context.Context, op string, endpoint *url.URL, params url.Values) ([]domain.Term, error) {
	var terms []domain.Term
	err := c.obs.Run(ctx, "terminology."+op, func(ctx context.Context) error {
		status, body, err := c.get(ctx, endpoint, params)
		if err != nil {
			return &domain.LookupError{Op: op, Key: params.Get("q"), Err: err}
		}
		if status < 200 || status > 299 {
			return &domain.LookupError{Op: op, Key: params.Get("q"), Err: statusError(status)}
		}
		terms, err = decodeDocs(body)
		if err != nil {
			return &domain.LookupError{Op: op, Key: params.Get("q"), Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return terms, nil
}

func (c *Client) get(ctx context.Context, endpoint *url.URL, params url.Values) (int, []byte, error) {
	target := *endpoint
	target.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

type statusError int

func (s statusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", int(s), http.StatusText(int(s)))
}

// envelope mirrors the /response/docs path of the service payload.
type envelope struct {
	Response *struct {
		Docs []doc `json:"docs"`
	} `json:"response"`
}

type doc struct {
	ID             string   `json:"id"`
	IRI            string   `json:"iri"`
	ShortForm      string   `json:"short_form"`
	OboID          string   `json:"obo_id"`
	Label          string   `json:"label"`
	OntologyName   string   `json:"ontology_name"`
	OntologyPrefix string   `json:"ontology_prefix"`
	Description    []string `json:"description"`
}

func (d doc) term() domain.Term {
	t := domain.Term{
		ID:             d.ID,
		IRI:            d.IRI,
		ShortForm:      d.ShortForm,
		OboID:          d.OboID,
		Label:          d.Label,
		OntologyName:   d.OntologyName,
		OntologyPrefix: d.OntologyPrefix,
	}
	if len(d.Description) > 0 {
		t.Description = d.Description[0]
	}
	return t
}

var errMalformed = errors.New("malformed terminology payload")

func decodeDocs(body []byte) ([]domain.Term, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	terms := []domain.Term{}
	if env.Response == nil {
		return terms, nil
	}
	for _, d := range env.Response.Docs {
		terms = append(terms, d.term())
	}
	return terms, nil
}
