// Package core composes the ontology lookups, the terminology resolver and
// the dump importer into the application service used by the CLI and the
// HTTP API.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"ontologycore/internal/blob"
	"ontologycore/internal/catalog"
	"ontologycore/internal/config"
	"ontologycore/internal/events"
	"ontologycore/internal/lookup"
	"ontologycore/internal/observability"
	"ontologycore/internal/termcache"
	"ontologycore/internal/termimport"
	"ontologycore/internal/terminology"
	"ontologycore/pkg/domain"
)

// TermSearcher is the remote terminology surface the service uses.
type TermSearcher interface {
	terminology.Source
	Select(ctx context.Context, q string, offset, limit int) ([]domain.Term, error)
	Search(ctx context.Context, q string, offset, limit int) ([]domain.Term, error)
}

var _ TermSearcher = (*terminology.Client)(nil)

// ErrNoTerminology is returned by term operations when no terminology
// client is configured.
var ErrNoTerminology = errors.New("terminology service not configured")

// Deps are the collaborators of a Service. Catalog is required; the rest
// are optional.
type Deps struct {
	Catalog      *Catalog
	Blob         blob.Store
	Terms        TermSearcher
	Cache        *termcache.Guarded
	CacheMetrics *observability.CacheMetrics
	Resolved     *events.Bus[domain.TermResolved]
	Imported     *events.Bus[domain.TermsImported]
}

// Option configures a Service.
type Option func(*observability.Options)

// WithLogger sets the structured logger.
func WithLogger(l observability.Logger) Option {
	return func(o *observability.Options) { o.Logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *observability.Options) { o.Metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t observability.Tracer) Option {
	return func(o *observability.Options) { o.Tracer = t }
}

// WithClock sets the clock.
func WithClock(c observability.Clock) Option {
	return func(o *observability.Options) { o.Clock = c }
}

// Service is the application facade.
type Service struct {
	catalog      *Catalog
	classes      *lookup.Lookup[domain.Class]
	measurements *lookup.Lookup[domain.Measurement]
	terms        TermSearcher
	resolver     *terminology.Resolver
	importer     *termimport.Importer
	obs          observability.Options
	closers      []func() error
}

// New wires a service from deps.
func New(deps Deps, opts ...Option) (*Service, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("core: catalog is required")
	}
	var o observability.Options
	for _, opt := range opts {
		opt(&o)
	}
	o = o.Normalize()
	lookupOpts := []lookup.Option{
		lookup.WithLogger(o.Logger), lookup.WithMetrics(o.Metrics),
		lookup.WithTracer(o.Tracer), lookup.WithClock(o.Clock),
	}
	s := &Service{
		catalog:      deps.Catalog,
		classes:      lookup.New(catalog.OntologyEntity(), lookup.Store[domain.Class](deps.Catalog.Classes), lookupOpts...),
		measurements: lookup.New(catalog.MeasurementEntity(), lookup.Store[domain.Measurement](deps.Catalog.Measurements), lookupOpts...),
		terms:        deps.Terms,
		obs:          o,
	}
	if deps.Terms != nil {
		s.resolver = terminology.NewResolver(deps.Terms, deps.Cache,
			terminology.WithBus(deps.Resolved),
			terminology.WithCacheMetrics(deps.CacheMetrics),
			terminology.WithResolverObservability(o))
	}
	if deps.Blob != nil {
		s.importer = termimport.New(deps.Blob, deps.Catalog.Classes,
			termimport.WithBus(deps.Imported),
			termimport.WithObservability(o))
	}
	return s, nil
}

// Open builds a service from cfg. Collectors are registered on reg when it
// is not nil. A configured NATS URL forwards both event streams to
// <subject>.resolved and <subject>.imported. Options in extra are applied
// after the defaults derived from cfg.
func Open(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger observability.Logger, extra ...Option) (svc *Service, retErr error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	var closers []func() error
	defer func() {
		if retErr != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	cat, err := OpenCatalog(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	closers = append(closers, cat.Close)

	store, err := blob.Open(ctx, blob.Config{Driver: cfg.Blob.Driver, FSRoot: cfg.Blob.FSRoot, S3: cfg.Blob.S3})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	opts := []Option{WithLogger(logger)}
	var cacheMetrics *observability.CacheMetrics
	var cacheOpts []termcache.Option
	if reg != nil {
		opts = append(opts, WithMetrics(observability.NewPrometheusRecorder(reg, cfg.Metrics.Namespace)))
		cacheMetrics = observability.NewCacheMetrics(reg, cfg.Metrics.Namespace)
		cacheOpts = append(cacheOpts, termcache.WithEvictHook(func(domain.Term) { cacheMetrics.Evictions.Inc() }))
	}
	opts = append(opts, extra...)
	var o observability.Options
	for _, opt := range opts {
		opt(&o)
	}
	o = o.Normalize()

	client, err := terminology.NewClient(
		terminology.WithBaseURL(cfg.Terminology.APIURL),
		terminology.WithEndpoints(cfg.Terminology.SelectEndpoint, cfg.Terminology.SearchEndpoint),
		terminology.WithTimeout(cfg.Terminology.Timeout),
		terminology.WithOntologies(cfg.Terminology.Ontologies...),
		terminology.WithObservability(o),
	)
	if err != nil {
		return nil, err
	}

	resolved := events.NewBus[domain.TermResolved]()
	imported := events.NewBus[domain.TermsImported]()
	if cfg.Events.NATSURL != "" {
		conn, err := events.Connect(cfg.Events.NATSURL)
		if err != nil {
			return nil, err
		}
		closers = append(closers, drain(conn))
		events.NewNATSForwarder[domain.TermResolved](conn, cfg.Events.Subject+".resolved", logger).Attach(resolved)
		events.NewNATSForwarder[domain.TermsImported](conn, cfg.Events.Subject+".imported", logger).Attach(imported)
	}

	svc, err = New(Deps{
		Catalog:      cat,
		Blob:         store,
		Terms:        client,
		Cache:        termcache.NewGuarded(cfg.Terminology.CacheSize, cacheOpts...),
		CacheMetrics: cacheMetrics,
		Resolved:     resolved,
		Imported:     imported,
	}, opts...)
	if err != nil {
		return nil, err
	}
	svc.closers = closers
	logger.Info("service ready", "storage", string(cat.Driver), "blob", string(store.Driver()), "terminology", cfg.Terminology.APIURL)
	return svc, nil
}

func drain(conn *nats.Conn) func() error {
	return func() error {
		err := conn.Drain()
		conn.Close()
		return err
	}
}

// Close releases the catalog and event connections.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Catalog returns the backing catalog.
func (s *Service) Catalog() *Catalog { return s.catalog }

// SearchClasses looks up ontology classes by label within the ontologies
// named by the filter scope.
func (s *Service) SearchClasses(ctx context.Context, f domain.Filter, offset, limit int, sort ...domain.SortOrder) (domain.Page[domain.Class], error) {
	return s.classes.Lookup(ctx, f, offset, limit, sort...)
}

// CountClasses counts the classes SearchClasses would return without a window.
func (s *Service) CountClasses(ctx context.Context, f domain.Filter) (int, error) {
	return s.classes.Count(ctx, f)
}

// ClassByCurie returns the local class stored under curie, which may be in
// obo (GO:0001889) or stored (GO_0001889) notation. The lowest ID wins if
// several ontologies carry the CURIE.
func (s *Service) ClassByCurie(ctx context.Context, curie string) (domain.Class, bool, error) {
	var (
		class domain.Class
		found bool
	)
	err := s.obs.Run(ctx, "lookup.class_by_curie", func(ctx context.Context) error {
		items, err := s.catalog.Classes.Find(ctx, lookup.Query{
			Predicate: catalog.ClassByCurie(curie),
			Order:     []lookup.Order{{Field: catalog.ClassID}},
			Limit:     1,
		})
		if err != nil {
			return err
		}
		if len(items) > 0 {
			class, found = items[0], true
		}
		return nil
	})
	return class, found, err
}

// Ontologies lists the abbreviations of the ontologies with local classes,
// sorted.
func (s *Service) Ontologies(ctx context.Context) ([]string, error) {
	var out []string
	err := s.obs.Run(ctx, "lookup.ontologies", func(ctx context.Context) error {
		var err error
		out, err = s.catalog.Classes.Ontologies(ctx)
		return err
	})
	return out, err
}

// SearchMeasurements looks up measurements linked to the filter's samples.
func (s *Service) SearchMeasurements(ctx context.Context, f domain.Filter, offset, limit int, sort ...domain.SortOrder) (domain.Page[domain.Measurement], error) {
	return s.measurements.Lookup(ctx, f, offset, limit, sort...)
}

// CountMeasurements counts the measurements SearchMeasurements would return.
func (s *Service) CountMeasurements(ctx context.Context, f domain.Filter) (int, error) {
	return s.measurements.Count(ctx, f)
}

// RegisterMeasurement stores a measurement and its sample links.
func (s *Service) RegisterMeasurement(ctx context.Context, m domain.Measurement, sampleIDs []string) error {
	return s.obs.Run(ctx, "register.measurement", func(ctx context.Context) error {
		return s.catalog.Measurements.InsertMeasurement(ctx, m, sampleIDs)
	})
}

// ResolveTerm resolves a CURIE through the term cache and the remote service.
func (s *Service) ResolveTerm(ctx context.Context, curie string) (domain.Term, bool, error) {
	if s.resolver == nil {
		return domain.Term{}, false, ErrNoTerminology
	}
	return s.resolver.Resolve(ctx, curie)
}

// SearchTerminology runs a full text search against the remote service.
func (s *Service) SearchTerminology(ctx context.Context, q string, offset, limit int) ([]domain.Term, error) {
	if s.terms == nil {
		return nil, ErrNoTerminology
	}
	return s.terms.Search(ctx, q, offset, limit)
}

// SuggestTerminology runs an autocomplete query against the remote service.
func (s *Service) SuggestTerminology(ctx context.Context, q string, offset, limit int) ([]domain.Term, error) {
	if s.terms == nil {
		return nil, ErrNoTerminology
	}
	return s.terms.Select(ctx, q, offset, limit)
}

// ImportClasses imports every dump below prefix into the class catalog.
func (s *Service) ImportClasses(ctx context.Context, prefix string) ([]termimport.Result, error) {
	if s.importer == nil {
		return nil, fmt.Errorf("core: no blob store configured")
	}
	return s.importer.Import(ctx, prefix)
}

// CachedTerms returns the number of terms held by the resolver cache.
func (s *Service) CachedTerms() int {
	if s.resolver == nil {
		return 0
	}
	return s.resolver.CacheSize()
}
