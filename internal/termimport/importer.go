// Package termimport loads ontology class dumps from the blob store into
// the class catalog. A dump is a JSON-lines file with one class per line.
package termimport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ontologycore/internal/blob"
	"ontologycore/internal/events"
	"ontologycore/internal/observability"
	"ontologycore/pkg/domain"
)

// DefaultBatchSize is the number of classes handed to the writer at once.
const DefaultBatchSize = 500

const maxLineBytes = 1 << 20

// ErrInvalidClass reports a dump record missing a required field.
var ErrInvalidClass = errors.New("invalid class record")

// LineError names the object and line of a record that could not be imported.
type LineError struct {
	Object string
	Line   int
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("import %s line %d: %v", e.Object, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Result is the outcome for one imported object.
type Result struct {
	Object string `json:"object"`
	Count  int    `json:"count"`
}

// Importer reads dumps from a blob store and writes their classes.
type Importer struct {
	store     blob.Store
	writer    domain.ClassWriter
	bus       *events.Bus[domain.TermsImported]
	batchSize int
	obs       observability.Options
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize overrides DefaultBatchSize. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(i *Importer) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithBus publishes a TermsImported event per imported object.
func WithBus(bus *events.Bus[domain.TermsImported]) Option {
	return func(i *Importer) { i.bus = bus }
}

// WithObservability sets logger, metrics, tracer and clock.
func WithObservability(o observability.Options) Option {
	return func(i *Importer) { i.obs = o.Normalize() }
}

// New returns an importer reading from store and writing to writer.
func New(store blob.Store, writer domain.ClassWriter, opts ...Option) *Importer {
	i := &Importer{store: store, writer: writer, batchSize: DefaultBatchSize, obs: observability.Defaults()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Import imports every object below prefix in key order. It stops at the
// first object that fails and returns the results of the objects before it.
func (i *Importer) Import(ctx context.Context, prefix string) ([]Result, error) {
	objs, err := i.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list dumps %q: %w", prefix, err)
	}
	results := make([]Result, 0, len(objs))
	for _, obj := range objs {
		n, err := i.ImportObject(ctx, obj.Key)
		if err != nil {
			return results, err
		}
		results = append(results, Result{Object: obj.Key, Count: n})
	}
	return results, nil
}

// ImportObject imports one dump. The whole object is parsed and validated
// before anything is written, so a malformed line leaves the catalog
// untouched.
func (i *Importer) ImportObject(ctx context.Context, key string) (int, error) {
	var count int
	err := i.obs.Run(ctx, "import.object", func(ctx context.Context) error {
		classes, err := i.read(ctx, key)
		if err != nil {
			return err
		}
		for start := 0; start < len(classes); start += i.batchSize {
			end := min(start+i.batchSize, len(classes))
			if err := i.writer.InsertClasses(ctx, classes[start:end]); err != nil {
				return fmt.Errorf("import %s: insert classes %d-%d: %w", key, start+1, end, err)
			}
			count = end
		}
		return nil
	})
	if err != nil {
		i.obs.Logger.Error("import dump failed", "object", key, "imported", count, "error", err)
		return count, err
	}
	i.obs.Logger.Info("imported dump", "object", key, "classes", count)
	i.bus.Publish(ctx, domain.TermsImported{ID: uuid.New(), Object: key, Count: count, At: i.obs.Clock.Now()})
	return count, nil
}

func (i *Importer) read(ctx context.Context, key string) ([]domain.Class, error) {
	rc, _, err := i.store.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open dump %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()

	var classes []domain.Class
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c domain.Class
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, &LineError{Object: key, Line: line, Err: err}
		}
		c.ID = 0
		if err := validate(c); err != nil {
			return nil, &LineError{Object: key, Line: line, Err: err}
		}
		classes = append(classes, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, &LineError{Object: key, Line: line + 1, Err: err}
	}
	return classes, nil
}

func validate(c domain.Class) error {
	var missing []string
	if strings.TrimSpace(c.Curie) == "" {
		missing = append(missing, "curie")
	}
	if strings.TrimSpace(c.Label) == "" {
		missing = append(missing, "label")
	}
	if strings.TrimSpace(c.Ontology) == "" {
		missing = append(missing, "ontology")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidClass, strings.Join(missing, ", "))
	}
	return nil
}
