// Package application hosts the redirection registry: a set of independent
// number-redirection tables addressed by handle.
//
// Resolution follows a chain of redirections until it reaches an unmapped
// number. When the chain loops back on itself, Transform returns the
// number it was asked about. A cycle is treated as no effective
// redirection rather than as an error; the cycle is logged and recorded
// on the span, but the call succeeds.
//
// A Registry is safe for concurrent use. One mutex guards every table and
// the handle counter.
package application

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/maptel/internal/cachemanager"
	"github.com/zjrosen/maptel/internal/log"
	"github.com/zjrosen/maptel/internal/pubsub"
	"github.com/zjrosen/maptel/internal/registry/domain"
	"github.com/zjrosen/maptel/internal/tracing"
)

// Registry owns redirection tables keyed by handle.
type Registry struct {
	id     string
	tracer trace.Tracer
	cache  *cachemanager.ResolutionCache
	broker *pubsub.Broker[TableEvent]

	mu     sync.Mutex
	tables map[domain.Handle]*domain.Table
	next   domain.Handle
}

// Option configures a Registry.
type Option func(*Registry)

// WithTracer records a span for every operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// WithResolutionCache memoises Transform results.
func WithResolutionCache(cache *cachemanager.ResolutionCache) Option {
	return func(r *Registry) {
		r.cache = cache
	}
}

// WithBroker publishes a TableEvent for every change.
func WithBroker(broker *pubsub.Broker[TableEvent]) Option {
	return func(r *Registry) {
		r.broker = broker
	}
}

// New returns an empty registry whose first table will get handle 0.
func New(opts ...Option) *Registry {
	r := &Registry{
		id:     uuid.NewString(),
		tracer: noop.NewTracerProvider().Tracer("maptel"),
		tables: make(map[domain.Handle]*domain.Table),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the registry instance ID used in logs and spans.
func (r *Registry) ID() string {
	return r.id
}

// CreateTable allocates an empty table and returns its handle.
func (r *Registry) CreateTable(ctx context.Context) domain.Handle {
	_, span := r.start(ctx, tracing.SpanCreate)
	defer span.End()

	r.mu.Lock()
	h := r.next
	r.next++
	r.tables[h] = domain.NewTable()
	r.mu.Unlock()

	span.SetAttributes(attribute.String(tracing.AttrHandle, h.String()))
	log.Debug(log.CatRegistry, "table created", "registry", r.id, "handle", h)
	r.publish(pubsub.CreatedEvent, TableEvent{Op: OpCreate, Handle: h})
	return h
}

// DestroyTable removes the table behind h. The handle is never reissued.
func (r *Registry) DestroyTable(ctx context.Context, h domain.Handle) error {
	_, span := r.start(ctx, tracing.SpanDestroy, attribute.String(tracing.AttrHandle, h.String()))
	defer span.End()

	r.mu.Lock()
	_, ok := r.tables[h]
	delete(r.tables, h)
	r.mu.Unlock()

	if !ok {
		return fail(span, fmt.Errorf("destroy table %d: %w", h, domain.ErrInvalidHandle))
	}

	if r.cache != nil {
		r.cache.DropTable(h)
	}
	log.Debug(log.CatRegistry, "table deleted", "registry", r.id, "handle", h)
	r.publish(pubsub.DeletedEvent, TableEvent{Op: OpDestroy, Handle: h})
	return nil
}

// Insert maps source to destination in table h, replacing any earlier
// destination for source.
func (r *Registry) Insert(ctx context.Context, h domain.Handle, source, destination string) error {
	_, span := r.start(ctx, tracing.SpanInsert,
		attribute.String(tracing.AttrHandle, h.String()),
		attribute.String(tracing.AttrSource, source),
		attribute.String(tracing.AttrDestination, destination),
	)
	defer span.End()

	src, err := domain.ParseNumber(source)
	if err != nil {
		return fail(span, fmt.Errorf("insert source: %w", err))
	}
	dst, err := domain.ParseNumber(destination)
	if err != nil {
		return fail(span, fmt.Errorf("insert destination: %w", err))
	}

	r.mu.Lock()
	tbl, ok := r.tables[h]
	if ok {
		tbl.Set(src, dst)
	}
	r.mu.Unlock()

	if !ok {
		return fail(span, fmt.Errorf("insert into table %d: %w", h, domain.ErrInvalidHandle))
	}

	log.Debug(log.CatRegistry, "inserted", "registry", r.id, "handle", h, "source", src, "destination", dst)
	r.publish(pubsub.UpdatedEvent, TableEvent{Op: OpInsert, Handle: h, Source: src, Destination: dst})
	return nil
}

// Erase removes the mapping for source from table h. Erasing a number that
// is not mapped succeeds and changes nothing.
func (r *Registry) Erase(ctx context.Context, h domain.Handle, source string) error {
	_, span := r.start(ctx, tracing.SpanErase,
		attribute.String(tracing.AttrHandle, h.String()),
		attribute.String(tracing.AttrSource, source),
	)
	defer span.End()

	src, err := domain.ParseNumber(source)
	if err != nil {
		return fail(span, fmt.Errorf("erase: %w", err))
	}

	r.mu.Lock()
	tbl, ok := r.tables[h]
	erased := ok && tbl.Delete(src)
	r.mu.Unlock()

	if !ok {
		return fail(span, fmt.Errorf("erase from table %d: %w", h, domain.ErrInvalidHandle))
	}

	span.SetAttributes(attribute.Bool(tracing.AttrErased, erased))
	if !erased {
		log.Debug(log.CatRegistry, "nothing to erase", "registry", r.id, "handle", h, "source", src)
		return nil
	}

	log.Debug(log.CatRegistry, "erased", "registry", r.id, "handle", h, "source", src)
	r.publish(pubsub.UpdatedEvent, TableEvent{Op: OpErase, Handle: h, Source: src})
	return nil
}

// Resolve follows the redirection chain for source in table h and reports
// how the walk ended.
func (r *Registry) Resolve(ctx context.Context, h domain.Handle, source string) (domain.Resolution, error) {
	_, span := r.start(ctx, tracing.SpanTransform,
		attribute.String(tracing.AttrHandle, h.String()),
		attribute.String(tracing.AttrSource, source),
	)
	defer span.End()

	res, err := r.resolve(span, h, source)
	if err != nil {
		return domain.Resolution{}, fail(span, err)
	}
	return res, nil
}

// Transform returns the number that source finally redirects to in table
// h: source itself if it is unmapped or its chain is cyclic.
func (r *Registry) Transform(ctx context.Context, h domain.Handle, source string) (string, error) {
	res, err := r.Resolve(ctx, h, source)
	if err != nil {
		return "", err
	}
	return res.Destination.String(), nil
}

// TransformInto writes the transformed number followed by a NUL byte into
// dst and returns the number's length. When dst cannot hold both, nothing
// is written and the error wraps domain.ErrBufferTooSmall.
func (r *Registry) TransformInto(ctx context.Context, h domain.Handle, source string, dst []byte) (int, error) {
	_, span := r.start(ctx, tracing.SpanTransform,
		attribute.String(tracing.AttrHandle, h.String()),
		attribute.String(tracing.AttrSource, source),
		attribute.Int(tracing.AttrCapacity, len(dst)),
	)
	defer span.End()

	res, err := r.resolve(span, h, source)
	if err != nil {
		return 0, fail(span, err)
	}

	out := res.Destination.String()
	if need := len(out) + 1; len(dst) < need {
		return 0, fail(span, fmt.Errorf("transform %s: need %d bytes, have %d: %w",
			source, need, len(dst), domain.ErrBufferTooSmall))
	}
	n := copy(dst, out)
	dst[n] = 0
	return n, nil
}

func (r *Registry) resolve(span trace.Span, h domain.Handle, source string) (domain.Resolution, error) {
	src, err := domain.ParseNumber(source)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("transform: %w", err)
	}

	r.mu.Lock()
	res, hit, ok := r.resolveLocked(h, src)
	r.mu.Unlock()

	if !ok {
		return domain.Resolution{}, fmt.Errorf("transform in table %d: %w", h, domain.ErrInvalidHandle)
	}

	span.SetAttributes(
		attribute.String(tracing.AttrDestination, res.Destination.String()),
		attribute.Int(tracing.AttrHops, res.Hops),
		attribute.Bool(tracing.AttrCycle, res.Cycle),
	)
	if r.cache != nil {
		span.SetAttributes(attribute.Bool(tracing.AttrCacheHit, hit))
	}
	if res.Cycle {
		span.AddEvent(tracing.EventCycleDetected)
		log.Warn(log.CatRegistry, "cycle detected", "registry", r.id, "handle", h, "source", src, "hops", res.Hops)
	}
	log.Debug(log.CatRegistry, "transformed", "registry", r.id, "handle", h, "source", src, "destination", res.Destination)
	return res, nil
}

// resolveLocked must be called with r.mu held.
func (r *Registry) resolveLocked(h domain.Handle, src domain.Number) (domain.Resolution, bool, bool) {
	tbl, ok := r.tables[h]
	if !ok {
		return domain.Resolution{}, false, false
	}
	if r.cache == nil {
		return tbl.Resolve(src), false, true
	}

	key := cachemanager.Key{Handle: h, Generation: tbl.Generation(), Source: src}
	res, hit := r.cache.GetOrResolve(key, func() domain.Resolution { return tbl.Resolve(src) })
	return res, hit, true
}

// Has reports whether h names a live table.
func (r *Registry) Has(h domain.Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tables[h]
	return ok
}

// Len returns the number of live tables.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tables)
}

// Handles returns the live handles in ascending order.
func (r *Registry) Handles() []domain.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.tables))
}

// Entries returns a snapshot of the direct mappings in table h.
func (r *Registry) Entries(h domain.Handle) (map[domain.Number]domain.Number, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tbl, ok := r.tables[h]
	if !ok {
		return nil, fmt.Errorf("entries of table %d: %w", h, domain.ErrInvalidHandle)
	}
	return tbl.Entries(), nil
}

// Subscribe returns a channel of change events. Without a broker the
// channel is closed immediately.
func (r *Registry) Subscribe(ctx context.Context) <-chan pubsub.Event[TableEvent] {
	if r.broker == nil {
		ch := make(chan pubsub.Event[TableEvent])
		close(ch)
		return ch
	}
	return r.broker.Subscribe(ctx)
}

func (r *Registry) publish(eventType pubsub.EventType, ev TableEvent) {
	if r.broker != nil {
		r.broker.Publish(eventType, ev)
	}
}

func (r *Registry) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String(tracing.AttrRegistryID, r.id))
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Debug(log.CatRegistry, "operation failed", "error", err)
	return err
}
