package tracing

// Span names, one per registry operation.
const (
	SpanCreate    = "maptel.create"
	SpanDestroy   = "maptel.destroy"
	SpanInsert    = "maptel.insert"
	SpanErase     = "maptel.erase"
	SpanTransform = "maptel.transform"
)

// Span attribute keys.
const (
	AttrRegistryID  = "maptel.registry.id"
	AttrHandle      = "maptel.handle"
	AttrSource      = "maptel.source"
	AttrDestination = "maptel.destination"
	AttrHops        = "maptel.hops"
	AttrCycle       = "maptel.cycle"
	AttrCacheHit    = "maptel.cache.hit"
	AttrErased      = "maptel.erased"
	AttrCapacity    = "maptel.capacity"
)

// Span event names.
const (
	EventCycleDetected = "cycle.detected"
)
