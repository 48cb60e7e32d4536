package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields, carried on the context through a sync or rotation.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldSyncID is the sync run ID
	FieldSyncID = "sync_id"

	// FieldTrigger is what started a sync run (manual, scheduled, catch_up)
	FieldTrigger = "trigger"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldSurface is the display surface an image is assigned to
	FieldSurface = "surface"

	// FieldCollection is the rotation collection ID
	FieldCollection = "collection"
)

// Metric fields, used for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
