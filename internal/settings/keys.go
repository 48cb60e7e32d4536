package settings

// Setting keys.
const (
	KeySyncEnabled     = "sync.enabled"
	KeySyncTriggerTime = "sync.trigger_time"
	KeySyncMode        = "sync.mode"
	KeySyncMapping     = "sync.mapping"
	KeySyncLimit       = "sync.limit"
	KeySyncMaxCached   = "sync.max_cached"

	KeySearchQuery         = "search.query"
	KeySearchCategories    = "search.categories"
	KeySearchPurity        = "search.purity"
	KeySearchMinResolution = "search.min_resolution"
	KeySearchRatios        = "search.ratios"
	KeySearchSorting       = "search.sorting"
	KeySearchAPIKey        = "search.api_key"

	KeyRotationEnabledCollection = "rotation.enabled_collection"
	KeyRotationLastDate          = "rotation.last_date"
	KeyRotationPendingCollection = "rotation.pending_collection"
)

// Sync modes select the pool applied after a sync.
const (
	ModeDaily     = "daily"
	ModeFavorites = "favorites"
)

// Mapping modes control how the pool is spread across surfaces.
const (
	MappingShared     = "shared"
	MappingPerSurface = "perSurface"
)

// UserKeys lists the keys exposed through settings get/set, in display order.
var UserKeys = []string{
	KeySyncEnabled,
	KeySyncTriggerTime,
	KeySyncMode,
	KeySyncMapping,
	KeySyncLimit,
	KeySyncMaxCached,
	KeySearchQuery,
	KeySearchCategories,
	KeySearchPurity,
	KeySearchMinResolution,
	KeySearchRatios,
	KeySearchSorting,
	KeySearchAPIKey,
}

// IsScheduleKey reports whether key affects when the daily sync fires.
func IsScheduleKey(key string) bool {
	return key == KeySyncTriggerTime || key == KeySyncEnabled
}
