package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/timmy/wallfeed/internal/timeutil"
)

// ErrInvalidSetting is returned for unknown keys and rejected values.
var ErrInvalidSetting = errors.New("invalid setting")

var (
	resolutionPattern = regexp.MustCompile(`^[1-9]\d*x[1-9]\d*$`)
	ratioPattern      = regexp.MustCompile(`^(portrait|landscape|[1-9]\d*x[1-9]\d*)$`)
	maskPattern       = regexp.MustCompile(`^[01]{3}$`)
)

var (
	validPurities = map[string]bool{"sfw": true, "sketchy": true, "nsfw": true}
	validSortings = map[string]bool{
		"date_added": true, "relevance": true, "random": true,
		"views": true, "favorites": true, "toplist": true,
	}
)

func invalid(key, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidSetting, key, fmt.Sprintf(format, args...))
}

// Validate checks a raw value for key.
func Validate(key, value string) error {
	switch key {
	case KeySyncEnabled:
		if _, err := strconv.ParseBool(value); err != nil {
			return invalid(key, "expected true or false, got %q", value)
		}
	case KeySyncTriggerTime:
		if _, ok := timeutil.ParseTrigger(value); !ok {
			return invalid(key, "expected HH:mm, got %q", value)
		}
	case KeySyncMode:
		if value != ModeDaily && value != ModeFavorites {
			return invalid(key, "expected %s or %s, got %q", ModeDaily, ModeFavorites, value)
		}
	case KeySyncMapping:
		if value != MappingShared && value != MappingPerSurface {
			return invalid(key, "expected %s or %s, got %q", MappingShared, MappingPerSurface, value)
		}
	case KeySyncLimit, KeySyncMaxCached:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return invalid(key, "expected a positive integer, got %q", value)
		}
	case KeySearchPurity:
		if value != "" && !validPurities[strings.ToLower(value)] && !maskPattern.MatchString(value) {
			return invalid(key, "expected sfw, sketchy, nsfw or a 3-digit mask, got %q", value)
		}
	case KeySearchCategories:
		if value != "" && !maskPattern.MatchString(value) {
			return invalid(key, "expected a 3-digit mask like 111, got %q", value)
		}
	case KeySearchMinResolution:
		if value != "" && !resolutionPattern.MatchString(value) {
			return invalid(key, "expected WIDTHxHEIGHT, got %q", value)
		}
	case KeySearchRatios:
		for _, r := range splitList(value) {
			if !ratioPattern.MatchString(r) {
				return invalid(key, "bad ratio %q", r)
			}
		}
	case KeySearchSorting:
		if value != "" && !validSortings[value] {
			return invalid(key, "unknown sorting %q", value)
		}
	case KeySearchQuery, KeySearchAPIKey:
		// free text
	case KeyRotationEnabledCollection, KeyRotationLastDate, KeyRotationPendingCollection:
		return invalid(key, "managed by the rotation scheduler")
	default:
		return invalid(key, "unknown key")
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
