package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/timmy/wallfeed/internal/config"
	"github.com/timmy/wallfeed/internal/domain"
	"github.com/timmy/wallfeed/internal/logger"
	"github.com/zalando/go-keyring"
)

// Snapshot is the typed view of every user setting at one instant.
type Snapshot struct {
	SyncEnabled   bool
	TriggerTime   string
	Mode          string
	Mapping       string
	Limit         int
	MaxCached     int
	Query         string
	Categories    string
	Purity        string
	MinResolution string
	Ratios        []string
	Sorting       string
	APIKey        string
}

// SearchOptions builds the remote search parameters from the snapshot.
func (s Snapshot) SearchOptions() domain.SearchOptions {
	return domain.SearchOptions{
		Query:         s.Query,
		Categories:    s.Categories,
		Purity:        s.Purity,
		MinResolution: s.MinResolution,
		Ratios:        append([]string(nil), s.Ratios...),
		Sorting:       s.Sorting,
		Limit:         s.Limit,
		APIKey:        s.APIKey,
	}
}

// Service reads and writes settings, falling back to configured defaults.
type Service struct {
	store       Store
	defaults    config.SyncConfig
	keyring     Keyring
	keyService  string
	keyAccount  string
	fallbackKey string
	logger      *logger.Logger

	mu        sync.RWMutex
	listeners []ChangeFunc
}

// ChangeFunc is called after a user setting has been saved.
type ChangeFunc func(ctx context.Context, key string)

// Option configures a Service.
type Option func(*Service)

// WithKeyring overrides the OS keyring.
func WithKeyring(k Keyring) Option {
	return func(s *Service) {
		s.keyring = k
	}
}

// WithKeyringAccount sets the keyring service and account for the API key.
func WithKeyringAccount(service, account string) Option {
	return func(s *Service) {
		if service != "" {
			s.keyService = service
		}
		if account != "" {
			s.keyAccount = account
		}
	}
}

// WithFallbackAPIKey sets the key used when neither the store nor the keyring has one.
func WithFallbackAPIKey(key string) Option {
	return func(s *Service) {
		s.fallbackKey = key
	}
}

// NewService creates a settings service.
func NewService(store Store, defaults *config.SyncConfig, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		keyring:    SystemKeyring(),
		keyService: "wallfeed",
		keyAccount: "wallhaven",
		logger:     log,
	}
	if defaults != nil {
		s.defaults = *defaults
	}
	if s.logger == nil {
		s.logger = logger.GetDefault()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) log(ctx context.Context) *logger.Logger {
	if logger.HasLogger(ctx) {
		return logger.FromContext(ctx)
	}
	return s.logger
}

func (s *Service) defaultValue(key string) string {
	d := s.defaults
	switch key {
	case KeySyncEnabled:
		return strconv.FormatBool(d.Enabled)
	case KeySyncTriggerTime:
		return d.TriggerTime
	case KeySyncMode:
		return d.Mode
	case KeySyncMapping:
		return d.Mapping
	case KeySyncLimit:
		return strconv.Itoa(d.Limit)
	case KeySyncMaxCached:
		return strconv.Itoa(d.MaxCached)
	case KeySearchQuery:
		return d.Query
	case KeySearchCategories:
		return d.Categories
	case KeySearchPurity:
		return d.Purity
	case KeySearchMinResolution:
		return d.MinResolution
	case KeySearchRatios:
		return strings.Join(d.Ratios, ",")
	case KeySearchSorting:
		return d.Sorting
	}
	return ""
}

// Get returns the effective value for key: the stored value, else the default.
// The API key additionally falls back to the OS keyring.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if !isUserKey(key) {
		return "", invalid(key, "unknown key")
	}

	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if ok {
		return v, nil
	}
	if key == KeySearchAPIKey {
		return s.keyringAPIKey(ctx), nil
	}
	return s.defaultValue(key), nil
}

// Set validates and persists a value.
func (s *Service) Set(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	if err := Validate(key, value); err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	if key != KeySearchAPIKey {
		s.log(ctx).WithFields(logger.Fields{"key": key, "value": value}).Info("Setting updated")
	}
	s.notify(ctx, key)
	return nil
}

// OnChange registers fn to run after every successful Set.
func (s *Service) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Service) notify(ctx context.Context, key string) {
	s.mu.RLock()
	listeners := append([]ChangeFunc(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, key)
	}
}

// All returns the effective value of every user key. The API key is masked.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(UserKeys))
	for _, key := range UserKeys {
		v, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if key == KeySearchAPIKey {
			v = MaskSecret(v)
		}
		out[key] = v
	}
	return out, nil
}

// Snapshot loads every user setting. Unparseable stored values fall back to defaults.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	values := make(map[string]string, len(UserKeys))
	for _, key := range UserKeys {
		v, err := s.Get(ctx, key)
		if err != nil {
			return Snapshot{}, err
		}
		if v != "" && Validate(key, v) != nil {
			s.log(ctx).WithFields(logger.Fields{"key": key, "value": v}).Warn("Ignoring invalid stored setting")
			v = s.defaultValue(key)
		}
		values[key] = v
	}

	enabled, _ := strconv.ParseBool(values[KeySyncEnabled])
	limit, _ := strconv.Atoi(values[KeySyncLimit])
	maxCached, _ := strconv.Atoi(values[KeySyncMaxCached])
	if limit <= 0 {
		limit = 24
	}
	if maxCached <= 0 {
		maxCached = 200
	}

	return Snapshot{
		SyncEnabled:   enabled,
		TriggerTime:   values[KeySyncTriggerTime],
		Mode:          orDefault(values[KeySyncMode], ModeDaily),
		Mapping:       orDefault(values[KeySyncMapping], MappingShared),
		Limit:         limit,
		MaxCached:     maxCached,
		Query:         values[KeySearchQuery],
		Categories:    values[KeySearchCategories],
		Purity:        values[KeySearchPurity],
		MinResolution: values[KeySearchMinResolution],
		Ratios:        splitList(values[KeySearchRatios]),
		Sorting:       values[KeySearchSorting],
		APIKey:        values[KeySearchAPIKey],
	}, nil
}

// StoreAPIKey saves the API key in the OS keyring.
func (s *Service) StoreAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: %s: empty key", ErrInvalidSetting, KeySearchAPIKey)
	}
	if err := s.keyring.Set(s.keyService, s.keyAccount, key); err != nil {
		return fmt.Errorf("failed to store api key in keyring: %w", err)
	}
	s.log(ctx).Info("API key stored in keyring")
	return nil
}

// DeleteAPIKey removes the API key from the OS keyring.
func (s *Service) DeleteAPIKey(ctx context.Context) error {
	if err := s.keyring.Delete(s.keyService, s.keyAccount); err != nil {
		return fmt.Errorf("failed to delete api key from keyring: %w", err)
	}
	return nil
}

func (s *Service) keyringAPIKey(ctx context.Context) string {
	v, err := s.keyring.Get(s.keyService, s.keyAccount)
	if err == nil && v != "" {
		return v
	}
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		s.log(ctx).WithError(err).Debug("Keyring lookup failed")
	}
	return s.fallbackKey
}

// RotationState loads the persisted rotation state.
func (s *Service) RotationState(ctx context.Context) (domain.RotationState, error) {
	var st domain.RotationState
	for key, dst := range map[string]*string{
		KeyRotationEnabledCollection: &st.EnabledCollectionID,
		KeyRotationLastDate:          &st.LastRotationDate,
		KeyRotationPendingCollection: &st.PendingRotationCollectionID,
	} {
		v, _, err := s.store.Get(ctx, key)
		if err != nil {
			return domain.RotationState{}, fmt.Errorf("failed to read setting %s: %w", key, err)
		}
		*dst = v
	}
	return st, nil
}

// SaveRotationState persists every rotation field.
func (s *Service) SaveRotationState(ctx context.Context, st domain.RotationState) error {
	for _, kv := range [][2]string{
		{KeyRotationEnabledCollection, st.EnabledCollectionID},
		{KeyRotationLastDate, st.LastRotationDate},
		{KeyRotationPendingCollection, st.PendingRotationCollectionID},
	} {
		if err := s.store.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", kv[0], err)
		}
	}
	return nil
}

// MaskSecret hides all but the last four characters.
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return strings.Repeat("*", len(v))
	}
	return strings.Repeat("*", len(v)-4) + v[len(v)-4:]
}

func isUserKey(key string) bool {
	for _, k := range UserKeys {
		if k == key {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
