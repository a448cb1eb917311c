// Package config manages the fulfillment service configuration.
//
// Two layers are kept strictly separate, following the same discipline the
// rest of the service uses for configuration vs state:
//
//  1. Service settings (settings.go): operational knobs loaded once at
//     startup from a YAML file — pacing delay, settle delay, file locations.
//     Never mutated at runtime.
//
//  2. Runtime store (this file): the flat persisted mapping of lot → stars
//     per unit and denomination → gift token pool, plus the enable switch.
//     Held in a mutex-guarded singleton, read BY VALUE via Snapshot() so
//     concurrent delivery workers never observe a partial update, and
//     mutated only through the Update* functions, which validate and then
//     re-persist the whole file atomically (temp file + rename).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"fulfiller/pkg/gifts"
	"fulfiller/pkg/logx"
)

// SchemaVersion guards against loading stores written by incompatible
// versions. Any change to the file layout must increment this.
const SchemaVersion = "1.0"

// DefaultGiftPools mirrors the shipped denomination set. Tokens are opaque
// identifiers the delivery client accepts; these defaults are the well-known
// public star-gift ids.
var defaultGiftPools = map[int][]string{
	100: {"5168043875654172773", "5170690322832818290", "5170521118301225164"},
	50:  {"5170144170496491616", "5170314324215857265", "5170564780938756245", "6028601630662853006"},
	25:  {"5170250947678437525", "5168103777563050263"},
	15:  {"5170145012310081615", "5170233102089322756"},
}

// storeFile is the on-disk layout. Pool keys are strings because JSON object
// keys are strings; they are converted to ints on load.
type storeFile struct {
	SchemaVersion string              `json:"schema_version"`
	Enabled       bool                `json:"enabled"`
	Lots          map[string]int      `json:"lots"`
	GiftPools     map[string][]string `json:"gift_pools"`
}

// Snapshot is a value copy of the runtime store. Safe to read from any
// goroutine; mutations to a snapshot never touch the live store.
type Snapshot struct {
	Enabled   bool
	Lots      map[string]int
	GiftPools map[int][]string
}

// Denominations derives the descending denomination set from the pool keys.
func (s Snapshot) Denominations() gifts.DenominationSet {
	set := make(gifts.DenominationSet, 0, len(s.GiftPools))
	for denom := range s.GiftPools {
		set = append(set, denom)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(set)))
	return set
}

// StarsForLot returns the per-unit stars amount for a lot, if configured.
func (s Snapshot) StarsForLot(lotID string) (int, bool) {
	stars, ok := s.Lots[lotID]
	return stars, ok
}

// Global store instance with mutex protection. storePath is set once during
// Load and never changes.
//
//nolint:gochecknoglobals // Intentional singleton pattern for the runtime store
var (
	store     *storeFile
	storePath string
	logger    *logx.Logger
	mu        sync.RWMutex
)

func getLogger() *logx.Logger {
	if logger == nil {
		logger = logx.NewLogger("config")
	}
	return logger
}

// Load reads the runtime store from path, creating it with defaults on first
// run. Must be called once at startup before Snapshot or any Update.
func Load(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		getLogger().Info("No store at %s, creating defaults", path)
		def := defaultStore()
		if err := writeStore(path, def); err != nil {
			return fmt.Errorf("failed to create default store: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read store %s: %w", path, err)
	}

	var loaded storeFile
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse store %s: %w", path, err)
	}
	if loaded.SchemaVersion != SchemaVersion {
		return fmt.Errorf("store schema version %q is not %q", loaded.SchemaVersion, SchemaVersion)
	}
	if err := validate(&loaded); err != nil {
		return fmt.Errorf("invalid store %s: %w", path, err)
	}

	store = &loaded
	storePath = path
	getLogger().Info("📦 Store loaded: %d lots, %d denominations (enabled=%v)",
		len(loaded.Lots), len(loaded.GiftPools), loaded.Enabled)
	return nil
}

// GetSnapshot returns the current store by value.
func GetSnapshot() (Snapshot, error) {
	mu.RLock()
	defer mu.RUnlock()

	if store == nil {
		return Snapshot{}, fmt.Errorf("config store not loaded")
	}
	return snapshotLocked(), nil
}

func snapshotLocked() Snapshot {
	snap := Snapshot{
		Enabled:   store.Enabled,
		Lots:      make(map[string]int, len(store.Lots)),
		GiftPools: make(map[int][]string, len(store.GiftPools)),
	}
	for lot, stars := range store.Lots {
		snap.Lots[lot] = stars
	}
	for key, pool := range store.GiftPools {
		denom, err := strconv.Atoi(key)
		if err != nil {
			continue // Rejected at load/update time; belt and braces here
		}
		snap.GiftPools[denom] = append([]string(nil), pool...)
	}
	return snap
}

// UpdateLot maps a lot to its per-unit stars amount and persists.
func UpdateLot(lotID string, stars int) error {
	if lotID == "" {
		return fmt.Errorf("lot id cannot be empty")
	}
	if stars <= 0 {
		return fmt.Errorf("stars per unit must be positive, got %d", stars)
	}
	return mutate(func(s *storeFile) {
		s.Lots[lotID] = stars
	})
}

// RemoveLot deletes a lot mapping and persists. Removing an unknown lot is an
// error so admin tooling can report typos.
func RemoveLot(lotID string) error {
	mu.RLock()
	exists := false
	if store != nil {
		_, exists = store.Lots[lotID]
	}
	mu.RUnlock()
	if !exists {
		return fmt.Errorf("lot %q not found", lotID)
	}
	return mutate(func(s *storeFile) {
		delete(s.Lots, lotID)
	})
}

// UpdateGiftPool replaces the token pool for a denomination and persists.
// Pools must stay non-empty: a denomination with no tokens cannot be shipped.
func UpdateGiftPool(denomination int, tokens []string) error {
	if denomination <= 0 {
		return fmt.Errorf("denomination must be positive, got %d", denomination)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("gift pool for denomination %d cannot be empty", denomination)
	}
	return mutate(func(s *storeFile) {
		s.GiftPools[strconv.Itoa(denomination)] = append([]string(nil), tokens...)
	})
}

// SetEnabled toggles order and message processing and persists.
func SetEnabled(enabled bool) error {
	return mutate(func(s *storeFile) {
		s.Enabled = enabled
	})
}

// mutate applies fn to a copy of the store, validates, persists atomically,
// then swaps the live store. A failed persist leaves the live store untouched.
func mutate(fn func(*storeFile)) error {
	mu.Lock()
	defer mu.Unlock()

	if store == nil {
		return fmt.Errorf("config store not loaded")
	}

	updated := copyStore(store)
	fn(updated)

	if err := validate(updated); err != nil {
		return fmt.Errorf("rejected store update: %w", err)
	}
	if err := writeStore(storePath, updated); err != nil {
		return fmt.Errorf("failed to persist store: %w", err)
	}

	store = updated
	return nil
}

func copyStore(s *storeFile) *storeFile {
	dup := &storeFile{
		SchemaVersion: s.SchemaVersion,
		Enabled:       s.Enabled,
		Lots:          make(map[string]int, len(s.Lots)),
		GiftPools:     make(map[string][]string, len(s.GiftPools)),
	}
	for lot, stars := range s.Lots {
		dup.Lots[lot] = stars
	}
	for key, pool := range s.GiftPools {
		dup.GiftPools[key] = append([]string(nil), pool...)
	}
	return dup
}

func validate(s *storeFile) error {
	if len(s.GiftPools) == 0 {
		return fmt.Errorf("gift pools cannot be empty")
	}
	for key, pool := range s.GiftPools {
		denom, err := strconv.Atoi(key)
		if err != nil || denom <= 0 {
			return fmt.Errorf("gift pool key %q is not a positive denomination", key)
		}
		if len(pool) == 0 {
			return fmt.Errorf("gift pool for denomination %s is empty", key)
		}
	}
	for lot, stars := range s.Lots {
		if stars <= 0 {
			return fmt.Errorf("lot %q has non-positive stars amount %d", lot, stars)
		}
	}
	return nil
}

// writeStore persists atomically: write to a temp file in the same directory,
// then rename over the target.
func writeStore(path string, s *storeFile) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

func defaultStore() *storeFile {
	pools := make(map[string][]string, len(defaultGiftPools))
	for denom, tokens := range defaultGiftPools {
		pools[strconv.Itoa(denom)] = append([]string(nil), tokens...)
	}
	return &storeFile{
		SchemaVersion: SchemaVersion,
		Enabled:       true,
		Lots:          make(map[string]int),
		GiftPools:     pools,
	}
}

// Reset clears the singleton. Test helper only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	store = nil
	storePath = ""
}
