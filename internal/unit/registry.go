package unit

import (
	"context"
	"fmt"
	"sync"
)

// Logger is the minimal logging surface the registry needs. The slog
// wrapper in infrastructure/logging satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the authoritative in-process view of the unit catalogue.
// Reads are served from an in-memory cache so the reconcile hot path
// never touches SQLite; writes go through the repository and update the
// cache on success.
//
// Everything handed out is a deep copy. Callers mutate their copy and
// submit it back through UpdateUnit.
type Registry struct {
	repo    Repository
	cacheMu sync.RWMutex
	cache   map[string]*Unit // keyed by unit ID
	logger  Logger
}

// NewRegistry wraps a repository. Call RefreshCache before serving
// lookups.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Unit),
		logger: noopLogger{},
	}
}

// SetLogger replaces the no-op default.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache rebuilds the cache from the repository. Run once at
// startup; afterwards the CRUD methods keep the cache in step.
func (r *Registry) RefreshCache(ctx context.Context) error {
	units, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading units: %w", err)
	}

	fresh := make(map[string]*Unit, len(units))
	for i := range units {
		fresh[units[i].ID] = units[i].DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = fresh
	r.cacheMu.Unlock()

	r.logger.Info("unit cache refreshed", "count", len(units))
	return nil
}

// cacheStore replaces one cached entry with a private copy.
func (r *Registry) cacheStore(u *Unit) {
	r.cacheMu.Lock()
	r.cache[u.ID] = u.DeepCopy()
	r.cacheMu.Unlock()
}

// cachedList copies out every cached unit matching keep (nil keeps all).
// Reports false when the cache is empty so callers can fall back to the
// repository.
func (r *Registry) cachedList(keep func(*Unit) bool) ([]Unit, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	if len(r.cache) == 0 {
		return nil, false
	}
	units := make([]Unit, 0, len(r.cache))
	for _, u := range r.cache {
		if keep == nil || keep(u) {
			units = append(units, *u.DeepCopy())
		}
	}
	return units, true
}

// GetUnit returns a copy of the unit with the given ID, consulting the
// repository when the cache misses. Returns ErrUnitNotFound if it does
// not exist anywhere.
func (r *Registry) GetUnit(ctx context.Context, id string) (*Unit, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	u, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cacheStore(u)
	return u, nil
}

// GetUnitBySlug returns a copy of the unit with the given slug, or
// ErrUnitNotFound. Slug lookups are cache-only; the cache holds the
// full catalogue after RefreshCache.
func (r *Registry) GetUnitBySlug(_ context.Context, slug string) (*Unit, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, u := range r.cache {
		if u.Slug == slug {
			return u.DeepCopy(), nil
		}
	}
	return nil, ErrUnitNotFound
}

// ListUnits returns copies of every unit.
func (r *Registry) ListUnits(ctx context.Context) ([]Unit, error) {
	if units, ok := r.cachedList(nil); ok {
		return units, nil
	}
	return r.repo.List(ctx)
}

// ListEnabledUnits returns copies of the units with reconciliation
// switched on.
func (r *Registry) ListEnabledUnits(ctx context.Context) ([]Unit, error) {
	if units, ok := r.cachedList(func(u *Unit) bool { return u.Enabled }); ok {
		return units, nil
	}

	all, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var units []Unit
	for _, u := range all {
		if u.Enabled {
			units = append(units, u)
		}
	}
	return units, nil
}

// GetUnitsByGeneration returns copies of the units in one firmware
// family.
func (r *Registry) GetUnitsByGeneration(ctx context.Context, g Generation) ([]Unit, error) {
	if units, ok := r.cachedList(func(u *Unit) bool { return u.Generation == g }); ok {
		return units, nil
	}
	return r.repo.ListByGeneration(ctx, g)
}

// CreateUnit validates and persists a new unit, filling in the ID and
// slug when the caller left them blank.
func (r *Registry) CreateUnit(ctx context.Context, u *Unit) error {
	if u.ID == "" {
		u.ID = GenerateID()
	}
	if u.Slug == "" {
		u.Slug = GenerateSlug(u.Name)
	}
	if err := ValidateUnit(u); err != nil {
		return err
	}
	if err := r.repo.Create(ctx, u); err != nil {
		return err
	}

	r.cacheStore(u)
	r.logger.Info("unit created", "id", u.ID, "name", u.Name, "generation", u.Generation)
	return nil
}

// UpdateUnit validates and persists changes to an existing unit. A
// rename regenerates the slug unless the caller set one explicitly.
func (r *Registry) UpdateUnit(ctx context.Context, u *Unit) error {
	existing, err := r.GetUnit(ctx, u.ID)
	if err != nil {
		return err
	}
	if u.Name != existing.Name && u.Slug == existing.Slug {
		u.Slug = GenerateSlug(u.Name)
	}

	if err := ValidateUnit(u); err != nil {
		return err
	}
	if err := r.repo.Update(ctx, u); err != nil {
		return err
	}

	r.cacheStore(u)
	r.logger.Info("unit updated", "id", u.ID, "name", u.Name)
	return nil
}

// DeleteUnit removes a unit from the store and the cache.
func (r *Registry) DeleteUnit(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("unit deleted", "id", id)
	return nil
}

// UnitCount reports how many units are cached.
func (r *Registry) UnitCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats summarises the catalogue for the metrics endpoint.
type Stats struct {
	TotalUnits   int
	ByGeneration map[Generation]int
	Enabled      int
}

// GetStats tallies cached units per generation and enablement.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalUnits:   len(r.cache),
		ByGeneration: make(map[Generation]int),
	}
	for _, u := range r.cache {
		stats.ByGeneration[u.Generation]++
		if u.Enabled {
			stats.Enabled++
		}
	}
	return stats
}
