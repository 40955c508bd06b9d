package geofence

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"fleetconsole.org/livemap/internal/logging"
)

// Cache serves zones from memory. Edits go to the store first and then
// land in the snapshot; a background refresh reloads the whole snapshot
// from the store. Whichever write lands last wins.
type Cache struct {
	store  Store
	logger *slog.Logger

	mu          sync.RWMutex
	zones       map[string]Zone
	lastUpdated time.Time

	shutdownChan chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewCache(store Store, logger *slog.Logger) *Cache {
	return &Cache{
		store:        store,
		logger:       logging.Component(logger, "geofence_cache"),
		zones:        make(map[string]Zone),
		shutdownChan: make(chan struct{}),
	}
}

// Refresh replaces the snapshot with the store's contents. On failure the
// previous snapshot is kept.
func (c *Cache) Refresh(ctx context.Context) error {
	zones, err := c.store.List(ctx)
	if err != nil {
		logging.LogError(c.logger, "geofence refresh failed", err)
		return err
	}

	next := make(map[string]Zone, len(zones))
	for _, z := range zones {
		next[z.ID] = z
	}

	c.mu.Lock()
	c.zones = next
	c.lastUpdated = time.Now()
	c.mu.Unlock()

	logging.LogOperation(c.logger, "geofences_refreshed", slog.Int("zones", len(zones)))
	return nil
}

// Start loads the snapshot once and then refreshes it every interval until
// Shutdown. A non-positive interval disables the background refresh.
func (c *Cache) Start(ctx context.Context, interval time.Duration) {
	c.startOnce.Do(func() {
		_ = c.Refresh(ctx)
		if interval <= 0 {
			return
		}
		c.wg.Add(1)
		go c.refreshPeriodically(interval)
	})
}

func (c *Cache) refreshPeriodically(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			_ = c.Refresh(ctx)
			cancel()
		case <-c.shutdownChan:
			c.logger.Info("stopping geofence refresh")
			return
		}
	}
}

// Shutdown stops the refresh loop and closes the store.
func (c *Cache) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.shutdownChan)
		c.wg.Wait()
		logging.SafeCloseWithLogging(c.store, c.logger, "geofence_store")
	})
}

func (c *Cache) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// List returns the snapshot ordered by creation time.
func (c *Cache) List() []Zone {
	c.mu.RLock()
	out := make([]Zone, 0, len(c.zones))
	for _, z := range c.zones {
		out = append(out, z)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (c *Cache) Get(id string) (Zone, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	z, ok := c.zones[id]
	return z, ok
}

// Containing lists every zone, enabled or not, that contains the point.
func (c *Cache) Containing(lat, lng float64) []Zone {
	out := []Zone{}
	for _, z := range c.List() {
		if z.Contains(lat, lng) {
			out = append(out, z)
		}
	}
	return out
}

func (c *Cache) Create(ctx context.Context, zone Zone) (Zone, error) {
	created, err := c.store.Create(ctx, zone)
	if err != nil {
		return Zone{}, err
	}
	c.put(created)
	return created, nil
}

func (c *Cache) Update(ctx context.Context, zone Zone) (Zone, error) {
	updated, err := c.store.Update(ctx, zone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.remove(zone.ID)
		}
		return Zone{}, err
	}
	c.put(updated)
	return updated, nil
}

func (c *Cache) Delete(ctx context.Context, id string) error {
	err := c.store.Delete(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	c.remove(id)
	return err
}

func (c *Cache) put(z Zone) {
	c.mu.Lock()
	c.zones[z.ID] = z
	c.mu.Unlock()
}

func (c *Cache) remove(id string) {
	c.mu.Lock()
	delete(c.zones, id)
	c.mu.Unlock()
}
