package cache

import (
	"sync"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// EntityCache holds the most recently seen parcels and drivers so that
// lookups during stream updates never hit the backend. It also serves
// reads while the feed is unreachable.
type EntityCache struct {
	m       sync.Mutex
	parcels map[string]core.Parcel
	drivers map[string]core.Driver
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		parcels: make(map[string]core.Parcel),
		drivers: make(map[string]core.Driver),
	}
}

// Replace swaps the full cache contents for a fresh snapshot.
func (c *EntityCache) Replace(parcels []core.Parcel, drivers []core.Driver) {
	c.m.Lock()
	defer c.m.Unlock()
	c.parcels = make(map[string]core.Parcel, len(parcels))
	for _, p := range parcels {
		c.parcels[p.TrackingID] = p
	}
	c.drivers = make(map[string]core.Driver, len(drivers))
	for _, d := range drivers {
		c.drivers[d.ID] = d
	}
}

func (c *EntityCache) GetParcel(trackingID string) (core.Parcel, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	p, ok := c.parcels[trackingID]
	return p, ok
}

func (c *EntityCache) GetDriver(id string) (core.Driver, bool) {
	c.m.Lock()
	defer c.m.Unlock()
	d, ok := c.drivers[id]
	return d, ok
}

func (c *EntityCache) AddParcel(p core.Parcel) {
	c.m.Lock()
	defer c.m.Unlock()
	c.parcels[p.TrackingID] = p
}

func (c *EntityCache) AddDriver(d core.Driver) {
	c.m.Lock()
	defer c.m.Unlock()
	c.drivers[d.ID] = d
}

// Parcels returns all cached parcels. Order is unspecified.
func (c *EntityCache) Parcels() []core.Parcel {
	c.m.Lock()
	defer c.m.Unlock()
	out := make([]core.Parcel, 0, len(c.parcels))
	for _, p := range c.parcels {
		out = append(out, p)
	}
	return out
}

// Drivers returns all cached drivers. Order is unspecified.
func (c *EntityCache) Drivers() []core.Driver {
	c.m.Lock()
	defer c.m.Unlock()
	out := make([]core.Driver, 0, len(c.drivers))
	for _, d := range c.drivers {
		out = append(out, d)
	}
	return out
}

func (c *EntityCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.parcels = make(map[string]core.Parcel)
	c.drivers = make(map[string]core.Driver)
}
