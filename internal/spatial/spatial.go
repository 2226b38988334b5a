// Package spatial maintains an R-tree index of driver positions for
// nearest-driver lookups.
package spatial

import (
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/hack3rvirus/parcel-tracker/internal/geo"
	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// pointExtent gives point entries a nonzero envelope, as required by
// the R-tree.
const pointExtent = 1e-6

type indexedDriver struct {
	driver   core.Driver
	envelope rtreego.Rect
}

func (d *indexedDriver) Bounds() rtreego.Rect {
	return d.envelope
}

// Index answers nearest-driver queries over the current fleet state.
type Index struct {
	mu   sync.RWMutex
	tree *rtreego.Rtree
}

// NewIndex creates an empty driver index.
func NewIndex() *Index {
	return &Index{tree: rtreego.NewTree(2, 8, 16)}
}

// Update rebuilds the index from the given drivers. Drivers without a
// position are skipped.
func (i *Index) Update(drivers []core.Driver) {
	tree := rtreego.NewTree(2, 8, 16)
	for _, d := range drivers {
		if d.CurrentLocation == nil {
			continue
		}
		rect, err := rtreego.NewRect(
			rtreego.Point{d.CurrentLocation.Lat, d.CurrentLocation.Lng},
			[]float64{pointExtent, pointExtent},
		)
		if err != nil {
			continue
		}
		tree.Insert(&indexedDriver{driver: d, envelope: rect})
	}

	i.mu.Lock()
	i.tree = tree
	i.mu.Unlock()
}

// Size returns the number of indexed drivers.
func (i *Index) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Size()
}

// NearestDrivers returns up to k drivers closest to the given point,
// ordered by great-circle distance.
func (i *Index) NearestDrivers(p core.GeoPoint, k int) []core.Driver {
	i.mu.RLock()
	results := i.tree.NearestNeighbors(k, rtreego.Point{p.Lat, p.Lng})
	i.mu.RUnlock()

	drivers := make([]core.Driver, 0, len(results))
	for _, item := range results {
		if item == nil {
			continue
		}
		drivers = append(drivers, item.(*indexedDriver).driver)
	}

	// Envelope distance approximates great-circle distance poorly near
	// the poles; re-rank the candidates exactly.
	for a := 1; a < len(drivers); a++ {
		for b := a; b > 0; b-- {
			if geo.Distance(p, *drivers[b].CurrentLocation) < geo.Distance(p, *drivers[b-1].CurrentLocation) {
				drivers[b], drivers[b-1] = drivers[b-1], drivers[b]
			} else {
				break
			}
		}
	}
	return drivers
}

// NearestDriver returns the single closest driver, if any.
func (i *Index) NearestDriver(p core.GeoPoint) (core.Driver, bool) {
	drivers := i.NearestDrivers(p, 1)
	if len(drivers) == 0 {
		return core.Driver{}, false
	}
	return drivers[0], true
}
