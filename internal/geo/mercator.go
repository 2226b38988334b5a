package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

// STORED GEOMETRY
// Positions are persisted as EPSG:3857 so SQLite (which has no spatial
// awareness) and Postgres store the same WKB bytes and migrations can
// interpret point data from a single representation.

// MercatorPoint converts a WGS84 coordinate (EPSG:4326) to a Web
// Mercator (EPSG:3857) geometry point.
func MercatorPoint(g core.GeoPoint) geom.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(g.Lng, g.Lat, 0)
	return geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: x, Y: y},
	})
}

// PathLineString builds a Web Mercator LineString from a travelled path.
// Paths with fewer than 2 points have no extent and are rejected.
func PathLineString(path []core.GeoPoint) (geom.LineString, error) {
	if len(path) < 2 {
		return geom.LineString{}, fmt.Errorf("path must have at least 2 points, got %d", len(path))
	}

	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)

	flat := make([]float64, 0, len(path)*2)
	for _, g := range path {
		x, y, _ := f(g.Lng, g.Lat, 0)
		flat = append(flat, x, y)
	}

	seq := geom.NewSequence(flat, geom.DimXY)
	return geom.NewLineString(seq), nil
}
