package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
)

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := mergeMultiPolygons(g, mp); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry type %T", g)
	}
	return nil
}

// DecodeRegion decodes a GeoJSON geometry (Polygon, MultiPolygon or GeometryCollection of polygons)
// and returns its bounding polygon
func DecodeRegion(raw []byte) (geom.Polygon, error) {
	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("DecodeRegion.Unmarshal: %w", err)
	}
	if g.Geometry == nil {
		return nil, fmt.Errorf("DecodeRegion: empty geometry")
	}
	var mp geom.MultiPolygon
	if err := mergeMultiPolygons(g.Geometry, &mp); err != nil {
		return nil, fmt.Errorf("DecodeRegion: %w", err)
	}
	if len(mp) == 1 {
		return geom.Polygon(mp[0]), nil
	}
	return Bounds(mp)
}

// Bounds returns the bounding box of the geometry as a closed polygon
func Bounds(g geom.Geometry) (geom.Polygon, error) {
	extent, err := geom.NewExtentFromGeometry(g)
	if err != nil {
		return nil, fmt.Errorf("Bounds.NewExtentFromGeometry: %w", err)
	}
	return geom.Polygon{{
		{extent.MinX(), extent.MinY()},
		{extent.MaxX(), extent.MinY()},
		{extent.MaxX(), extent.MaxY()},
		{extent.MinX(), extent.MaxY()},
		{extent.MinX(), extent.MinY()},
	}}, nil
}

// Covers returns true if the point is inside the bounding box of the polygon
func Covers(polygon geom.Polygon, point geom.Point) bool {
	extent, err := geom.NewExtentFromGeometry(polygon)
	if err != nil {
		return false
	}
	return extent.ContainsPoint([2]float64(point))
}

// ToWKT encodes the geometry as WKT, for logging purpose
func ToWKT(g geom.Geometry) string {
	wkt, err := geomwkt.EncodeString(g)
	if err != nil {
		return fmt.Sprintf("invalid geometry: %v", err)
	}
	return wkt
}
