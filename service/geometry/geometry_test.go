package geometry

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

func TestDecodeRegion(t *testing.T) {
	raw := `{"type":"Polygon","coordinates":[[[139.65,35.59],[139.88,35.59],[139.88,35.77],[139.65,35.77],[139.65,35.59]]]}`
	polygon, err := DecodeRegion([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	bytes, err := json.Marshal(geojson.Geometry{Geometry: polygon})
	if err != nil {
		t.Fatal(err)
	}
	if string(bytes) != raw {
		t.Errorf("Expect %s found %s", raw, string(bytes))
	}
	if !Covers(polygon, geom.Point{139.767125, 35.681236}) {
		t.Errorf("region must cover Tokyo station (lon, lat)")
	}
	if Covers(polygon, geom.Point{35.681236, 139.767125}) {
		t.Errorf("region must not cover swapped coordinates")
	}
}

func TestDecodeRegionMultiPolygon(t *testing.T) {
	raw := `{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}`
	polygon, err := DecodeRegion([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	expected := geom.Polygon{{{0, 0}, {3, 0}, {3, 3}, {0, 3}, {0, 0}}}
	if !reflect.DeepEqual(polygon, expected) {
		t.Errorf("Expect %v found %v", expected, polygon)
	}
	if ToWKT(polygon) == "" {
		t.Errorf("empty wkt")
	}
}

func TestDecodeRegionInvalid(t *testing.T) {
	for _, raw := range []string{`not json`, `{"type":"Point","coordinates":[1,2]}`} {
		if _, err := DecodeRegion([]byte(raw)); err == nil {
			t.Errorf("expected an error for %s", raw)
		}
	}
}
