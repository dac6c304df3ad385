package earthengine

import (
	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/go-spatial/geom"
)

// Names of the Earth Engine algorithms used to build the expressions
const (
	fnImageCollectionLoad  = "ImageCollection.load"
	fnCollectionFilter     = "Collection.filter"
	fnCollectionLimit      = "Collection.limit"
	fnFilterIntersects     = "Filter.intersects"
	fnFilterDateRange      = "Filter.dateRangeContains"
	fnDateRange            = "DateRange"
	fnPoint                = "GeometryConstructors.Point"
	fnPolygon              = "GeometryConstructors.Polygon"
	fnGeometryBuffer       = "Geometry.buffer"
	fnGeometryBounds       = "Geometry.bounds"
	fnImageLoad            = "Image.load"
	fnNormalizedDifference = "Image.normalizedDifference"
	fnImageRename          = "Image.rename"
	fnImageVisualize       = "Image.visualize"
	fnClipToBoundsAndScale = "Image.clipToBoundsAndScale"
	propertyTimeStart      = "system:time_start"
	leftFieldWholeFeature  = ".all"
	defaultThumbnailFormat = "PNG"
)

type args map[string]*ValueNode

func constant(v interface{}) *ValueNode {
	return &ValueNode{ConstantValue: v}
}

func invoke(name string, arguments args) *ValueNode {
	fi := &FunctionInvocation{
		FunctionName: name,
		Arguments:    make(map[string]ValueNode, len(arguments)),
	}
	for k, v := range arguments {
		fi.Arguments[k] = *v
	}
	return &ValueNode{FunctionInvocationValue: fi}
}

func array(values ...*ValueNode) *ValueNode {
	return &ValueNode{ArrayValue: &ArrayValue{Values: values}}
}

func stringArray(values ...string) *ValueNode {
	nodes := make([]*ValueNode, len(values))
	for i, v := range values {
		nodes[i] = constant(v)
	}
	return array(nodes...)
}

func expression(root *ValueNode) *Expression {
	return &Expression{
		Result: "0",
		Values: map[string]ValueNode{"0": *root},
	}
}

// pointNode builds the point geometry. Coordinates are (longitude, latitude).
func pointNode(p geom.Point) *ValueNode {
	return invoke(fnPoint, args{
		"coordinates": constant([]float64{p.X(), p.Y()}),
	})
}

func polygonNode(polygon geom.Polygon) *ValueNode {
	return invoke(fnPolygon, args{
		"coordinates": constant(polygon.LinearRings()),
		"geodesic":    constant(false),
		"evenOdd":     constant(true),
	})
}

// SceneSearchExpression returns the expression of the images of the collection
// covering the point, acquired during the date range, sorted by ascending cloud cover
// and limited to query.Limit candidates.
func SceneSearchExpression(query common.SceneQuery, point geom.Point, dates common.DateRange) *Expression {
	collection := invoke(fnImageCollectionLoad, args{"id": constant(query.Collection)})
	collection = invoke(fnCollectionFilter, args{
		"collection": collection,
		"filter": invoke(fnFilterIntersects, args{
			"leftField":  constant(leftFieldWholeFeature),
			"rightValue": pointNode(point),
		}),
	})
	collection = invoke(fnCollectionFilter, args{
		"collection": collection,
		"filter": invoke(fnFilterDateRange, args{
			"leftValue": invoke(fnDateRange, args{
				"start": constant(dates.Start.Format(common.DateFormat)),
				"end":   constant(dates.FilterEnd().Format(common.DateFormat)),
			}),
			"rightField": constant(propertyTimeStart),
		}),
	})
	arguments := args{
		"collection": collection,
		"key":        constant(query.CloudProperty),
		"ascending":  constant(true),
	}
	if query.Limit > 0 {
		arguments["limit"] = constant(query.Limit)
	}
	return expression(invoke(fnCollectionLimit, arguments))
}

// RegionExpression returns the expression of the bounding box of the point buffered by radius meters
func RegionExpression(point geom.Point, radius float64) *Expression {
	return expression(invoke(fnGeometryBounds, args{
		"geometry": invoke(fnGeometryBuffer, args{
			"geometry": pointNode(point),
			"distance": constant(radius),
		}),
	}))
}

// IndexExpression returns the normalized difference (nir-red)/(nir+red) of the image, named params.BandName
func IndexExpression(sceneID string, params common.ThumbnailParams) *ValueNode {
	index := invoke(fnNormalizedDifference, args{
		"input":     invoke(fnImageLoad, args{"id": constant(sceneID)}),
		"bandNames": stringArray(params.NIRBand, params.RedBand),
	})
	return invoke(fnImageRename, args{
		"input": index,
		"names": stringArray(params.BandName),
	})
}

// ThumbnailExpression returns the expression of the rendered index, clipped to the region
func ThumbnailExpression(sceneID string, region geom.Polygon, params common.ThumbnailParams) *Expression {
	vis := args{
		"image": IndexExpression(sceneID, params),
		"min":   constant(params.Vis.Min),
		"max":   constant(params.Vis.Max),
	}
	if len(params.Vis.Palette) > 0 {
		vis["palette"] = stringArray(params.Vis.Palette...)
	}
	visualized := invoke(fnImageVisualize, vis)
	return expression(invoke(fnClipToBoundsAndScale, args{
		"input":        visualized,
		"geometry":     polygonNode(region),
		"maxDimension": constant(params.Dimensions),
	}))
}
