package ndvi

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/interface/messaging"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/geometry"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/go-spatial/geom"
	"go.uber.org/zap"
)

// SceneCatalog searches the scenes of a collection
type SceneCatalog interface {
	// SearchScenes returns the scenes containing the point and acquired during the date range
	SearchScenes(ctx context.Context, query common.SceneQuery, point geom.Point, dates common.DateRange) ([]common.Scene, error)
}

// Renderer renders a band of a scene as an image
type Renderer interface {
	// Region returns the area around the point to be rendered
	Region(ctx context.Context, point geom.Point, radius float64) (geom.Polygon, error)
	// ThumbnailURL returns the url of the rendered index
	ThumbnailURL(ctx context.Context, sceneID string, region geom.Polygon, params common.ThumbnailParams) (string, error)
}

// Fetcher downloads an url to a new file of a directory
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
}

// StorageFactory returns the storage able to save a file to dst
type StorageFactory func(ctx context.Context, dst string) (service.Storage, error)

// Config of the retrieval
type Config struct {
	Query        common.SceneQuery
	Thumbnail    common.ThumbnailParams
	BufferRadius float64 // Radius of the rendered area around the point (meters)
}

// DefaultConfig returns the configuration of a Sentinel-2 NDVI rendered in blue/white/green over 10km
func DefaultConfig() Config {
	return Config{
		Query: common.SceneQuery{
			Collection:    "COPERNICUS/S2",
			CloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
			Limit:         5,
		},
		Thumbnail: common.ThumbnailParams{
			NIRBand:  "B8",
			RedBand:  "B4",
			BandName: "NDVI",
			Vis: common.VisParams{
				Min:     0,
				Max:     1,
				Palette: []string{"blue", "white", "green"},
			},
			Dimensions: 512,
			Format:     "png",
		},
		BufferRadius: 10000,
	}
}

// Processor retrieves the NDVI image of the least cloudy scene
type Processor struct {
	catalog    SceneCatalog
	renderer   Renderer
	fetcher    Fetcher
	newStorage StorageFactory
	publisher  messaging.Publisher
	config     Config
}

// NewProcessor creates a new Processor. publisher is optional.
func NewProcessor(catalog SceneCatalog, renderer Renderer, fetcher Fetcher, newStorage StorageFactory, publisher messaging.Publisher, config Config) *Processor {
	if newStorage == nil {
		newStorage = service.NewStorage
	}
	return &Processor{
		catalog:    catalog,
		renderer:   renderer,
		fetcher:    fetcher,
		newStorage: newStorage,
		publisher:  publisher,
		config:     config,
	}
}

// NewRequest validates the parameters of a retrieval
// Raise common.ErrInvalidCoordinate, common.ErrInvalidDateRange or common.ErrInvalidOutput
func NewRequest(lat, lon float64, start, end, outPath string) (common.Request, error) {
	req := common.Request{
		Coordinate: common.Coordinate{Latitude: lat, Longitude: lon},
		OutputPath: outPath,
	}
	if err := req.Coordinate.Validate(); err != nil {
		return req, service.NewStageError(common.StageValidate, req, err)
	}
	dates, err := common.NewDateRange(start, end)
	if err != nil {
		return req, service.NewStageError(common.StageValidate, req, err)
	}
	req.Dates = dates
	if outPath == "" {
		return req, service.NewStageError(common.StageValidate, req, fmt.Errorf("%w: empty", common.ErrInvalidOutput))
	}
	return req, nil
}

// GetNDVIImage renders the NDVI of the least cloudy scene containing the point (lat, lon)
// acquired between start and end (included), saves it to outPath and returns the path of the image.
// outPath may contain {KEY} patterns (see OutputPath).
func (p *Processor) GetNDVIImage(ctx context.Context, lat, lon float64, start, end, outPath string) (string, error) {
	req, err := NewRequest(lat, lon, start, end, outPath)
	if err != nil {
		return "", fmt.Errorf("GetNDVIImage.%w", err)
	}
	result, err := p.Process(ctx, req)
	if err != nil {
		return result.Output, fmt.Errorf("GetNDVIImage.%w", err)
	}
	return result.Output, nil
}

// Process runs the retrieval of a validated request.
// If the image has been saved, result.Output is set, even if the notification failed.
func (p *Processor) Process(ctx context.Context, req common.Request) (common.Result, error) {
	point := req.Coordinate.Point()
	ctx = log.With(ctx, "point", geometry.ToWKT(point))

	// Search
	log.Logger(ctx).Sugar().Infof("searching %s between %s", p.config.Query.Collection, req.Dates)
	scenes, err := p.catalog.SearchScenes(ctx, p.config.Query, point, req.Dates)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StageSearch, req, err)
	}

	// Select
	scene, err := common.SelectLeastCloudy(scenes)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StageSelect, req, err)
	}
	ctx = log.With(ctx, "scene", scene.ID)
	log.Logger(ctx).Sugar().Infof("selected %s among %d candidate(s)", scene, len(scenes))

	// Output
	output, err := OutputPath(req, scene)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StageValidate, req, err)
	}
	storage, err := p.newStorage(ctx, output)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StagePersist, req, err)
	}
	stagingDir, err := storage.StagingDir(output)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StagePersist, req, err)
	}

	// Compute
	region, err := p.renderer.Region(ctx, point, p.config.BufferRadius)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StageCompute, req, err)
	}

	// Render
	url, err := p.renderer.ThumbnailURL(ctx, scene.ID, region, p.config.Thumbnail)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StageRender, req, err)
	}
	log.Logger(ctx).Debug("thumbnail url: " + url)

	// Fetch
	localFile, err := p.fetcher.Fetch(ctx, url, stagingDir)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StageFetch, req, err)
	}

	// Persist
	uri, err := storage.Save(ctx, localFile, output)
	if err != nil {
		return common.Result{}, service.NewStageError(common.StagePersist, req, err)
	}
	log.Logger(ctx).Sugar().Infof("NDVI image saved to %s", uri)

	result := common.NewResult(req, scene, uri)

	// Notify
	if p.publisher != nil {
		if err := p.notify(ctx, result); err != nil {
			log.Logger(ctx).Warn("notification failed", zap.Error(err))
			return result, service.NewStageError(common.StageNotify, req, err)
		}
	}
	return result, nil
}

func (p *Processor) notify(ctx context.Context, result common.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("notify.Marshal: %w", err)
	}
	if err := p.publisher.Publish(ctx, data); err != nil {
		return fmt.Errorf("notify.%w", err)
	}
	return nil
}

// OutputPath replaces the {KEY} patterns of the output path of the request.
// KEY is one of LAT, LON, START, END or a field of the scene id (see common.Info: SCENE, DATE, TILE...)
// Raise common.ErrInvalidOutput if a pattern cannot be replaced
func OutputPath(req common.Request, scene common.Scene) (string, error) {
	output := req.OutputPath
	if !common.HasBrackets(output) {
		return output, nil
	}
	infos := []map[string]string{{
		"LAT":   strconv.FormatFloat(req.Coordinate.Latitude, 'f', -1, 64),
		"LON":   strconv.FormatFloat(req.Coordinate.Longitude, 'f', -1, 64),
		"START": req.Dates.Start.Format(common.DateFormat),
		"END":   req.Dates.End.Format(common.DateFormat),
	}}
	if info, err := common.Info(scene.ID); err == nil {
		infos = append(infos, info)
	} else {
		infos = append(infos, map[string]string{"SCENE": path.Base(scene.ID)})
	}
	output = common.FormatBrackets(output, infos...)
	if common.HasBrackets(output) {
		return "", fmt.Errorf("OutputPath: unknown pattern in %s: %w", output, common.ErrInvalidOutput)
	}
	return output, nil
}
