package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/geometry"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/go-spatial/geom"
	"google.golang.org/api/googleapi"
)

// ClientOptions bounds the calls to Earth Engine
type ClientOptions struct {
	Timeout time.Duration // Timeout of each call (0: no timeout)
	Retries int           // Number of retries of a call failing with a temporary error
	Backoff time.Duration // Base duration of the exponential backoff between retries
}

// Client searches the scenes and renders the thumbnails using Earth Engine
type Client struct {
	session *Session
	opts    ClientOptions
}

// NewClient creates a new Client on the session
func NewClient(session *Session, opts ClientOptions) *Client {
	return &Client{session: session, opts: opts}
}

// call runs f with a timeout, retrying on temporary errors
func (c *Client) call(ctx context.Context, f func(ctx context.Context) error) error {
	err := service.Retriable(ctx, func() error {
		cctx := ctx
		if c.opts.Timeout > 0 {
			var cncl context.CancelFunc
			cctx, cncl = context.WithTimeout(ctx, c.opts.Timeout)
			defer cncl()
		}
		err := f(cctx)
		if err != nil && service.Temporary(err) {
			log.Logger(ctx).Sugar().Debugf("earth engine temporary failure: %v", err)
		}
		return err
	}, c.opts.Backoff, c.opts.Retries+1)
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 401 {
		return service.MakeFatal(fmt.Errorf("%w: %w", common.ErrAuthentication, err))
	}
	return fmt.Errorf("%w: %w", common.ErrRemoteService, err)
}

// compute evaluates the expression and returns its JSON value
func (c *Client) compute(ctx context.Context, expr *Expression) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		result, err = c.session.computeValue(ctx, expr)
		return err
	})
	return result, err
}

type computedCollection struct {
	Features []struct {
		ID         string                 `json:"id"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"features"`
}

// SearchScenes returns the images of query.Collection that contain the point and were acquired during the date range,
// by ascending cloud cover. A scene without cloud cover property has an infinite cloud cover.
// A scene without acquisition time is dated from its id.
// Raise common.ErrRemoteService
func (c *Client) SearchScenes(ctx context.Context, query common.SceneQuery, point geom.Point, dates common.DateRange) ([]common.Scene, error) {
	value, err := c.compute(ctx, SceneSearchExpression(query, point, dates))
	if err != nil {
		return nil, fmt.Errorf("SearchScenes.%w", err)
	}
	var collection computedCollection
	if err := json.Unmarshal(value, &collection); err != nil {
		return nil, fmt.Errorf("SearchScenes.Decode: %w: %w", common.ErrRemoteService, err)
	}

	scenes := make([]common.Scene, 0, len(collection.Features))
	for _, f := range collection.Features {
		if f.ID == "" {
			continue
		}
		scene := common.Scene{ID: f.ID, CloudCover: math.Inf(1)}
		if cc, ok := f.Properties[query.CloudProperty].(float64); ok {
			scene.CloudCover = cc
		}
		if ms, ok := f.Properties[propertyTimeStart].(float64); ok {
			scene.Date = time.UnixMilli(int64(ms)).UTC()
		} else if date, err := common.GetDateFromSceneID(f.ID); err == nil {
			scene.Date = date
		}
		if !scene.Date.IsZero() && !dates.Contains(scene.Date) {
			log.Logger(ctx).Sugar().Warnf("scene %s acquired on %s is out of %s: ignored", f.ID, scene.Date.Format(time.RFC3339), dates)
			continue
		}
		scenes = append(scenes, scene)
	}
	log.Logger(ctx).Sugar().Debugf("%d scene(s) found in %s", len(scenes), query.Collection)
	return scenes, nil
}

// Region returns the bounding box of the point buffered by radius meters, computed by Earth Engine
// Raise common.ErrRemoteService
func (c *Client) Region(ctx context.Context, point geom.Point, radius float64) (geom.Polygon, error) {
	value, err := c.compute(ctx, RegionExpression(point, radius))
	if err != nil {
		return nil, fmt.Errorf("Region.%w", err)
	}
	region, err := geometry.DecodeRegion(value)
	if err != nil {
		return nil, fmt.Errorf("Region.%w: %w", common.ErrRemoteService, err)
	}
	if !geometry.Covers(region, point) {
		return nil, fmt.Errorf("Region: %s does not cover the point %v: %w", geometry.ToWKT(region), point, common.ErrRemoteService)
	}
	log.Logger(ctx).Sugar().Debugf("region: %s", geometry.ToWKT(region))
	return region, nil
}

// ThumbnailURL requests the rendering of the index of the scene over the region and returns the url of the thumbnail
// Raise common.ErrRemoteService
func (c *Client) ThumbnailURL(ctx context.Context, sceneID string, region geom.Polygon, params common.ThumbnailParams) (string, error) {
	format := strings.ToUpper(params.Format)
	if format == "" {
		format = defaultThumbnailFormat
	}
	thumbnail := &Thumbnail{
		Expression: ThumbnailExpression(sceneID, region, params),
		FileFormat: format,
	}
	var name string
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		name, err = c.session.createThumbnail(ctx, thumbnail)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ThumbnailURL.%w", err)
	}
	if name == "" {
		return "", fmt.Errorf("ThumbnailURL: empty thumbnail name: %w", common.ErrRemoteService)
	}
	return fmt.Sprintf("%s/v1/%s:getPixels", strings.TrimSuffix(c.session.Endpoint, "/"), name), nil
}
