package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/downloader"
	"github.com/airbusgeo/geocube-ndvi/interface/earthengine"
	"github.com/airbusgeo/geocube-ndvi/interface/messaging"
	"github.com/airbusgeo/geocube-ndvi/ndvi"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"go.uber.org/zap"
)

// Example run when no request flag is given (Tokyo station, August 2023)
const (
	exampleLat   = 35.681236
	exampleLon   = 139.767125
	exampleStart = "2023-08-01"
	exampleEnd   = "2023-08-31"
	exampleOut   = "ndvi_sample.png"
)

var requestFlags = []string{"lat", "lon", "start-date", "end-date", "out"}

type config struct {
	Lat       float64
	Lon       float64
	StartDate string
	EndDate   string
	Out       string

	Project         string
	CredentialsFile string
	NoInteractive   bool
	Endpoint        string

	NDVI ndvi.Config

	RemoteTimeout time.Duration
	FetchTimeout  time.Duration
	Timeout       time.Duration
	Retries       int
	Backoff       time.Duration

	Storage service.StorageOptions

	PsProject  string
	EventTopic string

	LogLevel string
}

func newAppConfig(fs *flag.FlagSet, args []string) (*config, error) {
	config := config{NDVI: ndvi.DefaultConfig()}
	// Request
	fs.Float64Var(&config.Lat, "lat", exampleLat, "latitude of the point (degrees, WGS84)")
	fs.Float64Var(&config.Lon, "lon", exampleLon, "longitude of the point (degrees, WGS84)")
	fs.StringVar(&config.StartDate, "start-date", exampleStart, "first day of the acquisition period (YYYY-MM-DD)")
	fs.StringVar(&config.EndDate, "end-date", exampleEnd, "last day of the acquisition period (YYYY-MM-DD, included)")
	fs.StringVar(&config.Out, "out", exampleOut, `output path (local path, file://, gs://bucket/object or s3://bucket/key).
	It can contain several {IDENTIFIER} that will be replaced according to the selected scene.
	IDENTIFIER must be one of SCENE, COLLECTION, DATE(YEAR/MONTH/DAY), TIME(HOUR/MINUTE/SECOND), TILE (UTM_ZONE/LATITUDE_BAND/GRID_SQUARE), LAT, LON, START, END`)

	// Earth Engine
	fs.StringVar(&config.Project, "project", "", "cloud project used for the Earth Engine calls (default: project of the credentials, or "+earthengine.DefaultProject+")")
	fs.StringVar(&config.CredentialsFile, "credentials", "", "service account or authorized user json file (default: application default credentials)")
	fs.BoolVar(&config.NoInteractive, "no-interactive", false, "do not run the interactive login if no valid credentials are found")
	fs.StringVar(&config.Endpoint, "ee-endpoint", earthengine.DefaultEndpoint, "Earth Engine REST endpoint")

	// Scene & rendering
	fs.StringVar(&config.NDVI.Query.Collection, "collection", config.NDVI.Query.Collection, "image collection")
	fs.StringVar(&config.NDVI.Query.CloudProperty, "cloud-property", config.NDVI.Query.CloudProperty, "property of the images used to sort them by cloud cover")
	fs.IntVar(&config.NDVI.Query.Limit, "candidates", config.NDVI.Query.Limit, "maximum number of least cloudy candidates returned by the search")
	fs.StringVar(&config.NDVI.Thumbnail.NIRBand, "nir-band", config.NDVI.Thumbnail.NIRBand, "near-infrared band")
	fs.StringVar(&config.NDVI.Thumbnail.RedBand, "red-band", config.NDVI.Thumbnail.RedBand, "red band")
	fs.Float64Var(&config.NDVI.BufferRadius, "buffer", config.NDVI.BufferRadius, "radius of the rendered area around the point (meters)")
	fs.IntVar(&config.NDVI.Thumbnail.Dimensions, "dimensions", config.NDVI.Thumbnail.Dimensions, "maximum dimension of the image (pixels)")
	fs.Float64Var(&config.NDVI.Thumbnail.Vis.Min, "min", config.NDVI.Thumbnail.Vis.Min, "index value rendered with the first color of the palette")
	fs.Float64Var(&config.NDVI.Thumbnail.Vis.Max, "max", config.NDVI.Thumbnail.Vis.Max, "index value rendered with the last color of the palette")
	palette := fs.String("palette", strings.Join(config.NDVI.Thumbnail.Vis.Palette, ","), "comma-separated list of colors")

	// Timeouts
	fs.DurationVar(&config.RemoteTimeout, "remote-timeout", 2*time.Minute, "timeout of each Earth Engine call")
	fs.DurationVar(&config.FetchTimeout, "fetch-timeout", 5*time.Minute, "timeout of each download try")
	fs.DurationVar(&config.Timeout, "timeout", 15*time.Minute, "timeout of the whole retrieval")
	fs.IntVar(&config.Retries, "retries", 3, "number of retries of a call failing with a temporary error")
	fs.DurationVar(&config.Backoff, "backoff", time.Second, "base duration of the exponential backoff between retries")

	// Storage
	fs.StringVar(&config.Storage.S3Endpoint, "s3-endpoint", "", "s3-compatible endpoint for s3:// outputs (default: aws)")
	fs.StringVar(&config.Storage.S3Region, "s3-region", "", "region of the s3 bucket (default: aws configuration)")
	fs.StringVar(&config.Storage.S3AccessKey, "s3-access-key", "", "s3 access key (default: aws credential chain)")
	fs.StringVar(&config.Storage.S3SecretKey, "s3-secret-key", "", "s3 secret key")

	// Messaging
	fs.StringVar(&config.PsProject, "ps-project", "", "pubsub project (gcp only/not required in local usage)")
	fs.StringVar(&config.EventTopic, "event-topic", "", "pubsub topic where the result is published (optional)")

	fs.StringVar(&config.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := checkRequestFlags(fs); err != nil {
		return nil, err
	}

	config.NDVI.Thumbnail.Vis.Palette = nil
	for _, color := range strings.Split(*palette, ",") {
		if color = strings.TrimSpace(color); color != "" {
			config.NDVI.Thumbnail.Vis.Palette = append(config.NDVI.Thumbnail.Vis.Palette, color)
		}
	}
	if config.NDVI.Query.Limit < 1 {
		return nil, fmt.Errorf("candidates must be at least 1")
	}
	if config.NDVI.Thumbnail.Dimensions < 1 {
		return nil, fmt.Errorf("dimensions must be at least 1")
	}
	if config.NDVI.BufferRadius <= 0 {
		return nil, fmt.Errorf("buffer must be positive")
	}
	if config.Retries < 0 {
		return nil, fmt.Errorf("retries must be positive")
	}
	if config.EventTopic != "" && config.PsProject == "" {
		return nil, fmt.Errorf("missing ps-project config flag")
	}
	return &config, nil
}

// checkRequestFlags returns an error if only some of the request flags are set
func checkRequestFlags(fs *flag.FlagSet) error {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	var missing []string
	for _, name := range requestFlags {
		if !set[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 && len(missing) < len(requestFlags) {
		return fmt.Errorf("missing %s config flag(s): -%s must be set together", strings.Join(missing, ", "), strings.Join(requestFlags, ", -"))
	}
	return nil
}

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	if err := log.SetLevel(config.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}

	ctx, cncl := context.WithTimeout(ctx, config.Timeout)
	defer cncl()

	// Validate the request before any remote call
	req, err := ndvi.NewRequest(config.Lat, config.Lon, config.StartDate, config.EndDate, config.Out)
	if err != nil {
		return err
	}
	log.Logger(ctx).Sugar().Infof("NDVI of %s between %s", req.Coordinate, req.Dates)

	session, err := earthengine.NewSession(ctx, earthengine.SessionConfig{
		Project:         config.Project,
		CredentialsFile: config.CredentialsFile,
		Endpoint:        config.Endpoint,
		Interactive:     !config.NoInteractive,
	})
	if err != nil {
		return service.NewStageError(common.StageAuthenticate, req, err)
	}

	var eventPublisher messaging.Publisher
	if config.EventTopic != "" {
		publisher, err := messaging.NewPubSubPublisher(ctx, config.PsProject, config.EventTopic)
		if err != nil {
			return fmt.Errorf("MessagingService: %w", err)
		}
		defer publisher.Close()
		eventPublisher = publisher
		log.Logger(ctx).Debug("publishing results on pubsub:" + config.EventTopic)
	}

	client := earthengine.NewClient(session, earthengine.ClientOptions{
		Timeout: config.RemoteTimeout,
		Retries: config.Retries,
		Backoff: config.Backoff,
	})
	fetcher := downloader.NewFetcher(config.FetchTimeout, config.Retries, config.Backoff)

	processor := ndvi.NewProcessor(client, client, fetcher, config.Storage.NewStorage, eventPublisher, config.NDVI)
	result, err := processor.Process(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(result.Output)
	return nil
}
