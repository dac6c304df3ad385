package downloader

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/airbusgeo/geocube-ndvi/service/log"
	"github.com/cavaliercoder/grab"
	"github.com/google/uuid"
)

// Fetcher downloads a file over HTTP
type Fetcher struct {
	Timeout        time.Duration // Timeout of each try (0: no timeout)
	Retries        int           // Number of retries on temporary failures
	Backoff        time.Duration // Base duration of the exponential backoff between retries
	ProgressPeriod float64       // Progress is logged every ProgressPeriod (fraction of the file)
	client         *grab.Client
}

// NewFetcher creates a new Fetcher
func NewFetcher(timeout time.Duration, retries int, backoff time.Duration) *Fetcher {
	return &Fetcher{
		Timeout:        timeout,
		Retries:        retries,
		Backoff:        backoff,
		ProgressPeriod: 0.1,
		client:         grab.NewClient(),
	}
}

// Fetch downloads the url into a new file of dir and returns its path.
// On failure, no file is left in dir.
// Raise common.ErrFetch (temporary if the status is 408, 429, 5xx or if the server did not respond)
func (f *Fetcher) Fetch(ctx context.Context, url, dir string) (string, error) {
	dst := filepath.Join(dir, "."+uuid.New().String()+".part")
	err := service.Retriable(ctx, func() error {
		err := f.download(ctx, url, dst)
		if err != nil {
			os.Remove(dst)
			if service.Temporary(err) {
				log.Logger(ctx).Warn("fetch temporary failure: " + err.Error())
			}
		}
		return err
	}, f.Backoff, f.Retries+1)
	if err != nil {
		return "", fmt.Errorf("Fetch.%w", err)
	}
	return dst, nil
}

func (f *Fetcher) download(ctx context.Context, url, dst string) error {
	if f.Timeout > 0 {
		var cncl context.CancelFunc
		ctx, cncl = context.WithTimeout(ctx, f.Timeout)
		defer cncl()
	}
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return fmt.Errorf("download.NewRequest: %w: %w", common.ErrFetch, err)
	}
	req = req.WithContext(ctx)
	req.NoResume = true

	resp := f.client.Do(req)
	displayProgress(ctx, "fetch", resp, f.ProgressPeriod)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download: %w: %w", common.ErrFetch, err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		return statusError(resp.HTTPResponse.StatusCode, err)
	}
	if code := resp.HTTPResponse.StatusCode; code < 200 || code > 299 {
		return statusError(code, fmt.Errorf("download: %w: status %d", common.ErrFetch, code))
	}
	log.Logger(ctx).Sugar().Debugf("fetched %s", fmtBytes(resp.BytesComplete()))
	return nil
}

func statusError(code int, err error) error {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, 500, 501, 502, 503, 504:
		return service.MakeTemporary(err)
	}
	return err
}

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}
