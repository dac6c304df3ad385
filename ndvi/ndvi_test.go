package ndvi_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/geocube-ndvi/common"
	"github.com/airbusgeo/geocube-ndvi/downloader"
	"github.com/airbusgeo/geocube-ndvi/ndvi"
	"github.com/airbusgeo/geocube-ndvi/service"
	"github.com/go-spatial/geom"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("NDVI", func() {
	var (
		catalog   *MokeCatalog
		renderer  *MokeRenderer
		publisher *MokePublisher
		processor *ndvi.Processor
		outDir    string
		outPath   string
		result    string
		err       error

		lat, lon   = 35.681236, 139.767125
		start, end = "2023-08-01", "2023-08-31"
		png        = []byte("\x89PNG\r\n\x1a\nNDVI")
	)

	candidates := []common.Scene{
		{ID: "COPERNICUS/S2/20230805T012701_20230805T012704_T54SUE", CloudCover: 30, Date: time.Date(2023, 8, 5, 1, 30, 0, 0, time.UTC)},
		{ID: "COPERNICUS/S2/20230810T012659_20230810T013018_T54SUE", CloudCover: 2.5, Date: time.Date(2023, 8, 10, 1, 33, 0, 0, time.UTC)},
		{ID: "COPERNICUS/S2/20230815T012659_20230815T013018_T54SUE", CloudCover: math.Inf(1), Date: time.Date(2023, 8, 15, 1, 33, 0, 0, time.UTC)},
	}

	BeforeEach(func() {
		outDir, err = os.MkdirTemp("", "ndvi")
		Expect(err).NotTo(HaveOccurred())
		outPath = filepath.Join(outDir, "ndvi_sample.png")

		catalog = &MokeCatalog{scenes: candidates}
		renderer = &MokeRenderer{url: thumbnails.URL + "/v1/projects/p/thumbnails/abc:getPixels"}
		publisher = &MokePublisher{}
		thumbnails.Lock()
		thumbnails.status, thumbnails.body = http.StatusOK, png
		thumbnails.Unlock()

		processor = ndvi.NewProcessor(catalog, renderer, downloader.NewFetcher(5*time.Second, 1, time.Millisecond), service.NewStorage, publisher, ndvi.DefaultConfig())
	})

	AfterEach(func() {
		os.RemoveAll(outDir)
	})

	JustBeforeEach(func() {
		result, err = processor.GetNDVIImage(ctx, lat, lon, start, end, outPath)
	})

	expectNoRemoteCall := func() {
		Expect(catalog.calls).To(Equal(0))
		Expect(renderer.regionCalls).To(Equal(0))
		Expect(renderer.thumbCalls).To(Equal(0))
	}

	expectStage := func(stage common.Stage) {
		s, ok := service.StageOf(err)
		Expect(ok).To(BeTrue())
		Expect(s).To(Equal(stage))
	}

	Describe("retrieving an NDVI image", func() {
		Context("with several candidates", func() {
			It("should save the fetched bytes to the output path", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(result).To(Equal(outPath))
				b, err := os.ReadFile(outPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(b).To(Equal(png))
			})
			It("should query the point in (longitude, latitude) order", func() {
				Expect(catalog.point).To(Equal(geom.Point{lon, lat}))
				Expect(catalog.query.Collection).To(Equal("COPERNICUS/S2"))
				Expect(catalog.dates.Start).To(Equal(time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)))
				Expect(catalog.dates.End).To(Equal(time.Date(2023, 8, 31, 0, 0, 0, 0, time.UTC)))
			})
			It("should render the least cloudy scene over 10km", func() {
				Expect(renderer.sceneID).To(Equal(candidates[1].ID))
				Expect(renderer.radius).To(Equal(10000.0))
			})
			It("should publish the result", func() {
				Expect(publisher.messages).To(HaveLen(1))
				var res common.Result
				Expect(json.Unmarshal(publisher.messages[0], &res)).To(Succeed())
				Expect(res.Output).To(Equal(outPath))
				Expect(res.SceneID).To(Equal(candidates[1].ID))
				Expect(res.CloudCover).To(Equal(2.5))
				Expect(res.Latitude).To(Equal(lat))
				Expect(res.Longitude).To(Equal(lon))
				Expect(res.Start).To(Equal(start))
				Expect(res.End).To(Equal(end))
			})
			It("should leave no temporary file", func() {
				files, err := os.ReadDir(outDir)
				Expect(err).NotTo(HaveOccurred())
				Expect(files).To(HaveLen(1))
			})
		})

		Context("with an existing output file", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(outPath, []byte("previous"), 0644)).To(Succeed())
			})
			It("should overwrite it", func() {
				Expect(err).NotTo(HaveOccurred())
				b, _ := os.ReadFile(outPath)
				Expect(b).To(Equal(png))
			})
		})

		Context("with a single-day window", func() {
			BeforeEach(func() {
				start, end = "2023-08-10", "2023-08-10"
			})
			AfterEach(func() {
				start, end = "2023-08-01", "2023-08-31"
			})
			It("should be accepted", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(catalog.calls).To(Equal(1))
				Expect(catalog.dates.Start).To(Equal(catalog.dates.End))
			})
		})

		Context("with a single candidate", func() {
			BeforeEach(func() {
				catalog.scenes = candidates[2:]
			})
			It("should select it, even without cloud cover", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(renderer.sceneID).To(Equal(candidates[2].ID))
				var res common.Result
				Expect(json.Unmarshal(publisher.messages[0], &res)).To(Succeed())
				Expect(res.CloudCover).To(Equal(-1.0))
			})
		})

		Context("with an output pattern", func() {
			BeforeEach(func() {
				outPath = filepath.Join(outDir, "ndvi_{TILE}_{DATE}_{LAT}_{LON}.png")
			})
			It("should name the image after the scene", func() {
				Expect(err).NotTo(HaveOccurred())
				expected := filepath.Join(outDir, "ndvi_T54SUE_20230810_35.681236_139.767125.png")
				Expect(result).To(Equal(expected))
				Expect(expected).To(BeAnExistingFile())
			})
		})

		Context("with an unknown output pattern", func() {
			BeforeEach(func() {
				outPath = filepath.Join(outDir, "ndvi_{UNKNOWN}.png")
			})
			It("should fail before rendering", func() {
				Expect(errors.Is(err, common.ErrInvalidOutput)).To(BeTrue())
				Expect(renderer.regionCalls).To(Equal(0))
			})
		})
	})

	Describe("validating the request", func() {
		Context("with start after end", func() {
			BeforeEach(func() {
				start, end = "2023-08-31", "2023-08-01"
			})
			AfterEach(func() {
				start, end = "2023-08-01", "2023-08-31"
			})
			It("should fail before any remote call", func() {
				Expect(errors.Is(err, common.ErrInvalidDateRange)).To(BeTrue())
				expectStage(common.StageValidate)
				expectNoRemoteCall()
			})
		})

		Context("with an unparsable date", func() {
			BeforeEach(func() {
				start = "2023-13-45"
			})
			AfterEach(func() {
				start = "2023-08-01"
			})
			It("should fail before any remote call", func() {
				Expect(errors.Is(err, common.ErrInvalidDateRange)).To(BeTrue())
				expectNoRemoteCall()
			})
		})

		Context("with an invalid coordinate", func() {
			BeforeEach(func() {
				lat = 95
			})
			AfterEach(func() {
				lat = 35.681236
			})
			It("should fail before any remote call", func() {
				Expect(errors.Is(err, common.ErrInvalidCoordinate)).To(BeTrue())
				expectNoRemoteCall()
			})
		})

		Context("with an empty output path", func() {
			BeforeEach(func() {
				outPath = ""
			})
			It("should fail before any remote call", func() {
				Expect(errors.Is(err, common.ErrInvalidOutput)).To(BeTrue())
				expectNoRemoteCall()
			})
		})
	})

	Describe("failing", func() {
		Context("with no image found", func() {
			BeforeEach(func() {
				catalog.scenes = nil
			})
			It("should return ErrNoImageFound before computing the index", func() {
				Expect(errors.Is(err, common.ErrNoImageFound)).To(BeTrue())
				expectStage(common.StageSelect)
				Expect(renderer.regionCalls).To(Equal(0))
				Expect(renderer.thumbCalls).To(Equal(0))
				Expect(outPath).NotTo(BeAnExistingFile())
			})
		})

		Context("with a remote service error", func() {
			BeforeEach(func() {
				catalog.err = fmt.Errorf("SearchScenes.%w: quota exceeded", common.ErrRemoteService)
			})
			It("should return the error with its stage", func() {
				Expect(errors.Is(err, common.ErrRemoteService)).To(BeTrue())
				expectStage(common.StageSearch)
				Expect(err.Error()).To(ContainSubstring("lat=35.681236 lon=139.767125"))
			})
		})

		Context("with a failing rendering", func() {
			BeforeEach(func() {
				renderer.thumbnailErr = fmt.Errorf("ThumbnailURL.%w", common.ErrRemoteService)
			})
			It("should return a render error", func() {
				Expect(errors.Is(err, common.ErrRemoteService)).To(BeTrue())
				expectStage(common.StageRender)
			})
		})

		Context("with a non-2xx thumbnail response", func() {
			BeforeEach(func() {
				thumbnails.Lock()
				thumbnails.status = http.StatusNotFound
				thumbnails.Unlock()
			})
			It("should not write the output file", func() {
				Expect(errors.Is(err, common.ErrFetch)).To(BeTrue())
				expectStage(common.StageFetch)
				Expect(outPath).NotTo(BeAnExistingFile())
				files, _ := os.ReadDir(outDir)
				Expect(files).To(BeEmpty())
				Expect(publisher.messages).To(BeEmpty())
			})
		})

		Context("with a non-2xx thumbnail response and an existing file", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(outPath, []byte("previous"), 0644)).To(Succeed())
				thumbnails.Lock()
				thumbnails.status = http.StatusForbidden
				thumbnails.Unlock()
			})
			It("should leave the existing file untouched", func() {
				Expect(errors.Is(err, common.ErrFetch)).To(BeTrue())
				b, _ := os.ReadFile(outPath)
				Expect(string(b)).To(Equal("previous"))
			})
		})

		Context("with an unwritable output path", func() {
			BeforeEach(func() {
				outPath = filepath.Join(outDir, "missing", "ndvi.png")
			})
			It("should return a filesystem error before rendering", func() {
				Expect(errors.Is(err, common.ErrFilesystem)).To(BeTrue())
				expectStage(common.StagePersist)
				Expect(renderer.regionCalls).To(Equal(0))
			})
		})

		Context("with a failing notification", func() {
			BeforeEach(func() {
				publisher.err = fmt.Errorf("topic not found")
			})
			It("should keep the saved image", func() {
				expectStage(common.StageNotify)
				Expect(result).To(Equal(outPath))
				Expect(outPath).To(BeAnExistingFile())
			})
		})
	})
})
