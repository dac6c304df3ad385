package common

import (
	"math"
	"time"
)

// Request is the input of an NDVI retrieval
type Request struct {
	Coordinate Coordinate
	Dates      DateRange
	OutputPath string
}

// Result is the event published when an NDVI image has been stored
type Result struct {
	Output     string    `json:"output"`
	SceneID    string    `json:"scene_id"`
	CloudCover float64   `json:"cloud_cover"` // -1 if unknown
	SceneDate  time.Time `json:"scene_date"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
}

// NewResult creates the Result of a request
func NewResult(req Request, scene Scene, output string) Result {
	cloudCover := scene.CloudCover
	if math.IsInf(cloudCover, 0) || math.IsNaN(cloudCover) {
		cloudCover = -1
	}
	return Result{
		Output:     output,
		SceneID:    scene.ID,
		CloudCover: cloudCover,
		SceneDate:  scene.Date,
		Latitude:   req.Coordinate.Latitude,
		Longitude:  req.Coordinate.Longitude,
		Start:      req.Dates.Start.Format(DateFormat),
		End:        req.Dates.End.Format(DateFormat),
	}
}
