package common

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Scene is a reference to an image of the remote catalog
type Scene struct {
	ID         string    `json:"id"` // Asset id (e.g. COPERNICUS/S2/20230805T012659_20230805T013018_T54SUE)
	CloudCover float64   `json:"cloud_cover"`
	Date       time.Time `json:"date"`
}

func (s Scene) String() string {
	if math.IsInf(s.CloudCover, 1) {
		return fmt.Sprintf("%s (cloud cover unknown)", s.ID)
	}
	return fmt.Sprintf("%s (cloud cover %.2f)", s.ID, s.CloudCover)
}

// SortByCloudCover sorts the scenes by ascending cloud cover.
// Ties are broken by date, then by id.
func SortByCloudCover(scenes []Scene) {
	sort.SliceStable(scenes, func(i, j int) bool {
		if scenes[i].CloudCover != scenes[j].CloudCover {
			return scenes[i].CloudCover < scenes[j].CloudCover
		}
		if !scenes[i].Date.Equal(scenes[j].Date) {
			return scenes[i].Date.Before(scenes[j].Date)
		}
		return scenes[i].ID < scenes[j].ID
	})
}

// SelectLeastCloudy returns the scene with the lowest cloud cover or ErrNoImageFound
// The input slice is not modified.
func SelectLeastCloudy(scenes []Scene) (Scene, error) {
	if len(scenes) == 0 {
		return Scene{}, ErrNoImageFound
	}
	sorted := make([]Scene, len(scenes))
	copy(sorted, scenes)
	SortByCloudCover(sorted)
	return sorted[0], nil
}

// SceneQuery defines the collection search
type SceneQuery struct {
	Collection    string // e.g. COPERNICUS/S2
	CloudProperty string // Property used to sort by cloud cover
	Limit         int    // Maximum number of candidates returned by the catalog
}

// VisParams are the visualization parameters of the rendered band
type VisParams struct {
	Min     float64
	Max     float64
	Palette []string
}

// ThumbnailParams defines the computed band and its rendering
type ThumbnailParams struct {
	NIRBand    string
	RedBand    string
	BandName   string
	Vis        VisParams
	Dimensions int
	Format     string
}
