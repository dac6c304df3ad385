package common

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

// Sentinel-2 asset index: YYYYMMDDTHHMMSS_yyyymmddThhmmss_TXXXXX
// (datatake sensing start, granule generation time, MGRS tile)
var sentinel2Index = regexp.MustCompile(`^\d{8}T\d{6}_\d{8}T\d{6}_T\d{2}[A-Z]{3}$`)

// Info parses the asset id of a scene and returns its fields.
// Only Sentinel-2 collections are supported.
func Info(sceneID string) (map[string]string, error) {
	index := path.Base(sceneID)
	if !sentinel2Index.MatchString(index) {
		return nil, fmt.Errorf("Info: unsupported scene id: %s", sceneID)
	}
	return map[string]string{
		"SCENE":         index,
		"COLLECTION":    strings.TrimSuffix(strings.TrimSuffix(sceneID, index), "/"),
		"DATE":          index[0:8],
		"YEAR":          index[0:4],
		"MONTH":         index[4:6],
		"DAY":           index[6:8],
		"TIME":          index[9:15],
		"HOUR":          index[9:11],
		"MINUTE":        index[11:13],
		"SECOND":        index[13:15],
		"TILE":          index[32:38],
		"UTM_ZONE":      index[33:35],
		"LATITUDE_BAND": index[35:36],
		"GRID_SQUARE":   index[36:38],
	}, nil
}

// GetDateFromSceneID returns the sensing time of the scene
func GetDateFromSceneID(sceneID string) (time.Time, error) {
	format, err := Info(sceneID)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse("20060102150405", format["DATE"]+format["TIME"])
}

// FormatBrackets replaces in <str> all {keys} of <info> by the corresponding value
// keys are the ones returned by Info (SCENE, DATE, YEAR, MONTH, DAY, TIME, TILE...)
func FormatBrackets(str string, infos ...map[string]string) string {
	for _, info := range infos {
		for k, v := range info {
			str = strings.ReplaceAll(str, "{"+k+"}", v)
		}
	}
	return str
}

// HasBrackets returns true if str contains at least one {KEY}
func HasBrackets(str string) bool {
	return regexp.MustCompile(`\{[A-Z_]+\}`).MatchString(str)
}
