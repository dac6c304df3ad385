package common

import (
	"fmt"
	"math"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-spatial/geom"
)

// DateFormat is the calendar format used in logs, events and remote date filters
const DateFormat = "2006-01-02"

// Coordinate is a geographic position in degrees (WGS84)
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that latitude is in [-90, 90] and longitude in [-180, 180]
func (c Coordinate) Validate() error {
	for _, v := range []float64{c.Latitude, c.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v,%v is not a number", ErrInvalidCoordinate, c.Latitude, c.Longitude)
		}
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Point returns the query point. Coordinates are ordered (longitude, latitude).
func (c Coordinate) Point() geom.Point {
	return geom.Point{c.Longitude, c.Latitude}
}

func (c Coordinate) String() string {
	return fmt.Sprintf("lat=%v lon=%v", c.Latitude, c.Longitude)
}

// DateRange is an interval of calendar days. Start and End are both included.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange parses start and end and checks that end does not precede start.
// start == end is a single-day window.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, fmt.Errorf("start date: %w", err)
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, fmt.Errorf("end date: %w", err)
	}
	dr := DateRange{Start: s, End: e}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// Validate checks that the range is not empty nor reversed
func (dr DateRange) Validate() error {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidDateRange)
	}
	if dr.End.Before(dr.Start) {
		return fmt.Errorf("%w: end date %s precedes start date %s", ErrInvalidDateRange, dr.End.Format(DateFormat), dr.Start.Format(DateFormat))
	}
	return nil
}

// FilterEnd returns the exclusive upper bound of the range (the day after End)
func (dr DateRange) FilterEnd() time.Time {
	return dr.End.AddDate(0, 0, 1)
}

// Contains returns true if t falls in one of the days of the range
func (dr DateRange) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(dr.Start) && t.Before(dr.FilterEnd())
}

func (dr DateRange) String() string {
	return dr.Start.Format(DateFormat) + "/" + dr.End.Format(DateFormat)
}

// ParseDate parses a calendar date and returns midnight UTC of that day.
// Ambiguous formats (e.g. 01/02/2023) are rejected.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", ErrInvalidDateRange)
	}
	t, err := dateparse.ParseStrict(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidDateRange, s, err)
	}
	y, m, d := t.Date()
	if y < 1 || y > 9999 {
		return time.Time{}, fmt.Errorf("%w: %s: year out of range", ErrInvalidDateRange, s)
	}
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}
