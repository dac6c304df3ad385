package common

import "errors"

// Errors returned by the NDVI retrieval. Test them with errors.Is.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidDateRange  = errors.New("invalid date range")
	ErrInvalidOutput     = errors.New("invalid output path")
	ErrAuthentication    = errors.New("authentication failure")
	ErrNoImageFound      = errors.New("no image found")
	ErrRemoteService     = errors.New("remote service error")
	ErrFetch             = errors.New("fetch failure")
	ErrFilesystem        = errors.New("filesystem error")
)
