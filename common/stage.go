package common

//go:generate go run github.com/dmarkham/enumer -json -type Stage -trimprefix Stage

// Stage of the NDVI retrieval, used to report where a failure occurred
type Stage int

const (
	StageValidate Stage = iota
	StageAuthenticate
	StageSearch
	StageSelect
	StageCompute
	StageRender
	StageFetch
	StagePersist
	StageNotify
)
