package preflight

// Volume is the advisory classification of an estimated row count.
// Callers decide what to do with it; the pipeline enforces abort only
// when configured to.
type Volume int

const (
	VolumeProceed Volume = iota
	VolumeWarn
	VolumeAbort
)

// AbortFactor scales the warn threshold into the abort threshold.
const AbortFactor = 10

func (v Volume) String() string {
	switch v {
	case VolumeWarn:
		return "warn"
	case VolumeAbort:
		return "abort"
	default:
		return "proceed"
	}
}

// ClassifyVolume grades a row count against a threshold: proceed up to
// the threshold, warn up to AbortFactor times it, abort beyond.
func ClassifyVolume(rowCount, threshold int64) Volume {
	if threshold <= 0 || rowCount <= threshold {
		return VolumeProceed
	}
	if rowCount <= AbortFactor*threshold {
		return VolumeWarn
	}
	return VolumeAbort
}
