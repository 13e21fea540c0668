package indicators

// VolumeIntensity classifies how far current volume exceeds its
// rolling moving average.
type VolumeIntensity string

const (
	IntensityNone     VolumeIntensity = "none"
	IntensityModerate VolumeIntensity = "moderate" // ratio >= 1.5
	IntensityStrong   VolumeIntensity = "strong"   // ratio >= 2.0
	IntensityExtreme  VolumeIntensity = "extreme"  // ratio >= 3.0
)

// VolumeSpikeResult is the typed result of the volume-spike kernel.
type VolumeSpikeResult struct {
	Ratio     float64
	Intensity VolumeIntensity
	IsSpike   bool
	Ready     bool
}

// VolumeMA computes the simple moving average of volume over the
// last n entries (default 20), excluding the current bar — callers
// pass volumes[:len-1] to get the trailing average for the current
// bar, matching spec §4.C.
func VolumeMA(volumes []float64, n int) Scalar {
	return SMA(volumes, n)
}

// VolumeSpike reports the ratio of the current (last) volume to the
// moving average of the n volumes preceding it, and classifies the
// result against the spike threshold (default 2.0) per spec §4.C.
func VolumeSpike(volumes []float64, n int, threshold float64) VolumeSpikeResult {
	if n <= 0 || len(volumes) < n+1 {
		return VolumeSpikeResult{}
	}
	ma := VolumeMA(volumes[:len(volumes)-1], n)
	if !ma.Ready || ma.Value < Epsilon {
		return VolumeSpikeResult{}
	}
	current := volumes[len(volumes)-1]
	ratio := current / ma.Value

	return VolumeSpikeResult{
		Ratio:     ratio,
		Intensity: intensityOf(ratio),
		IsSpike:   ratio >= threshold,
		Ready:     true,
	}
}

func intensityOf(ratio float64) VolumeIntensity {
	switch {
	case ratio >= 3.0:
		return IntensityExtreme
	case ratio >= 2.0:
		return IntensityStrong
	case ratio >= 1.5:
		return IntensityModerate
	default:
		return IntensityNone
	}
}
