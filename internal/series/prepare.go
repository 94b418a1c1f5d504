package series

// Options configures Prepare.
type Options struct {
	OutlierSigma float64
	Scaling      Scaling
	MaxLag       int
}

// DefaultOptions mirrors the analysis defaults: 3σ outliers, z-score scaling, 7 lags.
func DefaultOptions() Options {
	return Options{
		OutlierSigma: DefaultOutlierSigma,
		Scaling:      ScalingZScore,
		MaxLag:       DefaultMaxLag,
	}
}

// Stats counts rows surviving each preparation step.
type Stats struct {
	Joined   int
	Cleaned  int
	Retained int // after outlier removal
}

// Prepare runs clean, outlier removal, feature derivation and scaling over
// joined observations. Features are derived from unscaled values so that the
// rainy flag and shower type keep their millimetre meaning; only the base
// columns are scaled.
func Prepare(joined []Observation, opts Options) ([]Observation, Stats) {
	st := Stats{Joined: len(joined)}

	cleaned := Clean(joined)
	st.Cleaned = len(cleaned)

	sigma := opts.OutlierSigma
	if sigma <= 0 {
		sigma = DefaultOutlierSigma
	}
	retained := RemoveOutliers(cleaned, sigma)
	st.Retained = len(retained)

	featured := AddFeatures(retained, opts.MaxLag)
	return Normalize(featured, opts.Scaling), st
}
