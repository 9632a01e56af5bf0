package flows

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	ParseAccess func(string) error

	MetricInc func(int)
	Metrics   ValidateMetrics
}

type ValidateMetrics struct {
	ValidateSuccess int
	ValidateFailure int
}

// RunValidate reports whether token is a currently valid access token. Every
// failure collapses to false; callers needing the reason use the token parser.
func RunValidate(token string, deps ValidateDeps) bool {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.ParseAccess == nil || token == "" {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return false
	}
	if err := deps.ParseAccess(token); err != nil {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return false
	}
	deps.MetricInc(deps.Metrics.ValidateSuccess)
	return true
}
