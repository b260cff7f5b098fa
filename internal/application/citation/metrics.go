package citation

// nopMetrics satisfies PipelineMetrics where no registry is wired (tests,
// one-shot CLI runs).
type nopMetrics struct{}

func (nopMetrics) JobFinished(string)         {}
func (nopMetrics) ExtractionDuration(float64) {}
func (nopMetrics) AnalysisDuration(float64)   {}
func (nopMetrics) AnalysisAttempt(string)     {}
func (nopMetrics) ValidationVerdict(bool)     {}
