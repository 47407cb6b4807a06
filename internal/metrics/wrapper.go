package metrics

// Sink adapter methods. The model package declares its own small metrics
// interface to avoid importing this package; *Metrics satisfies it
// directly.

func (m *Metrics) PredictionsInc() {
	m.Predictions.Inc()
}

func (m *Metrics) PredictionFailuresInc() {
	m.PredictionFailures.Inc()
}

func (m *Metrics) TrainingDurationObserve(seconds float64) {
	m.TrainingDuration.Observe(seconds)
}

func (m *Metrics) ModelAgeSet(seconds float64) {
	m.ModelAge.Set(seconds)
}

func (m *Metrics) FeatureRowsAdd(n int) {
	m.FeatureRows.Add(float64(n))
}
