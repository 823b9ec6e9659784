package audit

import "math/rand"

// SamplingConfig decides which audit entries are written. Rates are
// probabilities in [0, 1]; errors and blocked requests carry their own
// rate so operators can keep full failure visibility while sampling the
// bulk of successful traffic.
type SamplingConfig struct {
	Rate      float64 // sampling rate for ok requests
	ErrorRate float64 // sampling rate for error and blocked requests
}

// ShouldLog reports whether an entry with the given status survives
// sampling. Any status other than "error" or "blocked" counts as ok.
func (s SamplingConfig) ShouldLog(status string) bool {
	rate := s.Rate
	if status == "error" || status == "blocked" {
		rate = s.ErrorRate
	}
	return rate >= 1.0 || rand.Float64() < rate
}
