package model

import "math"

// Model is the probability-model boundary. Implementations receive the
// extracted feature vector plus the classified regime and return the
// probability of a favorable move in [0,1]. Implementations must be
// deterministic: the same inputs always yield the same probability.
type Model interface {
	Predict(features []float64, regime string) (float64, error)
}

// Logistic is a deterministic linear-logistic model used when no champion
// model file is configured. Weights beyond len(features) are ignored;
// features beyond len(Weights) contribute nothing.
type Logistic struct {
	Bias    float64
	Weights []float64

	// RegimeBias shifts the logit per regime; missing regimes shift by 0.
	RegimeBias map[string]float64
}

func (l Logistic) Predict(features []float64, regime string) (float64, error) {
	z := l.Bias + l.RegimeBias[regime]
	n := len(features)
	if len(l.Weights) < n {
		n = len(l.Weights)
	}
	for i := 0; i < n; i++ {
		z += l.Weights[i] * features[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// Static always returns the same probability. Useful for wiring tests and
// dry runs.
type Static struct {
	P float64
}

func (s Static) Predict([]float64, string) (float64, error) {
	return s.P, nil
}
