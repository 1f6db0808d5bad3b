package model

import (
	"context"
	"encoding/json"
	"math"
	"os"
)

// fileAdapter evaluates a serialized logistic-regression-style weight
// vector in-process: score = sigmoid(bias + Σ weight[feature]*value).
// The artifact is loaded once at construction and never touched again.
type fileAdapter struct {
	bias    float64
	weights map[string]float64
}

type fileArtifact struct {
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

func newFileAdapter(path string) (Adapter, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var art fileArtifact
	if err := json.Unmarshal(b, &art); err != nil {
		return nil, err
	}
	return &fileAdapter{bias: art.Bias, weights: art.Weights}, nil
}

func (a *fileAdapter) Classify(_ context.Context, features map[string]float64) (float64, bool, error) {
	sum := a.bias
	for name, w := range a.weights {
		sum += w * features[name]
	}
	return sigmoid(sum), true, nil
}

func (a *fileAdapter) Close() error { return nil }

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
