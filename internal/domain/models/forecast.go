package models

import "time"

// Sample is one observed monthly demand figure for a category.
// Observations counts the raw records (sales or dataset rows) folded into it.
type Sample struct {
	Category     string  `json:"category"`
	Month        int     `json:"month"`
	Quantity     float64 `json:"quantity"`
	Observations int     `json:"observations"`
}

// ForecastSource tells where a prediction came from.
type ForecastSource string

const (
	SourceRegression ForecastSource = "regression"
	SourceHeuristic  ForecastSource = "heuristic"
	SourceUntrained  ForecastSource = "untrained"
)

// Prediction is the forecast demand of one category for one month.
type Prediction struct {
	Category        string         `json:"category"`
	Month           int            `json:"month"`
	MonthName       string         `json:"month_name"`
	PredictedDemand float64        `json:"predicted_demand"`
	Confidence      float64        `json:"confidence"`
	Source          ForecastSource `json:"source"`
	ModelVersion    uint64         `json:"model_version"`
}

// NotTrained reports whether the prediction is the flagged empty result.
func (p Prediction) NotTrained() bool {
	return p.Source == SourceUntrained
}

// Insight summarizes the twelve monthly predictions of a category.
type Insight struct {
	Category     string         `json:"category"`
	MeanDemand   float64        `json:"mean_demand"`
	PeakMonth    string         `json:"peak_month"`
	PeakDemand   float64        `json:"peak_demand"`
	LowMonth     string         `json:"low_month"`
	LowDemand    float64        `json:"low_demand"`
	Volatility   float64        `json:"volatility"`
	Confidence   float64        `json:"confidence"`
	DataPoints   int            `json:"data_points"`
	Source       ForecastSource `json:"source"`
	ModelVersion uint64         `json:"model_version"`
	TrainedAt    time.Time      `json:"trained_at"`
}
