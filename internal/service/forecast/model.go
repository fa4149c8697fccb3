package forecast

import (
	"math"
	"time"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// Model is an immutable trained forecast for one category. A new Model is
// built on every retrain and swapped in whole.
type Model struct {
	Category   string
	Version    uint64
	Source     models.ForecastSource
	Archetype  Archetype
	Samples    int
	Confidence float64
	TrainedAt  time.Time

	poly polynomial
	base float64
}

// Settings are the thresholds Fit works with.
type Settings struct {
	MinSamples         int
	SaturationSamples  int
	FallbackConfidence float64
	BaseDemand         float64
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		MinSamples:         6,
		SaturationSamples:  50,
		FallbackConfidence: 0.5,
		BaseDemand:         50,
	}
}

// Fit builds the model of a category from its samples.
//
// With at least MinSamples observations spread over two or more months the
// model is a least-squares polynomial of degree up to 2. Otherwise the
// category's archetype scales BaseDemand; an unclassified category with some
// history predicts its flat mean, and one with none is untrained.
func Fit(category string, samples []models.Sample, s Settings) *Model {
	m := &Model{Category: category, Archetype: ArchetypeFor(category)}

	var xs, ys []float64
	var total float64
	observed := 0
	months := map[int]struct{}{}
	for _, sample := range samples {
		if sample.Month < 1 || sample.Month > 12 {
			continue
		}
		obs := max(sample.Observations, 1)
		observed += obs
		total += sample.Quantity
		months[sample.Month] = struct{}{}
		xs = append(xs, float64(sample.Month))
		ys = append(ys, sample.Quantity)
	}
	m.Samples = observed

	if observed >= s.MinSamples && len(months) >= 2 {
		if poly, err := fitPolynomial(xs, ys, min(2, len(months)-1)); err == nil {
			m.Source = models.SourceRegression
			m.poly = poly
			m.Confidence = regressionConfidence(observed, s)
			return m
		}
	}

	switch {
	case m.Archetype != ArchetypeNone:
		m.Source = models.SourceHeuristic
		m.base = s.BaseDemand
		m.Confidence = s.FallbackConfidence
	case len(ys) > 0:
		m.Source = models.SourceHeuristic
		m.base = total / float64(len(ys))
		m.Confidence = s.FallbackConfidence
	default:
		m.Source = models.SourceUntrained
	}
	return m
}

// regressionConfidence rises from just above the fallback ceiling towards 1
// as observations approach SaturationSamples.
func regressionConfidence(observed int, s Settings) float64 {
	saturation := math.Min(1, float64(observed)/float64(max(s.SaturationSamples, 1)))
	return round2(s.FallbackConfidence + (1-s.FallbackConfidence)*saturation)
}

// Predict returns the demand for month (1-12), never negative.
func (m *Model) Predict(month int) float64 {
	var v float64
	switch m.Source {
	case models.SourceRegression:
		v = m.poly.eval(float64(month))
	case models.SourceHeuristic:
		v = m.base * m.Archetype.Multiplier(month)
	default:
		return 0
	}
	return round2(math.Max(0, v))
}

// Prediction wraps Predict into the reported shape.
func (m *Model) Prediction(month int) models.Prediction {
	return models.Prediction{
		Category:        m.Category,
		Month:           month,
		MonthName:       time.Month(month).String(),
		PredictedDemand: m.Predict(month),
		Confidence:      m.Confidence,
		Source:          m.Source,
		ModelVersion:    m.Version,
	}
}

// Insight summarizes the twelve monthly predictions.
func (m *Model) Insight() models.Insight {
	var preds [12]float64
	peak, low := 0, 0
	sum := 0.0
	for i := range preds {
		preds[i] = m.Predict(i + 1)
		sum += preds[i]
		if preds[i] > preds[peak] {
			peak = i
		}
		if preds[i] < preds[low] {
			low = i
		}
	}
	mean := sum / 12

	variance := 0.0
	for _, p := range preds {
		variance += (p - mean) * (p - mean)
	}
	variance /= 12

	return models.Insight{
		Category:     m.Category,
		MeanDemand:   round2(mean),
		PeakMonth:    time.Month(peak + 1).String(),
		PeakDemand:   preds[peak],
		LowMonth:     time.Month(low + 1).String(),
		LowDemand:    preds[low],
		Volatility:   round2(math.Sqrt(variance)),
		Confidence:   m.Confidence,
		DataPoints:   m.Samples,
		Source:       m.Source,
		ModelVersion: m.Version,
		TrainedAt:    m.TrainedAt,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
