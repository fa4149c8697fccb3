package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

type fakeHistory struct {
	mu      sync.Mutex
	samples map[string][]models.Sample
	hook    func(ctx context.Context, call int) ([]models.Sample, error)
	calls   int
}

func (f *fakeHistory) Categories(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for c := range f.samples {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeHistory) Samples(ctx context.Context, category string) ([]models.Sample, error) {
	f.mu.Lock()
	f.calls++
	call, hook := f.calls, f.hook
	samples := f.samples[category]
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, call)
	}
	return samples, nil
}

func monthly(category string, fn func(month int) float64, months ...int) []models.Sample {
	out := make([]models.Sample, 0, len(months))
	for _, m := range months {
		out = append(out, models.Sample{Category: category, Month: m, Quantity: fn(m), Observations: 1})
	}
	return out
}

func allMonths() []int { return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12} }

func newEngine(h History, retrainEvery int) *Engine {
	return NewEngine(Config{Settings: DefaultSettings(), RetrainEvery: retrainEvery}, h, nil,
		WithClock(func() time.Time { return time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC) }))
}

func TestFit_ScarceHistoryUsesArchetype(t *testing.T) {
	samples := monthly("Dairy", func(int) float64 { return 400 }, 1, 2, 3)

	m := Fit("Dairy", samples, DefaultSettings())

	assert.Equal(t, models.SourceHeuristic, m.Source)
	assert.Equal(t, ArchetypePerishable, m.Archetype)
	assert.LessOrEqual(t, m.Confidence, 0.5)
	assert.Equal(t, 50.0, m.Predict(5))
	assert.Equal(t, 55.0, m.Predict(11), "mild festive bump")
}

func TestFit_RegressionRecoversQuadratic(t *testing.T) {
	samples := monthly("Soft Drinks", func(m int) float64 {
		d := float64(m - 6)
		return 100 - d*d
	}, allMonths()...)

	m := Fit("Soft Drinks", samples, DefaultSettings())

	require.Equal(t, models.SourceRegression, m.Source)
	assert.InDelta(t, 100, m.Predict(6), 0.01)
	assert.InDelta(t, 75, m.Predict(1), 0.01)
	assert.InDelta(t, 64, m.Predict(12), 0.01)
	assert.Equal(t, 0.62, m.Confidence)
	assert.Equal(t, 12, m.Samples)
}

func TestFit_ClampsNegativePredictions(t *testing.T) {
	samples := monthly("Widgets", func(m int) float64 { return 60 - 10*float64(m) }, 1, 2, 3, 4, 5, 6)

	m := Fit("Widgets", samples, DefaultSettings())

	require.Equal(t, models.SourceRegression, m.Source)
	for month := 1; month <= 12; month++ {
		assert.GreaterOrEqual(t, m.Predict(month), 0.0, "month %d", month)
	}
	assert.Equal(t, 0.0, m.Predict(12))
}

func TestFit_TwoMonthsFallsBackToLine(t *testing.T) {
	samples := append(
		monthly("Widgets", func(int) float64 { return 10 }, 1, 1, 1),
		monthly("Widgets", func(int) float64 { return 20 }, 3, 3, 3)...,
	)

	m := Fit("Widgets", samples, DefaultSettings())

	require.Equal(t, models.SourceRegression, m.Source)
	assert.InDelta(t, 15, m.Predict(2), 0.01)
	assert.InDelta(t, 25, m.Predict(4), 0.01)
}

func TestFit_UnclassifiedCategory(t *testing.T) {
	untrained := Fit("Widgets", nil, DefaultSettings())
	assert.Equal(t, models.SourceUntrained, untrained.Source)
	assert.Equal(t, 0.0, untrained.Confidence)
	assert.Equal(t, 0.0, untrained.Predict(3))

	few := Fit("Widgets", monthly("Widgets", func(m int) float64 { return float64(m * 10) }, 2, 4), DefaultSettings())
	assert.Equal(t, models.SourceHeuristic, few.Source)
	assert.Equal(t, 30.0, few.Predict(9), "flat mean of the history")
}

func TestFit_ConfidenceNeverDecreasesWithMoreSamples(t *testing.T) {
	for _, category := range []string{"Dairy", "Widgets"} {
		var samples []models.Sample
		prev := Fit(category, nil, DefaultSettings()).Confidence
		for i := 0; i < 80; i++ {
			month := i%12 + 1
			samples = append(samples, models.Sample{Category: category, Month: month, Quantity: 40 + float64(month), Observations: 1})
			conf := Fit(category, samples, DefaultSettings()).Confidence
			assert.GreaterOrEqual(t, conf, prev, "%s after %d samples", category, i+1)
			assert.LessOrEqual(t, conf, 1.0)
			prev = conf
		}
		assert.Equal(t, 1.0, prev)
	}
}

func TestEngine_PredictUntrainedCategory(t *testing.T) {
	e := newEngine(&fakeHistory{}, 0)

	p := e.Predict("Widgets", 4)
	assert.True(t, p.NotTrained())
	assert.Equal(t, 0.0, p.PredictedDemand)
	assert.Equal(t, "April", p.MonthName)

	p = e.Predict("Frozen Foods", 6)
	assert.Equal(t, models.SourceHeuristic, p.Source)
	assert.Equal(t, 100.0, p.PredictedDemand)
}

func TestEngine_Insights(t *testing.T) {
	e := newEngine(&fakeHistory{samples: map[string][]models.Sample{}}, 0)

	insight, err := e.Insights("Soft Drinks")
	require.NoError(t, err)
	assert.Equal(t, "April", insight.PeakMonth)
	assert.Equal(t, 90.0, insight.PeakDemand)
	assert.Equal(t, "January", insight.LowMonth)
	assert.Equal(t, 30.0, insight.LowDemand)
	assert.Equal(t, 58.33, insight.MeanDemand)
	assert.Equal(t, 23.75, insight.Volatility)
	assert.Equal(t, 0.5, insight.Confidence)

	_, err = e.Insights("Widgets")
	assert.ErrorIs(t, err, models.ErrModelNotTrained)
}

func TestEngine_TrainAllPublishesVersionedModels(t *testing.T) {
	h := &fakeHistory{samples: map[string][]models.Sample{
		"Dairy":       monthly("Dairy", func(m int) float64 { return float64(10 * m) }, allMonths()...),
		"Soft Drinks": monthly("Soft Drinks", func(int) float64 { return 5 }, 1, 2),
		"Widgets":     nil,
	}}
	e := newEngine(h, 0)

	require.NoError(t, e.TrainAll(context.Background()))

	assert.Equal(t, []string{"Dairy", "Soft Drinks", "Widgets"}, e.Categories())
	assert.Equal(t, models.SourceRegression, e.Model("dairy").Source)
	assert.Equal(t, models.SourceHeuristic, e.Model("Soft Drinks").Source)
	assert.Equal(t, models.SourceUntrained, e.Model("Widgets").Source)

	before := e.Model("Dairy").Version
	m, err := e.Train(context.Background(), "Dairy")
	require.NoError(t, err)
	assert.Greater(t, m.Version, before)
	assert.Same(t, m, e.Model("Dairy"))

	forecast := e.Forecast("")
	assert.Len(t, forecast, 36)
	assert.Len(t, e.AllInsights(), 2, "untrained categories have no insight")
}

func TestEngine_TrainPropagatesHistoryError(t *testing.T) {
	h := &fakeHistory{hook: func(context.Context, int) ([]models.Sample, error) {
		return nil, errors.New("store offline")
	}}
	e := newEngine(h, 0)

	_, err := e.Train(context.Background(), "Dairy")
	assert.ErrorContains(t, err, "store offline")
	assert.Nil(t, e.Model("Dairy"))
}

func TestEngine_NewerRetrainSupersedesInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	stale := monthly("Dairy", func(int) float64 { return 1 }, allMonths()...)
	fresh := monthly("Dairy", func(int) float64 { return 99 }, 1, 2, 3, 4, 5, 6, 7, 8)

	h := &fakeHistory{hook: func(_ context.Context, call int) ([]models.Sample, error) {
		if call == 1 {
			close(started)
			<-release
			return stale, nil
		}
		return fresh, nil
	}}
	e := newEngine(h, 0)

	e.Retrain("Dairy")
	<-started
	e.Retrain("Dairy")

	require.Eventually(t, func() bool { return e.Model("Dairy") != nil }, time.Second, 5*time.Millisecond)
	close(release)
	e.Wait()

	m := e.Model("Dairy")
	assert.Equal(t, 8, m.Samples, "stale result must be discarded")
	assert.InDelta(t, 99, m.Predict(3), 0.01)
	assert.Equal(t, uint64(1), m.Version)
}

func TestEngine_SupersededRetrainIsCancelled(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})

	h := &fakeHistory{hook: func(ctx context.Context, call int) ([]models.Sample, error) {
		if call == 1 {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return nil, nil
	}}
	e := newEngine(h, 0)

	e.Retrain("Dairy")
	<-started
	e.Retrain("Dairy")
	e.Wait()

	select {
	case <-cancelled:
	default:
		t.Fatal("in-flight retrain was not cancelled")
	}
	assert.NotNil(t, e.Model("Dairy"))
}

func TestEngine_ObserveTriggersRetrain(t *testing.T) {
	h := &fakeHistory{samples: map[string][]models.Sample{
		"Dairy": monthly("Dairy", func(int) float64 { return 12 }, allMonths()...),
	}}
	e := newEngine(h, 3)

	e.Observe("Dairy")
	e.Observe("Dairy")
	e.Wait()
	assert.Nil(t, e.Model("Dairy"))

	e.Observe("Dairy")
	e.Wait()
	require.NotNil(t, e.Model("Dairy"))
	assert.Equal(t, models.SourceRegression, e.Model("Dairy").Source)
}

func TestEngine_ConcurrentReadsDuringRetrain(t *testing.T) {
	h := &fakeHistory{samples: map[string][]models.Sample{
		"Dairy": monthly("Dairy", func(m int) float64 { return float64(m) }, allMonths()...),
	}}
	e := newEngine(h, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.Retrain("Dairy")
		}()
		go func(i int) {
			defer wg.Done()
			p := e.Predict("Dairy", i%12+1)
			assert.GreaterOrEqual(t, p.PredictedDemand, 0.0, fmt.Sprint(i))
		}(i)
	}
	wg.Wait()
	e.Close()

	require.NotNil(t, e.Model("Dairy"))
}
