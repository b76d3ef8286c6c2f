package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/internal/anomaly"
	"procsight/internal/classifier"
	"procsight/internal/history"
	"procsight/internal/models"
	"procsight/internal/store"
)

// fakeSampler источник фиксированных снимков
type fakeSampler struct {
	samples []models.ProcessSample
	err     error
}

func (f *fakeSampler) Collect(_ context.Context, limit int) ([]models.ProcessSample, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.samples) {
		return f.samples[:limit], nil
	}
	return f.samples, nil
}

// fakeProvider модель с заранее заданным ответом
type fakeProvider struct {
	prediction anomaly.Prediction
	err        error
}

func (f *fakeProvider) PredictBatch(_ context.Context, features [][]float64) (anomaly.Prediction, error) {
	if f.err != nil {
		return anomaly.Prediction{}, f.err
	}
	return f.prediction, nil
}

func testSamples() []models.ProcessSample {
	samples := make([]models.ProcessSample, 0, 12)
	samples = append(samples, models.ProcessSample{PID: 1, Name: "sshd", CPU: 2, Memory: 1, Threads: 4})
	for i := 2; i <= 12; i++ {
		samples = append(samples, models.ProcessSample{
			PID: int32(i), Name: "worker", CPU: 10, Memory: 6, Threads: 8,
		})
	}
	return samples
}

func newTestEngine(t *testing.T, sampler *fakeSampler, provider anomaly.ModelProvider,
	rate float64) *Engine {
	t.Helper()

	blob, err := store.NewFileBlobStore(t.TempDir())
	require.NoError(t, err)

	labels := store.NewLabelStore(context.Background(), blob, "labels")
	scorer := anomaly.NewScorer(provider, rate)

	return NewEngine(sampler, classifier.NewClassifier(), labels, scorer,
		history.NewHistory(10), time.Second)
}

func TestRunFullCycle(t *testing.T) {
	samples := testSamples()
	prediction := anomaly.Prediction{
		Outliers: make([]bool, len(samples)),
		Scores:   make([]float64, len(samples)),
	}
	prediction.Outliers[3] = true
	prediction.Scores[3] = -0.5

	engine := newTestEngine(t, &fakeSampler{samples: samples}, &fakeProvider{prediction: prediction}, 0)
	require.NoError(t, engine.Labels().AddLabel(context.Background(), 1, "high_priority", ""))

	report, err := engine.Run(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, report.Views, len(samples))

	sshd := report.Views[0]
	assert.Equal(t, "network_services", sshd.Classification.Category)
	assert.Equal(t, "darkred", sshd.VisualHint.Color)
	assert.Equal(t, 9, sshd.VisualHint.Priority)
	assert.Equal(t, []string{"high_priority"}, sshd.ManualLabels)
	assert.True(t, sshd.Classification.HasManualLabels)

	flagged := report.Views[3]
	assert.True(t, flagged.Anomaly.IsAnomaly)
	assert.Equal(t, models.SourceModel, flagged.Anomaly.Source)
	assert.NotEmpty(t, flagged.Anomaly.Reasons)

	assert.Equal(t, 1, report.Statistics.TaggedProcesses)
	assert.Equal(t, 1, report.Statistics.ByCategory["network_services"])

	assert.Equal(t, 1, engine.History().Len())
	assert.Equal(t, 1, engine.History().Recent(1)[0].Anomalies)
}

func TestRunSamplerErrorFailsCycle(t *testing.T) {
	engine := newTestEngine(t, &fakeSampler{err: errors.New("ps failed")}, &fakeProvider{}, 0)

	_, err := engine.Run(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ps failed")
	assert.Zero(t, engine.History().Len())
}

func TestRunModelErrorFailsCycle(t *testing.T) {
	engine := newTestEngine(t, &fakeSampler{samples: testSamples()},
		&fakeProvider{err: errors.New("model not loaded")}, 0)

	_, err := engine.Run(context.Background(), 50)
	assert.ErrorIs(t, err, anomaly.ErrModelUnavailable)
}

func TestRunSmallBatchSimplifiedPath(t *testing.T) {
	samples := testSamples()[:5]
	// Провайдер вернул бы ошибку, но упрощенный путь его не вызывает
	engine := newTestEngine(t, &fakeSampler{samples: samples},
		&fakeProvider{err: errors.New("unreachable")}, 0)

	report, err := engine.Run(context.Background(), 50)
	require.NoError(t, err)

	for _, view := range report.Views {
		assert.False(t, view.Anomaly.IsAnomaly)
		assert.Equal(t, 0.0, view.Anomaly.Score)
		assert.Equal(t, models.SourceNormal, view.Anomaly.Source)
	}
}

func TestDetectOnly(t *testing.T) {
	samples := testSamples()
	prediction := anomaly.Prediction{
		Outliers: make([]bool, len(samples)),
		Scores:   make([]float64, len(samples)),
	}

	engine := newTestEngine(t, &fakeSampler{samples: samples}, &fakeProvider{prediction: prediction}, 0)

	got, anomalies, err := engine.Detect(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, got, len(samples))
	assert.Len(t, anomalies, len(samples))
	// Detect не пишет в историю циклов
	assert.Zero(t, engine.History().Len())
}

func TestRunRespectsLimit(t *testing.T) {
	engine := newTestEngine(t, &fakeSampler{samples: testSamples()}, nil, 0)

	report, err := engine.Run(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, report.Views, 3)
}
