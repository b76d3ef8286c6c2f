package anomaly

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/internal/models"
)

// fakeProvider модель с заранее заданным ответом
type fakeProvider struct {
	prediction Prediction
	err        error
	calls      int
}

func (f *fakeProvider) PredictBatch(_ context.Context, features [][]float64) (Prediction, error) {
	f.calls++
	if f.err != nil {
		return Prediction{}, f.err
	}
	return f.prediction, nil
}

func makeSamples(n int) []models.ProcessSample {
	samples := make([]models.ProcessSample, 0, n)
	for i := 0; i < n; i++ {
		samples = append(samples, models.ProcessSample{
			PID: int32(i + 1), Name: "proc", CPU: 10, Memory: 2, Threads: 4,
		})
	}
	return samples
}

func allNormal(n int) Prediction {
	return Prediction{Outliers: make([]bool, n), Scores: make([]float64, n)}
}

func TestDetectSmallBatchBypassesModel(t *testing.T) {
	provider := &fakeProvider{prediction: Prediction{
		Outliers: []bool{true, true, true, true, true, true, true, true, true},
		Scores:   []float64{-1, -1, -1, -1, -1, -1, -1, -1, -1},
	}}
	scorer := NewScorer(provider, 1.0)

	results, err := scorer.Detect(context.Background(), makeSamples(9))
	require.NoError(t, err)
	require.Len(t, results, 9)

	for _, result := range results {
		assert.False(t, result.IsAnomaly)
		assert.Equal(t, 0.0, result.Score)
		assert.Equal(t, models.SourceNormal, result.Source)
		assert.NotEmpty(t, result.Reasons)
	}
	assert.Zero(t, provider.calls)
}

func TestDetectNilProviderBypasses(t *testing.T) {
	scorer := NewScorer(nil, 0.5)

	results, err := scorer.Detect(context.Background(), makeSamples(50))
	require.NoError(t, err)

	for _, result := range results {
		assert.False(t, result.IsAnomaly)
		assert.Equal(t, models.SourceNormal, result.Source)
	}
}

func TestDetectEmptyBatch(t *testing.T) {
	scorer := NewScorer(&fakeProvider{}, 0)

	results, err := scorer.Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDetectModelSourceWinsOverRandom(t *testing.T) {
	n := 12
	prediction := allNormal(n)
	prediction.Outliers[0] = true
	prediction.Scores[0] = -0.4

	// rate=1 помечает случайно все процессы; у первого приоритет модели
	scorer := NewScorer(&fakeProvider{prediction: prediction}, 1.0)

	results, err := scorer.Detect(context.Background(), makeSamples(n))
	require.NoError(t, err)

	assert.Equal(t, models.SourceModel, results[0].Source)
	assert.True(t, results[0].IsAnomaly)
	assert.Equal(t, -0.4, results[0].Score)

	for _, result := range results[1:] {
		assert.Equal(t, models.SourceRandom, result.Source)
		assert.True(t, result.IsAnomaly)
	}
}

func TestDetectZeroRateAllNormal(t *testing.T) {
	n := 12
	scorer := NewScorer(&fakeProvider{prediction: allNormal(n)}, 0)

	results, err := scorer.Detect(context.Background(), makeSamples(n))
	require.NoError(t, err)

	for _, result := range results {
		assert.False(t, result.IsAnomaly)
		assert.Equal(t, models.SourceNormal, result.Source)
	}
}

func TestSourceInvariant(t *testing.T) {
	n := 12
	prediction := allNormal(n)
	prediction.Outliers[3] = true
	scorer := NewScorer(&fakeProvider{prediction: prediction}, 0)

	results, err := scorer.Detect(context.Background(), makeSamples(n))
	require.NoError(t, err)

	for _, result := range results {
		if result.Source == models.SourceNormal {
			assert.False(t, result.IsAnomaly)
		} else {
			assert.True(t, result.IsAnomaly)
		}
		assert.Contains(t, []string{models.SourceModel, models.SourceRandom, models.SourceNormal},
			result.Source)
	}
}

func TestProviderCalledOncePerBatch(t *testing.T) {
	n := 25
	provider := &fakeProvider{prediction: allNormal(n)}
	scorer := NewScorer(provider, 0)

	_, err := scorer.Detect(context.Background(), makeSamples(n))
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
}

func TestProviderErrorFailsWholeBatch(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model not loaded")}
	scorer := NewScorer(provider, 0)

	results, err := scorer.Detect(context.Background(), makeSamples(12))
	assert.Nil(t, results)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestPredictionLengthMismatchFailsBatch(t *testing.T) {
	provider := &fakeProvider{prediction: allNormal(3)}
	scorer := NewScorer(provider, 0)

	_, err := scorer.Detect(context.Background(), makeSamples(12))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestNonFiniteFeatureFailsBatch(t *testing.T) {
	samples := makeSamples(12)
	samples[5].CPU = math.NaN()

	scorer := NewScorer(&fakeProvider{prediction: allNormal(12)}, 0)

	_, err := scorer.Detect(context.Background(), samples)
	assert.ErrorIs(t, err, ErrInvalidFeatureVector)
}

func TestExplainAlwaysComments(t *testing.T) {
	sample := models.ProcessSample{CPU: 95, Memory: 12, Threads: 80}

	reasons := Explain(sample, true, models.SourceModel)

	require.Len(t, reasons, 4)
	assert.Contains(t, reasons[0], "CPU usage is high")
	assert.Contains(t, reasons[1], "elevated")
	assert.Contains(t, reasons[2], "Thread count is high")
	assert.Contains(t, reasons[3], "flagged as anomalous")
}

func TestExplainNormalProcess(t *testing.T) {
	sample := models.ProcessSample{CPU: 5, Memory: 1, Threads: 4}

	reasons := Explain(sample, false, models.SourceNormal)

	require.Len(t, reasons, 4)
	assert.Equal(t, "CPU usage is normal", reasons[0])
	assert.Contains(t, reasons[3], "normal system profile")
}

func TestExplainRandomSource(t *testing.T) {
	sample := models.ProcessSample{CPU: 30, Memory: 8, Threads: 10}

	reasons := Explain(sample, true, models.SourceRandom)

	assert.Contains(t, reasons[0], "upper normal range")
	assert.Contains(t, reasons[len(reasons)-1], "risk")
}
