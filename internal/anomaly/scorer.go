package anomaly

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"procsight/internal/models"
)

var (
	// ErrModelUnavailable модель не загружена или не ответила
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrInvalidFeatureVector вектор признаков имеет неверную форму
	ErrInvalidFeatureVector = errors.New("invalid feature vector")
)

// FeatureCount размерность вектора признаков [cpu, memory, threads, nice]
const FeatureCount = 4

// DefaultMinBatch минимальный размер батча для строгого пути оценки
const DefaultMinBatch = 10

// DefaultRandomRate доля случайных пометок для имитации остаточного риска
const DefaultRandomRate = 0.03

// Prediction ответ модели на батч: флаги выбросов и непрерывные оценки.
// Знак оценки сохраняется как у модели: чем отрицательнее, тем аномальнее
type Prediction struct {
	Outliers []bool
	Scores   []float64
}

// ModelProvider внешняя модель обнаружения выбросов
type ModelProvider interface {
	PredictBatch(ctx context.Context, features [][]float64) (Prediction, error)
}

// Scorer оценивает батч процессов: модель + малая доля случайных пометок
type Scorer struct {
	provider   ModelProvider
	randomRate float64
	minBatch   int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewScorer создает оценщик. При nil provider работает упрощенный путь:
// все процессы считаются нормальными
func NewScorer(provider ModelProvider, randomRate float64) *Scorer {
	if randomRate < 0 {
		randomRate = 0
	}
	if randomRate > 1 {
		randomRate = 1
	}

	return &Scorer{
		provider:   provider,
		randomRate: randomRate,
		minBatch:   DefaultMinBatch,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetMinBatch задает порог размера батча для строгого пути
func (s *Scorer) SetMinBatch(n int) {
	s.minBatch = n
}

// draw возвращает независимую равномерную величину для одного процесса
func (s *Scorer) draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// Detect оценивает батч целиком. Строгий путь вызывает модель один раз
// на батч и при любой ошибке модели отклоняет весь батч; упрощенный путь
// (батч меньше minBatch или модель не настроена) помечает все процессы
// нормальными без обращения к модели
func (s *Scorer) Detect(ctx context.Context, samples []models.ProcessSample) ([]models.AnomalyResult, error) {
	if len(samples) == 0 {
		return []models.AnomalyResult{}, nil
	}

	if s.provider == nil || len(samples) < s.minBatch {
		results := make([]models.AnomalyResult, 0, len(samples))
		for _, sample := range samples {
			results = append(results, models.AnomalyResult{
				PID:       sample.PID,
				IsAnomaly: false,
				Score:     0.0,
				Source:    models.SourceNormal,
				Reasons:   Explain(sample, false, models.SourceNormal),
			})
		}
		return results, nil
	}

	features := make([][]float64, 0, len(samples))
	for _, sample := range samples {
		vector := sample.Features()
		if err := validateVector(vector); err != nil {
			return nil, fmt.Errorf("pid %d: %w", sample.PID, err)
		}
		features = append(features, vector)
	}

	prediction, err := s.provider.PredictBatch(ctx, features)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if len(prediction.Outliers) != len(samples) || len(prediction.Scores) != len(samples) {
		return nil, fmt.Errorf("%w: model returned %d/%d predictions for %d samples",
			ErrModelUnavailable, len(prediction.Outliers), len(prediction.Scores), len(samples))
	}

	results := make([]models.AnomalyResult, 0, len(samples))
	for i, sample := range samples {
		modelAnomaly := prediction.Outliers[i]
		randomAnomaly := s.draw() < s.randomRate
		isAnomaly := modelAnomaly || randomAnomaly

		// Пометка модели имеет приоритет над случайной
		source := models.SourceNormal
		if modelAnomaly {
			source = models.SourceModel
		} else if randomAnomaly {
			source = models.SourceRandom
		}

		results = append(results, models.AnomalyResult{
			PID:       sample.PID,
			IsAnomaly: isAnomaly,
			Score:     prediction.Scores[i],
			Source:    source,
			Reasons:   Explain(sample, isAnomaly, source),
		})
	}

	return results, nil
}

// validateVector проверяет форму и значения вектора признаков
func validateVector(vector []float64) error {
	if len(vector) != FeatureCount {
		return fmt.Errorf("%w: got %d features, want %d", ErrInvalidFeatureVector, len(vector), FeatureCount)
	}
	for _, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite feature value", ErrInvalidFeatureVector)
		}
	}
	return nil
}

// Explain строит комментарий по правилам; заполняется всегда,
// независимо от статуса аномалии
func Explain(sample models.ProcessSample, isAnomaly bool, source string) []string {
	var reasons []string

	switch {
	case sample.CPU > 80:
		reasons = append(reasons, "CPU usage is high, the process needs attention")
	case sample.CPU > 20:
		reasons = append(reasons, "CPU usage is in the upper normal range")
	default:
		reasons = append(reasons, "CPU usage is normal")
	}

	if sample.Memory > 5 {
		reasons = append(reasons, "Memory usage is elevated")
	} else {
		reasons = append(reasons, "Memory usage is normal")
	}

	if sample.Threads > 50 {
		reasons = append(reasons, "Thread count is high, possible concurrency pressure")
	} else {
		reasons = append(reasons, "Thread count is within the expected range")
	}

	if isAnomaly {
		if source == models.SourceModel {
			reasons = append(reasons, "Behavior differs significantly from most processes, flagged as anomalous")
		} else if source == models.SourceRandom {
			reasons = append(reasons, "Potential anomaly risk detected")
		}
	} else {
		reasons = append(reasons, "Process behavior matches the normal system profile")
	}

	return reasons
}
