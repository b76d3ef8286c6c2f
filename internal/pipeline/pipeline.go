package pipeline

import (
	"context"
	"fmt"
	"time"

	"procsight/internal/aggregate"
	"procsight/internal/anomaly"
	"procsight/internal/classifier"
	"procsight/internal/collector"
	"procsight/internal/history"
	"procsight/internal/metrics"
	"procsight/internal/models"
	"procsight/internal/store"
)

// Report результат одного цикла классификации и оценки
type Report struct {
	Timestamp  time.Time            `json:"timestamp"`
	Views      []models.ProcessView `json:"processes"`
	Statistics models.Statistics    `json:"statistics"`
}

// Engine связывает сборщик, классификатор, хранилище меток и оценщик
// в синхронный батчевый конвейер
type Engine struct {
	sampler      collector.Sampler
	classifier   *classifier.Classifier
	labels       *store.LabelStore
	scorer       *anomaly.Scorer
	history      *history.History
	modelTimeout time.Duration
}

// NewEngine создает конвейер
func NewEngine(sampler collector.Sampler, cls *classifier.Classifier,
	labels *store.LabelStore, scorer *anomaly.Scorer,
	hist *history.History, modelTimeout time.Duration) *Engine {

	return &Engine{
		sampler:      sampler,
		classifier:   cls,
		labels:       labels,
		scorer:       scorer,
		history:      hist,
		modelTimeout: modelTimeout,
	}
}

// Labels возвращает хранилище меток конвейера
func (e *Engine) Labels() *store.LabelStore {
	return e.labels
}

// History возвращает окно сводок конвейера
func (e *Engine) History() *history.History {
	return e.history
}

// Run выполняет полный цикл: сбор, классификация, слияние меток,
// оценка аномальности, агрегация. Ошибка любого этапа отклоняет
// весь цикл, частичных результатов не бывает
func (e *Engine) Run(ctx context.Context, limit int) (Report, error) {
	start := time.Now()

	samples, err := e.sampler.Collect(ctx, limit)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return Report{}, fmt.Errorf("failed to collect samples: %w", err)
	}

	classified := e.classifier.ClassifyBatch(samples)
	merged := e.labels.MergeWithClassification(classified)

	anomalies, err := e.detect(ctx, samples)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return Report{}, err
	}

	views := make([]models.ProcessView, 0, len(samples))
	anomalyCount := 0
	for i, sample := range samples {
		view := aggregate.BuildView(sample, merged[i], merged[i].ManualLabels, anomalies[i])
		views = append(views, view)

		if view.Anomaly.IsAnomaly {
			anomalyCount++
			metrics.AnomaliesDetected.WithLabelValues(view.Anomaly.Source).Inc()
		}
	}

	stats := aggregate.Summarize(views)

	metrics.ProcessesClassified.Add(float64(len(views)))
	metrics.LabeledProcesses.Set(float64(e.labels.Count()))
	for category, count := range stats.ByCategory {
		metrics.CategoryProcesses.WithLabelValues(category).Set(float64(count))
	}

	report := Report{
		Timestamp:  time.Now(),
		Views:      views,
		Statistics: stats,
	}

	if e.history != nil {
		e.history.Record(history.Entry{
			Timestamp:  report.Timestamp,
			Processes:  len(views),
			Anomalies:  anomalyCount,
			Statistics: stats,
		})
	}

	metrics.CyclesTotal.WithLabelValues("success").Inc()
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	return report, nil
}

// Detect выполняет только сбор и оценку аномальности
func (e *Engine) Detect(ctx context.Context, limit int) ([]models.ProcessSample, []models.AnomalyResult, error) {
	samples, err := e.sampler.Collect(ctx, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to collect samples: %w", err)
	}

	anomalies, err := e.detect(ctx, samples)
	if err != nil {
		return nil, nil, err
	}
	return samples, anomalies, nil
}

// detect ограничивает вызов модели таймаутом
func (e *Engine) detect(ctx context.Context, samples []models.ProcessSample) ([]models.AnomalyResult, error) {
	if e.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.modelTimeout)
		defer cancel()
	}
	return e.scorer.Detect(ctx, samples)
}
