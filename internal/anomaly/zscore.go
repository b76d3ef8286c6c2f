package anomaly

import (
	"context"
	"math"
)

// DefaultZScoreThreshold порог z-score для пометки выброса
const DefaultZScoreThreshold = 2.0

// ZScoreProvider встроенная модель выбросов: z-score каждого признака
// относительно распределения внутри батча. Оценка убывает с ростом
// максимального |z|; ниже нуля процесс считается выбросом
type ZScoreProvider struct {
	threshold float64
}

// NewZScoreProvider создает провайдер с заданным порогом
func NewZScoreProvider(threshold float64) *ZScoreProvider {
	if threshold <= 0 {
		threshold = DefaultZScoreThreshold
	}
	return &ZScoreProvider{threshold: threshold}
}

// PredictBatch оценивает весь батч за один вызов
func (z *ZScoreProvider) PredictBatch(ctx context.Context, features [][]float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	n := len(features)
	prediction := Prediction{
		Outliers: make([]bool, n),
		Scores:   make([]float64, n),
	}
	if n == 0 {
		return prediction, nil
	}

	width := len(features[0])
	means := make([]float64, width)
	stdDevs := make([]float64, width)

	for col := 0; col < width; col++ {
		column := make([]float64, 0, n)
		for _, row := range features {
			column = append(column, row[col])
		}
		means[col] = calculateAverage(column)
		stdDevs[col] = calculateStdDev(column, means[col])
	}

	for i, row := range features {
		maxZ := 0.0
		for col, value := range row {
			if stdDevs[col] == 0 {
				continue
			}
			zScore := math.Abs((value - means[col]) / stdDevs[col])
			if zScore > maxZ {
				maxZ = zScore
			}
		}

		// Нормируем так, чтобы порог соответствовал нулю:
		// положительная оценка - в пределах нормы, отрицательная - выброс
		prediction.Scores[i] = (z.threshold - maxZ) / z.threshold
		prediction.Outliers[i] = maxZ > z.threshold
	}

	return prediction, nil
}

// calculateAverage вычисляет среднее значение
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// calculateStdDev вычисляет стандартное отклонение
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
