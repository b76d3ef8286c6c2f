package aggregate

import "procsight/internal/models"

// categoryColors цвет по категории
var categoryColors = map[string]string{
	"system_critical":   "red",
	"network_services":  "blue",
	"user_applications": "green",
	"development_tools": "cyan",
	"security_services": "orange",
	"cpu_intensive":     "orange",
	"memory_intensive":  "purple",
}

// categoryIcons глиф по категории
var categoryIcons = map[string]string{
	"system_critical":    "🔴",
	"network_services":   "🌐",
	"user_applications":  "💻",
	"background_workers": "⚙️",
	"development_tools":  "🔧",
	"security_services":  "🔒",
	"cpu_intensive":      "🔥",
	"memory_intensive":   "💾",
	"idle_process":       "💤",
	"unknown":            "❓",
}

// BuildView собирает итоговое представление процесса из снимка,
// классификации, меток и результата оценки аномальности
func BuildView(sample models.ProcessSample, classification models.ClassificationResult,
	labels []string, anomaly models.AnomalyResult) models.ProcessView {

	if labels == nil {
		labels = []string{}
	}

	return models.ProcessView{
		Sample:         sample,
		Classification: classification,
		ManualLabels:   labels,
		Anomaly:        anomaly,
		VisualHint: models.VisualHint{
			Color:    hintColor(classification.Category, sample.CPU, sample.Memory, labels),
			Icon:     hintIcon(classification.Category),
			Priority: hintPriority(classification.Category, sample.CPU, labels),
		},
	}
}

// hintColor определяет цвет: метки пользователя имеют приоритет над
// категорией, серый цвет повышается по нагрузке
func hintColor(category string, cpu, mem float64, labels []string) string {
	color := "gray"

	switch {
	case hasLabel(labels, "high_priority"):
		color = "darkred"
	case hasLabel(labels, "monitor_closely"):
		color = "orange"
	default:
		if mapped, ok := categoryColors[category]; ok {
			color = mapped
		}
	}

	if cpu > 70 && color == "gray" {
		color = "orange"
	}
	if mem > 50 && color == "gray" {
		color = "purple"
	}

	return color
}

// hintIcon возвращает глиф категории, для неизвестных - знак вопроса
func hintIcon(category string) string {
	if icon, ok := categoryIcons[category]; ok {
		return icon
	}
	return "❓"
}

// hintPriority вычисляет приоритет 1..10 от базового значения 5
func hintPriority(category string, cpu float64, labels []string) int {
	priority := 5

	if hasLabel(labels, "high_priority") {
		priority = 9
	} else if hasLabel(labels, "business_critical") {
		priority = 8
	}

	if category == "system_critical" && priority < 9 {
		priority = 9
	}
	if cpu > 80 && priority < 8 {
		priority = 8
	}

	if priority > 10 {
		priority = 10
	}
	return priority
}

// Summarize считает сводную статистику батча представлений
func Summarize(views []models.ProcessView) models.Statistics {
	stats := models.Statistics{
		ByCategory: make(map[string]int),
	}

	for _, view := range views {
		stats.ByCategory[view.Classification.Category]++

		if len(view.ManualLabels) > 0 {
			stats.TaggedProcesses++
		}
		if view.Sample.CPU > 70 {
			stats.CPUIntensive++
		}
		if view.Sample.Memory > 30 {
			stats.MemoryIntensive++
		}
	}

	return stats
}

// hasLabel проверяет наличие метки в списке
func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
