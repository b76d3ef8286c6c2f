package models

import "time"

// ProcessSample представляет снимок одного процесса за цикл наблюдения
type ProcessSample struct {
	PID     int32   `json:"pid"`
	Name    string  `json:"name"`
	CPU     float64 `json:"cpu"`
	Memory  float64 `json:"memory"`
	Threads int32   `json:"threads"`
	Nice    int32   `json:"nice"`
}

// Features возвращает вектор признаков фиксированного порядка [cpu, memory, threads, nice]
func (p ProcessSample) Features() []float64 {
	return []float64{p.CPU, p.Memory, float64(p.Threads), float64(p.Nice)}
}

// ClassificationResult результат классификации одного процесса
type ClassificationResult struct {
	PID             int32    `json:"pid"`
	Name            string   `json:"process_name"`
	CPU             float64  `json:"cpu_usage"`
	Memory          float64  `json:"memory_usage"`
	Category        string   `json:"category"`
	Tags            []string `json:"tags"`
	Confidence      float64  `json:"confidence"`
	ManualLabels    []string `json:"manual_labels,omitempty"`
	HasManualLabels bool     `json:"has_manual_labels"`
}

// LabelRecord пользовательские метки одного процесса
type LabelRecord struct {
	Tags        []string  `json:"tags"`
	Note        string    `json:"notes"`
	LastUpdated time.Time `json:"last_updated"`
}

// TagDefinition отображаемые метаданные метки
type TagDefinition struct {
	Color       string `json:"color"`
	Description string `json:"description"`
}

// Источник аномалии
const (
	SourceModel  = "model"
	SourceRandom = "random"
	SourceNormal = "normal"
)

// AnomalyResult результат оценки аномальности одного процесса
type AnomalyResult struct {
	PID       int32    `json:"pid"`
	IsAnomaly bool     `json:"anomaly"`
	Score     float64  `json:"score"`
	Source    string   `json:"source"`
	Reasons   []string `json:"reasons"`
}

// VisualHint подсказка для отображения процесса
type VisualHint struct {
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	Priority int    `json:"priority"`
}

// ProcessView итоговое представление процесса за цикл
type ProcessView struct {
	Sample         ProcessSample        `json:"sample"`
	Classification ClassificationResult `json:"classification"`
	ManualLabels   []string             `json:"manual_labels"`
	Anomaly        AnomalyResult        `json:"anomaly"`
	VisualHint     VisualHint           `json:"visual_hint"`
}

// Statistics сводная статистика одного цикла
type Statistics struct {
	ByCategory      map[string]int `json:"by_category"`
	TaggedProcesses int            `json:"tagged_processes"`
	CPUIntensive    int            `json:"cpu_intensive"`
	MemoryIntensive int            `json:"memory_intensive"`
}

// CustomRule пользовательское правило классификации
type CustomRule struct {
	Category        string   `json:"category"`
	Keywords        []string `json:"keywords"`
	CPUThreshold    *float64 `json:"cpu_threshold,omitempty"`
	MemoryThreshold *float64 `json:"memory_threshold,omitempty"`
	Weight          float64  `json:"weight,omitempty"`
}

// ClassifierConfig документ конфигурации классификатора
type ClassifierConfig struct {
	ProcessCategories     map[string][]string      `json:"process_categories,omitempty"`
	CustomRules           []CustomRule             `json:"custom_rules,omitempty"`
	PerformanceThresholds map[string]float64       `json:"performance_thresholds,omitempty"`
	TagDefinitions        map[string]TagDefinition `json:"tag_definitions,omitempty"`
	SystemSettings        map[string]any           `json:"system_settings,omitempty"`
}
