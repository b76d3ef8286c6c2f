package classifier

import (
	"log"
	"math"
	"sort"
	"strings"

	"procsight/internal/models"
)

// CategoryUnknown категория для процессов без единого совпадения
const CategoryUnknown = "unknown"

// Thresholds пороги для автоматических меток производительности
type Thresholds struct {
	CPUIntensive    float64
	MemoryIntensive float64
	LowResourceCPU  float64
	LowResourceMem  float64
	StableCPUMin    float64
	StableCPUMax    float64
	StableMemMin    float64
	StableMemMax    float64
}

// DefaultThresholds возвращает пороги по умолчанию
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPUIntensive:    70,
		MemoryIntensive: 30,
		LowResourceCPU:  5,
		LowResourceMem:  5,
		StableCPUMin:    5,
		StableCPUMax:    30,
		StableMemMin:    5,
		StableMemMax:    20,
	}
}

// Classifier классификатор процессов по имени и профилю ресурсов
type Classifier struct {
	categories    map[string][]string
	categoryOrder []string
	thresholds    Thresholds
	customRules   []models.CustomRule
}

// NewClassifier создает классификатор со словарем категорий по умолчанию
func NewClassifier() *Classifier {
	c := &Classifier{
		categories: make(map[string][]string),
		thresholds: DefaultThresholds(),
	}

	defaults := []struct {
		name     string
		keywords []string
	}{
		{"system_critical", []string{"systemd", "init", "kthreadd", "udevd", "dbus"}},
		{"network_services", []string{"sshd", "nginx", "apache", "postgres", "mysql", "redis"}},
		{"user_applications", []string{"chrome", "firefox", "code", "pycharm", "sublime", "thunderbird"}},
		{"background_workers", []string{"cron", "atd", "worker", "celery", "supervisord"}},
		{"development_tools", []string{"python", "java", "node", "golang", "docker"}},
		{"security_services", []string{"fail2ban", "firewalld", "auditd", "clamav"}},
	}

	for _, d := range defaults {
		c.categories[d.name] = d.keywords
		c.categoryOrder = append(c.categoryOrder, d.name)
	}

	return c
}

// Thresholds возвращает текущие пороги
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// AddCustomRule добавляет пользовательское правило классификации
func (c *Classifier) AddCustomRule(rule models.CustomRule) {
	c.customRules = append(c.customRules, rule)
}

// ApplyConfig применяет документ конфигурации: категории дополняются,
// правила заменяются, пороги переопределяются по имени
func (c *Classifier) ApplyConfig(cfg models.ClassifierConfig) {
	names := make([]string, 0, len(cfg.ProcessCategories))
	for name := range cfg.ProcessCategories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, exists := c.categories[name]; !exists {
			c.categoryOrder = append(c.categoryOrder, name)
		}
		c.categories[name] = cfg.ProcessCategories[name]
	}

	if cfg.CustomRules != nil {
		c.customRules = cfg.CustomRules
	}

	if cfg.PerformanceThresholds != nil {
		c.applyThresholds(cfg.PerformanceThresholds)
	}
}

// applyThresholds переопределяет пороги по именам из документа конфигурации
func (c *Classifier) applyThresholds(overrides map[string]float64) {
	if v, ok := overrides["cpu_intensive"]; ok {
		c.thresholds.CPUIntensive = v
	}
	if v, ok := overrides["memory_intensive"]; ok {
		c.thresholds.MemoryIntensive = v
	}
	if v, ok := overrides["low_resource_cpu"]; ok {
		c.thresholds.LowResourceCPU = v
	}
	if v, ok := overrides["low_resource_memory"]; ok {
		c.thresholds.LowResourceMem = v
	}
	if v, ok := overrides["stable_cpu_min"]; ok {
		c.thresholds.StableCPUMin = v
	}
	if v, ok := overrides["stable_cpu_max"]; ok {
		c.thresholds.StableCPUMax = v
	}
	if v, ok := overrides["stable_memory_min"]; ok {
		c.thresholds.StableMemMin = v
	}
	if v, ok := overrides["stable_memory_max"]; ok {
		c.thresholds.StableMemMax = v
	}
}

// scoreboard накапливает очки категорий, сохраняя порядок первого появления
type scoreboard struct {
	scores map[string]float64
	order  []string
}

func newScoreboard() *scoreboard {
	return &scoreboard{scores: make(map[string]float64)}
}

func (s *scoreboard) add(category string, weight float64) {
	if _, seen := s.scores[category]; !seen {
		s.order = append(s.order, category)
	}
	s.scores[category] += weight
}

// winner возвращает категорию с максимальным счетом; при равенстве
// побеждает категория, получившая очки раньше
func (s *scoreboard) winner() (string, float64, float64) {
	var best string
	var bestScore, total float64

	for _, category := range s.order {
		score := s.scores[category]
		total += score
		if best == "" || score > bestScore {
			best = category
			bestScore = score
		}
	}

	return best, bestScore, total
}

// Classify классифицирует один процесс по имени, профилю ресурсов и
// пользовательским правилам. Чистая функция от снимка и настроек
func (c *Classifier) Classify(sample models.ProcessSample) models.ClassificationResult {
	board := newScoreboard()
	var suggested []string

	// 1. Совпадение ключевых слов с именем процесса
	name := strings.ToLower(sample.Name)
	for _, category := range c.categoryOrder {
		for _, keyword := range c.categories[category] {
			if strings.Contains(name, strings.ToLower(keyword)) {
				board.add(category, 1)
			}
		}
	}

	// 2. Профиль использования ресурсов: срабатывает ровно одна ветка
	switch {
	case sample.CPU < 1 && sample.Memory < 1:
		board.add("idle_process", 2)
		suggested = appendUnique(suggested, "low_resource")
	case sample.CPU > 50:
		board.add("cpu_intensive", 2)
		suggested = appendUnique(suggested, "cpu_intensive")
	case sample.Memory > 30:
		suggested = appendUnique(suggested, "memory_intensive")
	case sample.CPU >= 5 && sample.CPU <= 30 && sample.Memory >= 5 && sample.Memory <= 20:
		suggested = appendUnique(suggested, "stable_process")
	}

	// 3. Пользовательские правила
	for _, rule := range c.customRules {
		if rule.Category == "" || len(rule.Keywords) == 0 {
			log.Printf("Skipping malformed custom rule: %+v", rule)
			continue
		}
		if matchRule(rule, name, sample.CPU, sample.Memory) {
			weight := rule.Weight
			if weight == 0 {
				weight = 1
			}
			board.add(rule.Category, weight)
		}
	}

	// 4. Итоговая категория и уверенность
	category := CategoryUnknown
	confidence := 0.0
	if winner, score, total := board.winner(); winner != "" {
		category = winner
		confidence = math.Round(score/total*100) / 100
	}

	// 5. Метки производительности, независимо от веток выше
	for _, tag := range c.performanceTags(sample.CPU, sample.Memory) {
		suggested = appendUnique(suggested, tag)
	}

	return models.ClassificationResult{
		PID:        sample.PID,
		Name:       sample.Name,
		CPU:        sample.CPU,
		Memory:     sample.Memory,
		Category:   category,
		Tags:       suggested,
		Confidence: confidence,
	}
}

// ClassifyBatch классифицирует список процессов, сохраняя порядок
func (c *Classifier) ClassifyBatch(samples []models.ProcessSample) []models.ClassificationResult {
	results := make([]models.ClassificationResult, 0, len(samples))
	for _, sample := range samples {
		results = append(results, c.Classify(sample))
	}
	return results
}

// performanceTags вычисляет автоматические метки производительности
// в фиксированном порядке таблицы порогов
func (c *Classifier) performanceTags(cpu, mem float64) []string {
	t := c.thresholds
	var tags []string

	if cpu > t.CPUIntensive {
		tags = append(tags, "cpu_intensive")
	}
	if mem > t.MemoryIntensive {
		tags = append(tags, "memory_intensive")
	}
	if cpu < t.LowResourceCPU && mem < t.LowResourceMem {
		tags = append(tags, "low_resource")
	}
	if cpu >= t.StableCPUMin && cpu <= t.StableCPUMax && mem >= t.StableMemMin && mem <= t.StableMemMax {
		tags = append(tags, "stable_process")
	}

	return tags
}

// matchRule проверяет, срабатывает ли правило для процесса
func matchRule(rule models.CustomRule, loweredName string, cpu, mem float64) bool {
	matched := false
	for _, keyword := range rule.Keywords {
		if strings.Contains(loweredName, strings.ToLower(keyword)) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	if rule.CPUThreshold != nil && cpu <= *rule.CPUThreshold {
		return false
	}
	if rule.MemoryThreshold != nil && mem <= *rule.MemoryThreshold {
		return false
	}

	return true
}

// appendUnique добавляет метку, если ее еще нет в списке
func appendUnique(tags []string, tag string) []string {
	for _, existing := range tags {
		if existing == tag {
			return tags
		}
	}
	return append(tags, tag)
}
