package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procsight/internal/models"
)

func sample(name string, cpu, mem float64) models.ProcessSample {
	return models.ProcessSample{PID: 1, Name: name, CPU: cpu, Memory: mem}
}

func TestClassifyKeywordMatch(t *testing.T) {
	c := NewClassifier()

	result := c.Classify(sample("sshd", 2, 1))

	assert.Equal(t, "network_services", result.Category)
	assert.Equal(t, 1.0, result.Confidence)
	// Ни одна из взаимоисключающих веток не срабатывает при cpu>=1,
	// но независимый предикат low_resource все равно дает метку
	assert.Equal(t, []string{"low_resource"}, result.Tags)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	c := NewClassifier()

	result := c.Classify(sample("NGINX-master", 10, 10))

	assert.Equal(t, "network_services", result.Category)
}

func TestClassifyIdleProcess(t *testing.T) {
	c := NewClassifier()

	result := c.Classify(sample("mystery", 0.5, 0.5))

	assert.Equal(t, "idle_process", result.Category)
	assert.Contains(t, result.Tags, "low_resource")
	assert.Positive(t, result.Confidence)
}

func TestClassifyCPUIntensiveBranch(t *testing.T) {
	c := NewClassifier()

	result := c.Classify(sample("cruncher", 60, 2))

	assert.Equal(t, "cpu_intensive", result.Category)
	assert.Contains(t, result.Tags, "cpu_intensive")
}

func TestClassifyMemoryBranchDoesNotScore(t *testing.T) {
	c := NewClassifier()

	// Ветка памяти только предлагает метку, очков не добавляет
	result := c.Classify(sample("hog", 10, 40))

	assert.Equal(t, CategoryUnknown, result.Category)
	assert.Zero(t, result.Confidence)
	assert.Contains(t, result.Tags, "memory_intensive")
}

func TestClassifyStableBranch(t *testing.T) {
	c := NewClassifier()

	result := c.Classify(sample("steady", 10, 10))

	assert.Contains(t, result.Tags, "stable_process")
}

func TestExclusiveBranchesFireOnce(t *testing.T) {
	c := NewClassifier()

	// cpu>50 перекрывает ветку памяти даже при высоком mem
	result := c.Classify(sample("busy", 60, 40))

	assert.Contains(t, result.Tags, "cpu_intensive")
	// memory_intensive добавляется независимым предикатом (mem>30),
	// но не веткой
	assert.Contains(t, result.Tags, "memory_intensive")
	assert.Equal(t, "cpu_intensive", result.Category)
}

func TestConfidenceZeroIffUnknown(t *testing.T) {
	c := NewClassifier()

	known := c.Classify(sample("nginx", 10, 10))
	unknown := c.Classify(sample("zzz", 3, 3))

	require.NotEqual(t, CategoryUnknown, known.Category)
	assert.Positive(t, known.Confidence)

	require.Equal(t, CategoryUnknown, unknown.Category)
	assert.Zero(t, unknown.Confidence)
}

func TestConfidenceNormalized(t *testing.T) {
	c := NewClassifier()

	// "python" дает development_tools +1, idle дает idle_process +2
	result := c.Classify(sample("python", 0.1, 0.1))

	assert.Equal(t, "idle_process", result.Category)
	assert.InDelta(t, 0.67, result.Confidence, 0.001)
}

func TestTieBreakFirstTouched(t *testing.T) {
	c := NewClassifier()

	// systemd-journald: "systemd" и "journald" не пересекаются,
	// но имя содержит и "systemd" (system_critical). Добавим правило
	// с тем же весом для другой категории: побеждает первая по порядку
	c.AddCustomRule(models.CustomRule{
		Category: "custom_cat",
		Keywords: []string{"systemd"},
		Weight:   1,
	})

	result := c.Classify(sample("systemd", 10, 10))

	assert.Equal(t, "system_critical", result.Category)
}

func TestCustomRuleThresholds(t *testing.T) {
	c := NewClassifier()
	cpuThreshold := 50.0
	c.AddCustomRule(models.CustomRule{
		Category:     "heavy_java",
		Keywords:     []string{"java"},
		CPUThreshold: &cpuThreshold,
		Weight:       5,
	})

	below := c.Classify(sample("java", 30, 10))
	above := c.Classify(sample("java", 55, 10))

	assert.Equal(t, "development_tools", below.Category)
	assert.Equal(t, "heavy_java", above.Category)
}

func TestMalformedCustomRuleSkipped(t *testing.T) {
	c := NewClassifier()
	c.AddCustomRule(models.CustomRule{Category: "", Keywords: []string{"x"}})
	c.AddCustomRule(models.CustomRule{Category: "no_keywords"})

	result := c.Classify(sample("x-server", 10, 10))

	assert.Equal(t, CategoryUnknown, result.Category)
}

func TestCustomRuleDefaultWeight(t *testing.T) {
	c := NewClassifier()
	c.AddCustomRule(models.CustomRule{Category: "weighted", Keywords: []string{"zzz"}})

	result := c.Classify(sample("zzz", 10, 10))

	assert.Equal(t, "weighted", result.Category)
	assert.Equal(t, 1.0, result.Confidence)
}

func TestApplyConfigMergesCategories(t *testing.T) {
	c := NewClassifier()
	c.ApplyConfig(models.ClassifierConfig{
		ProcessCategories: map[string][]string{
			"media_servers": {"plex", "jellyfin"},
		},
	})

	result := c.Classify(sample("plex", 10, 10))
	assert.Equal(t, "media_servers", result.Category)

	// Существующие категории не теряются
	existing := c.Classify(sample("sshd", 10, 10))
	assert.Equal(t, "network_services", existing.Category)
}

func TestApplyConfigThresholdOverrides(t *testing.T) {
	c := NewClassifier()
	c.ApplyConfig(models.ClassifierConfig{
		PerformanceThresholds: map[string]float64{
			"cpu_intensive": 40,
		},
	})

	result := c.Classify(sample("unknown-proc", 45, 10))

	assert.Contains(t, result.Tags, "cpu_intensive")
}

func TestClassifyBatchPreservesOrder(t *testing.T) {
	c := NewClassifier()
	samples := []models.ProcessSample{
		{PID: 10, Name: "sshd", CPU: 2, Memory: 1},
		{PID: 20, Name: "chrome", CPU: 15, Memory: 12},
	}

	results := c.ClassifyBatch(samples)

	require.Len(t, results, 2)
	assert.Equal(t, int32(10), results[0].PID)
	assert.Equal(t, int32(20), results[1].PID)
	assert.Equal(t, "user_applications", results[1].Category)
}

func TestTagsDeduplicated(t *testing.T) {
	c := NewClassifier()

	// Ветка cpu>50 и предикат cpu_intensive предлагают одну метку
	result := c.Classify(sample("burner", 90, 2))

	seen := map[string]int{}
	for _, tag := range result.Tags {
		seen[tag]++
	}
	assert.Equal(t, 1, seen["cpu_intensive"])
}
