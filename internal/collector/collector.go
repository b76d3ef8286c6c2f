package collector

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"

	"procsight/internal/models"
)

// DefaultLimit ограничение числа процессов за один сбор
const DefaultLimit = 100

// Sampler источник снимков процессов
type Sampler interface {
	Collect(ctx context.Context, limit int) ([]models.ProcessSample, error)
}

// SystemSampler собирает снимки живых процессов через gopsutil
type SystemSampler struct{}

// NewSystemSampler создает системный сборщик
func NewSystemSampler() *SystemSampler {
	return &SystemSampler{}
}

// Collect возвращает до limit снимков. Процессы, исчезнувшие или
// недоступные во время опроса, пропускаются
func (s *SystemSampler) Collect(ctx context.Context, limit int) ([]models.ProcessSample, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	samples := make([]models.ProcessSample, 0, limit)
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}

		cpu, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			cpu = 0
		}

		mem, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			mem = 0
		}

		threads, err := p.NumThreadsWithContext(ctx)
		if err != nil {
			threads = 0
		}

		nice, err := p.NiceWithContext(ctx)
		if err != nil {
			nice = 0
		}

		samples = append(samples, models.ProcessSample{
			PID:     p.Pid,
			Name:    name,
			CPU:     cpu,
			Memory:  float64(mem),
			Threads: threads,
			Nice:    nice,
		})

		if len(samples) >= limit {
			break
		}
	}

	return samples, nil
}
