package history

import (
	"sync"
	"time"

	"procsight/internal/models"
)

// Entry сводка одного завершенного цикла
type Entry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Processes  int               `json:"processes"`
	Anomalies  int               `json:"anomalies"`
	Statistics models.Statistics `json:"statistics"`
}

// History скользящее окно сводок последних циклов
type History struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

// NewHistory создает окно заданного размера
func NewHistory(maxSize int) *History {
	if maxSize < 1 {
		maxSize = 1
	}
	return &History{
		entries: make([]Entry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record добавляет сводку цикла, вытесняя самую старую при переполнении
func (h *History) Record(entry Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entry)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[1:]
	}
}

// Recent возвращает последние n сводок, от старых к новым
func (h *History) Recent(n int) []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || n > len(h.entries) {
		n = len(h.entries)
	}

	recent := make([]Entry, n)
	copy(recent, h.entries[len(h.entries)-n:])
	return recent
}

// Len возвращает число сохраненных сводок
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
