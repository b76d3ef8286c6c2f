package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"procsight/internal/models"
)

// DefaultLabelKey ключ документа с метками в хранилище
const DefaultLabelKey = "process_labels"

// labelDocument формат документа для долговременного хранения
type labelDocument struct {
	Labels         map[string]models.LabelRecord   `json:"labels"`
	TagDefinitions map[string]models.TagDefinition `json:"tag_definitions"`
	LastSaved      time.Time                       `json:"last_saved"`
}

// defaultTagDefinitions встроенный каталог меток
func defaultTagDefinitions() map[string]models.TagDefinition {
	return map[string]models.TagDefinition{
		"high_priority":     {Color: "red", Description: "High priority process"},
		"monitor_closely":   {Color: "orange", Description: "Needs close monitoring"},
		"auto_restart":      {Color: "blue", Description: "Restart automatically"},
		"ignore_alert":      {Color: "gray", Description: "Suppress alerts"},
		"business_critical": {Color: "purple", Description: "Business critical"},
		"experimental":      {Color: "yellow", Description: "Experimental process"},
	}
}

// LabelStore единственный владелец пользовательских меток процессов.
// Все мутации сериализованы одним мьютексом и синхронно сохраняют
// весь документ в BlobStore
type LabelStore struct {
	mu      sync.RWMutex
	blob    BlobStore
	key     string
	records map[int32]models.LabelRecord
	catalog map[string]models.TagDefinition
}

// NewLabelStore создает хранилище меток и загружает сохраненный документ.
// Ошибка загрузки не фатальна: хранилище стартует пустым с каталогом
// по умолчанию
func NewLabelStore(ctx context.Context, blob BlobStore, key string) *LabelStore {
	if key == "" {
		key = DefaultLabelKey
	}

	s := &LabelStore{
		blob:    blob,
		key:     key,
		records: make(map[int32]models.LabelRecord),
		catalog: defaultTagDefinitions(),
	}

	s.load(ctx)
	return s
}

// load восстанавливает документ; каталог объединяется с каталогом
// по умолчанию, сохраненные записи имеют приоритет
func (s *LabelStore) load(ctx context.Context) {
	data, err := s.blob.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("Label store load failed, starting empty: %v", err)
		return
	}

	var doc labelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("Label store document corrupt, starting empty: %v", err)
		return
	}

	for pidStr, record := range doc.Labels {
		pid, err := strconv.ParseInt(pidStr, 10, 32)
		if err != nil || len(record.Tags) == 0 {
			continue
		}
		s.records[int32(pid)] = record
	}

	for tag, def := range doc.TagDefinitions {
		s.catalog[tag] = def
	}
}

// persistLocked синхронно перезаписывает весь документ; вызывается
// только под мьютексом записи
func (s *LabelStore) persistLocked(ctx context.Context) error {
	doc := labelDocument{
		Labels:         make(map[string]models.LabelRecord, len(s.records)),
		TagDefinitions: s.catalog,
		LastSaved:      time.Now(),
	}
	for pid, record := range s.records {
		doc.Labels[strconv.FormatInt(int64(pid), 10)] = record
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	if err := s.blob.Save(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to persist labels: %w", err)
	}
	return nil
}

// AddLabel добавляет метку процессу. Неизвестные метки допускаются
// с предупреждением. Ошибка сохранения возвращается вызывающему
func (s *LabelStore) AddLabel(ctx context.Context, pid int32, tag, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.catalog[tag]; !known {
		log.Printf("Tag %q is not in the catalog, attaching anyway", tag)
	}

	record, exists := s.records[pid]
	if !exists {
		record = models.LabelRecord{}
	}

	if !containsTag(record.Tags, tag) {
		record.Tags = append(record.Tags, tag)
	}
	if note != "" {
		record.Note = note
	}
	record.LastUpdated = time.Now()
	s.records[pid] = record

	return s.persistLocked(ctx)
}

// RemoveLabel снимает метку; последняя метка удаляет запись целиком
func (s *LabelStore) RemoveLabel(ctx context.Context, pid int32, tag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[pid]
	if !exists || !containsTag(record.Tags, tag) {
		return false, nil
	}

	tags := make([]string, 0, len(record.Tags)-1)
	for _, t := range record.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}

	if len(tags) == 0 {
		delete(s.records, pid)
	} else {
		record.Tags = tags
		record.LastUpdated = time.Now()
		s.records[pid] = record
	}

	return true, s.persistLocked(ctx)
}

// GetLabels возвращает метки процесса, пустой срез если их нет
func (s *LabelStore) GetLabels(pid int32) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[pid]
	if !exists {
		return []string{}
	}

	tags := make([]string, len(record.Tags))
	copy(tags, record.Tags)
	return tags
}

// GetRecord возвращает полную запись меток процесса
func (s *LabelStore) GetRecord(pid int32) (models.LabelRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[pid]
	if !exists {
		return models.LabelRecord{}, false
	}

	tags := make([]string, len(record.Tags))
	copy(tags, record.Tags)
	record.Tags = tags
	return record, true
}

// SearchByTag возвращает pid всех процессов с меткой, по возрастанию
func (s *LabelStore) SearchByTag(tag string) []int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pids []int32
	for pid, record := range s.records {
		if containsTag(record.Tags, tag) {
			pids = append(pids, pid)
		}
	}

	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// TagStatistics считает использование каждой метки по всем записям
func (s *LabelStore) TagStatistics() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, record := range s.records {
		for _, tag := range record.Tags {
			stats[tag]++
		}
	}
	return stats
}

// TagDefinitions возвращает копию каталога меток
func (s *LabelStore) TagDefinitions() map[string]models.TagDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	catalog := make(map[string]models.TagDefinition, len(s.catalog))
	for tag, def := range s.catalog {
		catalog[tag] = def
	}
	return catalog
}

// AddTagDefinition добавляет или переопределяет описание метки
func (s *LabelStore) AddTagDefinition(ctx context.Context, tag string, def models.TagDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if def.Color == "" {
		def.Color = "white"
	}
	s.catalog[tag] = def

	return s.persistLocked(ctx)
}

// Count возвращает число процессов с метками
func (s *LabelStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MergeWithClassification дополняет результаты классификации метками
func (s *LabelStore) MergeWithClassification(results []models.ClassificationResult) []models.ClassificationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	merged := make([]models.ClassificationResult, 0, len(results))
	for _, result := range results {
		record, exists := s.records[result.PID]
		if exists {
			tags := make([]string, len(record.Tags))
			copy(tags, record.Tags)
			result.ManualLabels = tags
			result.HasManualLabels = len(tags) > 0
		} else {
			result.ManualLabels = []string{}
			result.HasManualLabels = false
		}
		merged = append(merged, result)
	}
	return merged
}

// containsTag проверяет наличие метки в срезе
func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
