package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound документ отсутствует в хранилище
var ErrNotFound = errors.New("blob not found")

// BlobStore долговременное хранилище JSON-документов целиком
type BlobStore interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// RedisBlobStore хранилище документов поверх Redis
type RedisBlobStore struct {
	client *redis.Client
}

// NewRedisBlobStore создает хранилище и проверяет подключение
func NewRedisBlobStore(addr, password string, db int) (*RedisBlobStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBlobStore{client: client}, nil
}

// Load читает документ целиком
func (r *RedisBlobStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", key, err)
	}
	return data, nil
}

// Save перезаписывает документ целиком, без TTL
func (r *RedisBlobStore) Save(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}

// Ping проверяет доступность Redis
func (r *RedisBlobStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close закрывает соединение с Redis
func (r *RedisBlobStore) Close() error {
	return r.client.Close()
}

// Stats возвращает статистику пула соединений
func (r *RedisBlobStore) Stats() map[string]any {
	stats := r.client.PoolStats()

	return map[string]any{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

// FileBlobStore хранилище документов в каталоге на диске,
// используется когда Redis не настроен
type FileBlobStore struct {
	dir string
}

// NewFileBlobStore создает файловое хранилище в указанном каталоге
func NewFileBlobStore(dir string) (*FileBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &FileBlobStore{dir: dir}, nil
}

func (f *FileBlobStore) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load читает документ из файла
func (f *FileBlobStore) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %q: %w", key, err)
	}
	return data, nil
}

// Save атомарно перезаписывает файл документа через rename
func (f *FileBlobStore) Save(_ context.Context, key string, data []byte) error {
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	if err := os.Rename(tmp, f.path(key)); err != nil {
		return fmt.Errorf("failed to save %q: %w", key, err)
	}
	return nil
}

// Close ничего не освобождает для файлового хранилища
func (f *FileBlobStore) Close() error {
	return nil
}
