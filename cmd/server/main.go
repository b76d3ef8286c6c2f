package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"procsight/internal/anomaly"
	"procsight/internal/classifier"
	"procsight/internal/collector"
	"procsight/internal/config"
	"procsight/internal/handlers"
	"procsight/internal/history"
	"procsight/internal/models"
	"procsight/internal/pipeline"
	"procsight/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	log.Println("Starting Process Classification Service...")

	cfg := config.Load()
	ctx := context.Background()

	// Хранилище документов: Redis если настроен, иначе файлы
	var blob store.BlobStore
	var pinger handlers.Pinger

	if cfg.RedisAddr != "" {
		redisBlob, err := store.NewRedisBlobStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		blob = redisBlob
		pinger = redisBlob
		log.Println("Connected to Redis")
	} else {
		fileBlob, err := store.NewFileBlobStore(cfg.DataDir)
		if err != nil {
			log.Fatalf("Failed to open data dir: %v", err)
		}
		blob = fileBlob
		log.Printf("Using file blob store in %s", cfg.DataDir)
	}
	defer blob.Close()

	labelStore := store.NewLabelStore(ctx, blob, cfg.LabelStoreKey)
	log.Printf("Label store loaded: %d labeled processes", labelStore.Count())

	cls := classifier.NewClassifier()
	applyClassifierConfig(ctx, blob, cfg.ClassifierConfigKey, cls, labelStore)

	provider := anomaly.NewZScoreProvider(cfg.ZScoreThreshold)
	scorer := anomaly.NewScorer(provider, cfg.RandomAnomalyRate)
	scorer.SetMinBatch(cfg.MinDetectBatch)
	log.Printf("Anomaly scorer ready: random rate %.2f, min batch %d",
		cfg.RandomAnomalyRate, cfg.MinDetectBatch)

	engine := pipeline.NewEngine(
		collector.NewSystemSampler(),
		cls,
		labelStore,
		scorer,
		history.NewHistory(cfg.HistorySize),
		cfg.ModelTimeout,
	)

	handler := handlers.NewHandler(engine, pinger)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/prometheus", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server listening on port %s\n", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

// applyClassifierConfig загружает документ конфигурации классификатора.
// Отсутствие или порча документа не фатальны: остаются значения по умолчанию
func applyClassifierConfig(ctx context.Context, blob store.BlobStore, key string,
	cls *classifier.Classifier, labels *store.LabelStore) {

	data, err := blob.Load(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		log.Println("No classifier configuration found, using defaults")
		return
	}
	if err != nil {
		log.Printf("Failed to load classifier configuration, using defaults: %v", err)
		return
	}

	var cfg models.ClassifierConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("Classifier configuration corrupt, using defaults: %v", err)
		return
	}

	cls.ApplyConfig(cfg)

	for tag, def := range cfg.TagDefinitions {
		if err := labels.AddTagDefinition(ctx, tag, def); err != nil {
			log.Printf("Failed to store tag definition %q: %v", tag, err)
		}
	}

	log.Printf("Classifier configuration applied from %q", key)
}
