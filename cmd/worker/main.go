package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"arxivrag/internal/activities"
	"arxivrag/internal/arxiv"
	"arxivrag/internal/config"
	"arxivrag/internal/providers"
	"arxivrag/internal/storage"
	"arxivrag/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}

	source := arxiv.NewClient(
		arxiv.WithBaseURL(cfg.ArxivBaseURL),
		arxiv.WithPageCap(cfg.MaxResultsCap),
	)
	activities.Register(w, activities.New(cfg, store, source, pm))

	log.Printf("arxivrag worker listening on %s queue=%s store=%s embed_providers=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, cfg.StoreBackend, cfg.EmbedProviders)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
