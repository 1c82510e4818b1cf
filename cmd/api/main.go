package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"

	"arxivrag/internal/api"
	"arxivrag/internal/config"
	"arxivrag/internal/providers"
	"arxivrag/internal/storage"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

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

	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer tc.Close()

	h := api.NewServer(cfg, store, pm, tc)
	log.Printf("arxivrag api listening on %s store=%s embed_providers=%q llm_providers=%q", cfg.APIAddr, cfg.StoreBackend, cfg.EmbedProviders, cfg.LLMProviders)
	if err := http.ListenAndServe(cfg.APIAddr, h.Routes()); err != nil {
		log.Fatal(err)
	}
}
