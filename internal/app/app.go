// Package app wires the application together: configuration in, a ready
// answering engine out.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/studyowl/studyowl/internal/cache"
	"github.com/studyowl/studyowl/internal/classifier"
	"github.com/studyowl/studyowl/internal/config"
	"github.com/studyowl/studyowl/internal/engine"
	"github.com/studyowl/studyowl/internal/kb"
	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/log"
	"github.com/studyowl/studyowl/internal/memory"
	"github.com/studyowl/studyowl/internal/source"
)

// App holds the assembled application.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Gateway   *llm.Gateway
	Knowledge *kb.Store
	Cache     *cache.Cache
	Queries   *memory.QueryLog
	Engine    *engine.Engine
}

// Setup builds every component from the configuration. The returned App owns
// no background goroutines; it lives as long as the process.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	gateway, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing model gateway: %w", err)
	}

	knowledge, err := kb.Open(cfg.DataDir, cfg.EmbedderDim, logger)
	if err != nil {
		return nil, err
	}
	responseCache, err := cache.Open(cfg.DataDir, cfg.EmbedderDim, float32(cfg.CacheThreshold), gateway, logger)
	if err != nil {
		return nil, err
	}
	queries, err := memory.Open(cfg.DataDir, cfg.EmbedderDim, gateway, logger)
	if err != nil {
		return nil, err
	}

	adapters := []source.Adapter{
		source.NewLocal(knowledge, gateway, cfg.TopK, logger),
		source.NewStackOverflow(source.StackOverflowConfig{
			BaseURL: cfg.StackExchangeBaseURL,
			Site:    cfg.StackExchangeSite,
			Key:     cfg.StackExchangeKey,
			Backoff: cfg.StackBackoff,
			Timeout: cfg.SourceTimeout,
		}, logger),
		source.NewWikipedia(source.WikipediaConfig{
			BaseURL: cfg.WikipediaBaseURL,
			Timeout: cfg.SourceTimeout,
		}, logger),
		source.NewYouTube(source.YouTubeConfig{
			BaseURL:    cfg.YouTubeBaseURL,
			Key:        cfg.YouTubeKey,
			MaxResults: cfg.YouTubeMaxResults,
			Timeout:    cfg.SourceTimeout,
		}, logger),
	}

	eng := engine.New(engine.Params{
		Classifier:    classifier.New(gateway, cfg.ClassifierModelName(), logger),
		Adapters:      adapters,
		Cache:         responseCache,
		Queries:       queries,
		Generator:     gateway,
		SourceTimeout: cfg.SourceTimeout,
		Logger:        logger,
	})

	logger.Info("application ready",
		"provider", cfg.Provider,
		"model", cfg.ModelName,
		"knowledge_documents", knowledge.Size(),
		"cached_answers", responseCache.Size(),
	)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Gateway:   gateway,
		Knowledge: knowledge,
		Cache:     responseCache,
		Queries:   queries,
		Engine:    eng,
	}, nil
}

// Stats reports store sizes for the readiness probe.
func (a *App) Stats() map[string]int {
	return map[string]int{
		"knowledge": a.Knowledge.Size(),
		"cache":     a.Cache.Size(),
		"queries":   a.Queries.Size(),
	}
}
