// Package llm wraps Genkit behind the two capabilities the engine needs:
// text-to-vector embedding and prompt-to-text generation. Everything above
// this package depends on the small Embedder/Generator interfaces, never on
// Genkit types.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/studyowl/studyowl/internal/config"
)

// Embedder maps text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator maps a prompt to generated text. GenerateWith selects a
// specific model (the classifier runs on a smaller one).
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWith(ctx context.Context, model, prompt string) (string, error)
}

// Gateway implements Embedder and Generator on top of a Genkit instance.
type Gateway struct {
	g        *genkit.Genkit
	embedder ai.Embedder
	provider string
	model    string
	logger   *slog.Logger
}

// New initializes Genkit with the configured provider plugin and looks up
// the embedder. GEMINI_API_KEY is read by the googleai plugin directly.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var g *genkit.Genkit
	var embedder ai.Embedder

	switch cfg.Provider {
	case config.ProviderOllama:
		plugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(plugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.ModelName, Type: "chat"}, nil)
		if cfg.ClassifierModel != "" && cfg.ClassifierModel != cfg.ModelName {
			plugin.DefineModel(g, ollama.ModelDefinition{Name: cfg.ClassifierModel, Type: "chat"}, nil)
		}
		plugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		embedder = ollama.Embedder(g, cfg.OllamaHost)
		logger.Info("initialized genkit", "provider", config.ProviderOllama,
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	default: // googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		logger.Info("initialized genkit", "provider", config.ProviderGoogleAI,
			"model", cfg.ModelName)
	}

	return &Gateway{
		g:        g,
		embedder: embedder,
		provider: cfg.Provider,
		model:    cfg.ModelName,
		logger:   logger,
	}, nil
}

// Embed maps a single text to an L2-normalized vector. Normalization makes
// cosine distance a plain inner product downstream.
func (gw *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := gw.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("embedding text: empty embedding returned")
	}

	vec := resp.Embeddings[0].Embedding
	Normalize(vec)
	return vec, nil
}

// Generate runs a one-shot generation on the configured model.
func (gw *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	return gw.GenerateWith(ctx, gw.model, prompt)
}

// GenerateWith runs a one-shot generation on a specific model.
func (gw *Gateway) GenerateWith(ctx context.Context, model, prompt string) (string, error) {
	resp, err := genkit.Generate(ctx, gw.g,
		ai.WithModelName(gw.qualifiedModelName(model)),
		ai.WithPrompt(prompt),
	)
	if err != nil {
		return "", fmt.Errorf("generating text: %w", err)
	}
	return resp.Text(), nil
}

// qualifiedModelName returns the provider-qualified name Genkit expects,
// e.g. "googleai/gemini-2.5-flash" or "ollama/llama3.2".
func (gw *Gateway) qualifiedModelName(model string) string {
	for i := 0; i < len(model); i++ {
		if model[i] == '/' {
			return model // already qualified
		}
	}
	return gw.provider + "/" + model
}

// Normalize scales vec to unit L2 norm in place. A zero vector is left
// untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
