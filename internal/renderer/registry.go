package renderer

import (
	"context"
	"net/http"
	"strings"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/infra/credentials"
	"alfie/internal/storage"
)

// NewRegistry wires the Gemini-backed renderer for every dispatchable job
// type. The API key comes from the environment first, then the shared
// credentials store; an empty key is not fatal because the renderer falls
// back to synthetic assets.
func NewRegistry(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, store *storage.FileStore, logger infra.Logger) (Registry, error) {
	gemini, err := NewGemini(GeminiOptions{
		APIKey:     resolveAPIKey(ctx, cfg, runner, logger),
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		Timeout:    cfg.RenderTimeout,
		HTTPClient: &http.Client{Timeout: cfg.RenderTimeout},
		Logger:     &logger,
		Store:      store,
	})
	if err != nil {
		return nil, err
	}
	return Registry{
		domain.JobTypeRenderImage:    gemini,
		domain.JobTypeRenderCarousel: gemini,
		domain.JobTypeRenderVideo:    gemini,
		domain.JobTypeGenerateText:   gemini,
	}, nil
}

func resolveAPIKey(ctx context.Context, cfg *infra.Config, runner *infra.SQLRunner, logger infra.Logger) string {
	if key := strings.TrimSpace(cfg.GeminiAPIKey); key != "" {
		return key
	}
	key, err := credentials.NewStore(runner).GeminiAPIKey(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("renderer: failed to load gemini api key from store")
		return ""
	}
	return key
}
