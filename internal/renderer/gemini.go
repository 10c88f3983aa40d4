package renderer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alfie/internal/domain"
	"alfie/internal/infra"
	"alfie/internal/storage"
)

// GeminiOptions controls how the Gemini renderer is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
	Store      *storage.FileStore
}

// Gemini renders jobs through the Gemini generateContent API. When no API
// key is configured it falls back to deterministic synthetic assets so the
// worker stays operational in local and CI environments.
type Gemini struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *infra.Logger
	fallback   *Synthetic
	store      *storage.FileStore
}

func NewGemini(opts GeminiOptions) (*Gemini, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("gemini: asset store is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Gemini{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		timeout:    timeout,
		httpClient: client,
		logger:     opts.Logger,
		fallback:   NewSynthetic(opts.Store),
		store:      opts.Store,
	}, nil
}

// Model returns the configured model identifier.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Render(ctx context.Context, job domain.Job) (domain.RenderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.apiKey == "" {
		if g.logger != nil {
			g.logger.Debug().Str("job_id", job.ID).Msg("gemini: api key missing, using synthetic asset generation")
		}
		return g.fallback.Render(ctx, job)
	}

	prompt, err := promptForJob(job)
	if err != nil {
		return domain.RenderResult{}, domain.NonRetryable(err)
	}

	part, err := g.generateContent(ctx, prompt)
	if err != nil {
		return domain.RenderResult{}, err
	}
	return g.persistPart(ctx, job, part)
}

type geminiPart struct {
	Text       string `json:"text,omitempty"`
	InlineData *struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	} `json:"inlineData,omitempty"`
	FileData *struct {
		MimeType string `json:"mimeType,omitempty"`
		FileURI  string `json:"fileUri,omitempty"`
	} `json:"fileData,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

func (g *Gemini) generateContent(ctx context.Context, prompt string) (geminiPart, error) {
	body, _ := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"role": "user", "parts": []map[string]any{{"text": prompt}}},
		},
	})
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return geminiPart{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return geminiPart{}, fmt.Errorf("%w: %v", domain.ErrRendererFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return geminiPart{}, fmt.Errorf("%w: read response: %v", domain.ErrRendererFailure, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return geminiPart{}, fmt.Errorf("%w: decode response: %v", domain.ErrRendererFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: gemini status %d: %s", domain.ErrRendererFailure, resp.StatusCode, parsed.Error.Message)
		if retryableStatus(resp.StatusCode) {
			return geminiPart{}, err
		}
		return geminiPart{}, domain.NonRetryable(err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return geminiPart{}, fmt.Errorf("%w: empty candidate set", domain.ErrRendererFailure)
	}
	return parsed.Candidates[0].Content.Parts[0], nil
}

func (g *Gemini) persistPart(ctx context.Context, job domain.Job, part geminiPart) (domain.RenderResult, error) {
	meta := map[string]any{"provider": g.model}
	switch {
	case part.InlineData != nil && part.InlineData.Data != "":
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return domain.RenderResult{}, fmt.Errorf("%w: decode inline data: %v", domain.ErrRendererFailure, err)
		}
		key := assetKey(job, part.InlineData.MimeType)
		saved, err := g.store.Write(ctx, key, data)
		if err != nil {
			return domain.RenderResult{}, fmt.Errorf("persist asset: %w", err)
		}
		meta["mime"] = part.InlineData.MimeType
		meta["bytes"] = len(data)
		return domain.RenderResult{AssetURL: saved, AssetMeta: meta}, nil

	case part.FileData != nil && part.FileData.FileURI != "":
		meta["mime"] = part.FileData.MimeType
		return domain.RenderResult{AssetURL: part.FileData.FileURI, AssetMeta: meta}, nil

	case part.Text != "":
		if job.Type == domain.JobTypeGenerateText {
			key := fmt.Sprintf("generated/text/%s/copy.txt", job.ID)
			saved, err := g.store.Write(ctx, key, []byte(part.Text))
			if err != nil {
				return domain.RenderResult{}, fmt.Errorf("persist text: %w", err)
			}
			meta["text"] = part.Text
			return domain.RenderResult{AssetURL: saved, AssetMeta: meta}, nil
		}
		// A text-only answer for a media job means the model refused; not
		// worth retrying.
		return domain.RenderResult{}, domain.NonRetryable(fmt.Errorf("gemini returned no media: %s", truncate(part.Text, 140)))

	default:
		return domain.RenderResult{}, fmt.Errorf("%w: candidate carried no usable part", domain.ErrRendererFailure)
	}
}

func promptForJob(job domain.Job) (string, error) {
	switch job.Type {
	case domain.JobTypeRenderImage, domain.JobTypeThumbnail:
		var p domain.ImagePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return "", fmt.Errorf("decode image payload: %w", err)
		}
		return fmt.Sprintf("Generate a single %s image: %s", p.AspectRatio, p.Prompt), nil
	case domain.JobTypeRenderCarousel:
		var p domain.CarouselPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return "", fmt.Errorf("decode carousel payload: %w", err)
		}
		return fmt.Sprintf("Generate a %d-slide %s carousel: %s", p.Slides, p.AspectRatio, p.Prompt), nil
	case domain.JobTypeRenderVideo:
		var p domain.VideoPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return "", fmt.Errorf("decode video payload: %w", err)
		}
		return fmt.Sprintf("Generate a %d second %s video: %s", p.DurationSeconds, p.AspectRatio, p.Prompt), nil
	case domain.JobTypeGenerateText:
		var p domain.ImagePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return "", fmt.Errorf("decode text payload: %w", err)
		}
		return p.Prompt, nil
	default:
		return "", fmt.Errorf("unsupported job type %q", job.Type)
	}
}

func assetKey(job domain.Job, mime string) string {
	ext := ".bin"
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		ext = ".png"
	case "image/jpeg", "image/jpg":
		ext = ".jpg"
	case "video/mp4":
		ext = ".mp4"
	case "text/plain":
		ext = ".txt"
	}
	category := "images"
	if strings.HasPrefix(mime, "video/") {
		category = "videos"
	}
	return fmt.Sprintf("generated/%s/%s/asset%s", category, job.ID, ext)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
