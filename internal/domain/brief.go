package domain

// CreativeBrief is the validated user intent handed to the translator. It is
// the only place payload schemas are interpreted; past this boundary the
// queue treats job payloads as opaque bytes.
type CreativeBrief struct {
	Title          string      `json:"title"`
	Prompt         string      `json:"prompt"`
	Locale         string      `json:"locale"`
	AspectRatio    string      `json:"aspect_ratio"`
	IdempotencyKey string      `json:"idempotency_key"`
	Items          []BriefItem `json:"items"`
}

// BriefItem requests one category of output from a brief.
type BriefItem struct {
	Kind            AssetKind `json:"kind"`
	Quantity        int       `json:"quantity"`
	Slides          int       `json:"slides"`
	DurationSeconds int       `json:"duration_seconds"`
}

// ImagePayload is the renderer contract for render_image jobs.
type ImagePayload struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Locale      string `json:"locale"`
	Index       int    `json:"index"`
}

// CarouselPayload is the renderer contract for render_carousel jobs.
type CarouselPayload struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Locale      string `json:"locale"`
	Slides      int    `json:"slides"`
}

// VideoPayload is the renderer contract for render_video jobs.
type VideoPayload struct {
	Prompt          string `json:"prompt"`
	AspectRatio     string `json:"aspect_ratio"`
	Locale          string `json:"locale"`
	DurationSeconds int    `json:"duration_seconds"`
}

// RenderResult is what a renderer returns for a completed job.
type RenderResult struct {
	AssetURL  string         `json:"asset_url"`
	AssetMeta map[string]any `json:"asset_meta,omitempty"`
}
