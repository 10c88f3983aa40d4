package intent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"alfie/internal/domain"
	"alfie/internal/quota"
)

const (
	maxImagesPerItem  = 10
	minCarouselSlides = 2
	maxCarouselSlides = 10
	maxVideoSeconds   = 60

	defaultAspectRatio  = "1:1"
	defaultVideoSeconds = 8
)

// JobSpec is one durable work item derived from a brief, ready for insert.
type JobSpec struct {
	ID             string
	Type           domain.JobType
	Kind           domain.AssetKind
	Payload        json.RawMessage
	CostUnits      int
	MaxAttempts    int
	TimeoutSeconds int
	IdempotencyKey string
}

// Translation is the full fan-out of a brief: one order plus its job specs.
type Translation struct {
	OrderID        string
	AccountID      string
	Title          string
	IdempotencyKey string
	TotalUnits     int
	Jobs           []JobSpec
}

// Translator converts a validated creative brief into typed job
// specifications. Payload schemas are enforced here, at the boundary, so the
// dispatcher can stay payload-agnostic.
type Translator struct {
	titler cases.Caser
}

func NewTranslator() *Translator {
	return &Translator{titler: cases.Title(language.English)}
}

// Translate validates the brief and produces the order and job set. It does
// not touch storage; persistence and quota authorization happen afterwards
// with the returned cost total.
func (t *Translator) Translate(accountID string, brief domain.CreativeBrief) (Translation, error) {
	if strings.TrimSpace(accountID) == "" {
		return Translation{}, fmt.Errorf("%w: account id is required", domain.ErrInvalidBrief)
	}
	prompt := strings.TrimSpace(brief.Prompt)
	if prompt == "" {
		return Translation{}, fmt.Errorf("%w: prompt is required", domain.ErrInvalidBrief)
	}
	if len(brief.Items) == 0 {
		return Translation{}, fmt.Errorf("%w: at least one item is required", domain.ErrInvalidBrief)
	}

	locale := normalizeLocale(brief.Locale)
	aspect := strings.TrimSpace(brief.AspectRatio)
	if aspect == "" {
		aspect = defaultAspectRatio
	}

	tr := Translation{
		OrderID:        uuid.NewString(),
		AccountID:      accountID,
		Title:          t.deriveTitle(brief.Title, prompt),
		IdempotencyKey: strings.TrimSpace(brief.IdempotencyKey),
	}

	// Job keys carry the account so identical brief keys from different
	// accounts never collide on the jobs unique index.
	jobScope := ""
	if tr.IdempotencyKey != "" {
		jobScope = accountID + "/" + tr.IdempotencyKey
	}

	for i, item := range brief.Items {
		specs, err := t.translateItem(item, prompt, aspect, locale, jobScope, i)
		if err != nil {
			return Translation{}, err
		}
		tr.Jobs = append(tr.Jobs, specs...)
	}
	for _, spec := range tr.Jobs {
		tr.TotalUnits += spec.CostUnits
	}
	return tr, nil
}

func (t *Translator) translateItem(item domain.BriefItem, prompt, aspect, locale, orderKey string, itemIdx int) ([]JobSpec, error) {
	switch item.Kind {
	case domain.AssetKindImage:
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if qty > maxImagesPerItem {
			return nil, fmt.Errorf("%w: at most %d images per item", domain.ErrInvalidBrief, maxImagesPerItem)
		}
		specs := make([]JobSpec, 0, qty)
		for i := 0; i < qty; i++ {
			payload := mustMarshal(domain.ImagePayload{Prompt: prompt, AspectRatio: aspect, Locale: locale, Index: i})
			specs = append(specs, newSpec(domain.JobTypeRenderImage, domain.AssetKindImage, payload,
				quota.Cost(domain.AssetKindImage, 1), jobKey(orderKey, itemIdx, i)))
		}
		return specs, nil

	case domain.AssetKindCarouselSlide:
		slides := item.Slides
		if slides == 0 {
			slides = item.Quantity
		}
		if slides < minCarouselSlides || slides > maxCarouselSlides {
			return nil, fmt.Errorf("%w: carousel needs %d-%d slides", domain.ErrInvalidBrief, minCarouselSlides, maxCarouselSlides)
		}
		payload := mustMarshal(domain.CarouselPayload{Prompt: prompt, AspectRatio: aspect, Locale: locale, Slides: slides})
		return []JobSpec{newSpec(domain.JobTypeRenderCarousel, domain.AssetKindCarouselSlide, payload,
			quota.Cost(domain.AssetKindCarouselSlide, slides), jobKey(orderKey, itemIdx, 0))}, nil

	case domain.AssetKindVideo:
		seconds := item.DurationSeconds
		if seconds <= 0 {
			seconds = defaultVideoSeconds
		}
		if seconds > maxVideoSeconds {
			return nil, fmt.Errorf("%w: video duration is capped at %ds", domain.ErrInvalidBrief, maxVideoSeconds)
		}
		payload := mustMarshal(domain.VideoPayload{Prompt: prompt, AspectRatio: aspect, Locale: locale, DurationSeconds: seconds})
		return []JobSpec{newSpec(domain.JobTypeRenderVideo, domain.AssetKindVideo, payload,
			quota.Cost(domain.AssetKindVideo, 1), jobKey(orderKey, itemIdx, 0))}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported item kind %q", domain.ErrInvalidBrief, item.Kind)
	}
}

func newSpec(jt domain.JobType, kind domain.AssetKind, payload json.RawMessage, cost int, key string) JobSpec {
	return JobSpec{
		ID:             uuid.NewString(),
		Type:           jt,
		Kind:           kind,
		Payload:        payload,
		CostUnits:      cost,
		MaxAttempts:    domain.DefaultMaxAttempts(jt),
		TimeoutSeconds: int(domain.ExecutionTimeout(jt).Seconds()),
		IdempotencyKey: key,
	}
}

// deriveTitle falls back to the first words of the prompt, title-cased the
// way downstream asset naming expects.
func (t *Translator) deriveTitle(title, prompt string) string {
	title = strings.TrimSpace(title)
	if title != "" {
		return title
	}
	words := strings.Fields(prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	return t.titler.String(strings.Join(words, " "))
}

func jobKey(orderKey string, itemIdx, seq int) string {
	if orderKey == "" {
		return ""
	}
	return fmt.Sprintf("%s/%d-%d", orderKey, itemIdx, seq)
}

func normalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		return "en"
	}
	tag := language.Make(locale)
	base, _ := tag.Base()
	return base.String()
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
