package intent

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfie/internal/domain"
)

func TestTranslateFansOutImages(t *testing.T) {
	tr, err := NewTranslator().Translate("acct-1", domain.CreativeBrief{
		Prompt: "a red bicycle in the rain",
		Items:  []domain.BriefItem{{Kind: domain.AssetKindImage, Quantity: 3}},
	})
	require.NoError(t, err)

	require.Len(t, tr.Jobs, 3)
	assert.Equal(t, 3, tr.TotalUnits)
	for i, spec := range tr.Jobs {
		assert.Equal(t, domain.JobTypeRenderImage, spec.Type)
		assert.Equal(t, 1, spec.CostUnits)
		assert.Equal(t, 3, spec.MaxAttempts)
		assert.NotEmpty(t, spec.ID)

		var payload domain.ImagePayload
		require.NoError(t, json.Unmarshal(spec.Payload, &payload))
		assert.Equal(t, "a red bicycle in the rain", payload.Prompt)
		assert.Equal(t, "1:1", payload.AspectRatio)
		assert.Equal(t, i, payload.Index)
	}
}

func TestTranslateMixedItems(t *testing.T) {
	tr, err := NewTranslator().Translate("acct-1", domain.CreativeBrief{
		Prompt:      "spring sale announcement",
		AspectRatio: "4:5",
		Items: []domain.BriefItem{
			{Kind: domain.AssetKindImage, Quantity: 2},
			{Kind: domain.AssetKindCarouselSlide, Slides: 5},
			{Kind: domain.AssetKindVideo, DurationSeconds: 10},
		},
	})
	require.NoError(t, err)

	require.Len(t, tr.Jobs, 4, "2 images + 1 carousel + 1 video")
	// 2*1 + 5*2 + 10
	assert.Equal(t, 22, tr.TotalUnits)

	video := tr.Jobs[3]
	assert.Equal(t, domain.JobTypeRenderVideo, video.Type)
	assert.Equal(t, 10, video.CostUnits)
	assert.Equal(t, 2, video.MaxAttempts, "video retries are tighter")
	assert.Greater(t, video.TimeoutSeconds, tr.Jobs[0].TimeoutSeconds, "video renders get more headroom")
}

func TestTranslateIdempotencyKeys(t *testing.T) {
	brief := domain.CreativeBrief{
		Prompt:         "prompt",
		IdempotencyKey: "req-42",
		Items:          []domain.BriefItem{{Kind: domain.AssetKindImage, Quantity: 2}},
	}
	tr, err := NewTranslator().Translate("acct-1", brief)
	require.NoError(t, err)

	assert.Equal(t, "req-42", tr.IdempotencyKey)
	assert.Equal(t, "acct-1/req-42/0-0", tr.Jobs[0].IdempotencyKey)
	assert.Equal(t, "acct-1/req-42/0-1", tr.Jobs[1].IdempotencyKey)

	// Without a brief key, jobs carry no key at all.
	brief.IdempotencyKey = ""
	tr, err = NewTranslator().Translate("acct-1", brief)
	require.NoError(t, err)
	assert.Empty(t, tr.Jobs[0].IdempotencyKey)
}

func TestTranslateJobKeysScopedPerAccount(t *testing.T) {
	brief := domain.CreativeBrief{
		Prompt:         "prompt",
		IdempotencyKey: "req-42",
		Items:          []domain.BriefItem{{Kind: domain.AssetKindImage, Quantity: 1}},
	}
	first, err := NewTranslator().Translate("acct-1", brief)
	require.NoError(t, err)
	second, err := NewTranslator().Translate("acct-2", brief)
	require.NoError(t, err)

	// Same brief key from two accounts must never produce colliding job keys.
	assert.NotEqual(t, first.Jobs[0].IdempotencyKey, second.Jobs[0].IdempotencyKey)
}

func TestTranslateDerivesTitle(t *testing.T) {
	tr, err := NewTranslator().Translate("acct-1", domain.CreativeBrief{
		Prompt: "cozy coffee shop interior with warm morning light",
		Items:  []domain.BriefItem{{Kind: domain.AssetKindImage}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Cozy Coffee Shop Interior With Warm", tr.Title)
}

func TestTranslateRejectsBadBriefs(t *testing.T) {
	cases := []struct {
		name  string
		brief domain.CreativeBrief
	}{
		{"empty prompt", domain.CreativeBrief{Items: []domain.BriefItem{{Kind: domain.AssetKindImage}}}},
		{"no items", domain.CreativeBrief{Prompt: "p"}},
		{"too many images", domain.CreativeBrief{Prompt: "p", Items: []domain.BriefItem{{Kind: domain.AssetKindImage, Quantity: 11}}}},
		{"one-slide carousel", domain.CreativeBrief{Prompt: "p", Items: []domain.BriefItem{{Kind: domain.AssetKindCarouselSlide, Slides: 1}}}},
		{"video too long", domain.CreativeBrief{Prompt: "p", Items: []domain.BriefItem{{Kind: domain.AssetKindVideo, DurationSeconds: 90}}}},
		{"unknown kind", domain.CreativeBrief{Prompt: "p", Items: []domain.BriefItem{{Kind: "hologram"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewTranslator().Translate("acct-1", tc.brief)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidBrief))
		})
	}
}
