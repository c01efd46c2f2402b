package bundle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/bundle"
)

func validBundle() *bundle.ContentBundle {
	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	return &bundle.ContentBundle{
		ContractVersion: "v1",
		ContentID:       "proj-1",
		ContentType:     "comic",
		Title:           "Night Shift",
		Creator:         bundle.Creator{PSUserID: "user-1", DisplayName: "Ada"},
		Visibility:      "public",
		Tags:            []string{"noir"},
		Payload:         map[string]any{"pages": 3},
		Assets: []bundle.AssetEntry{
			{AssetID: "a1", URL: "https://cdn.example.com/a1.png", Type: "image"},
		},
		PublishedAt: now,
		UpdatedAt:   now,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(b *bundle.ContentBundle)
		expected []string
	}{
		{
			name:   "valid bundle",
			mutate: func(b *bundle.ContentBundle) {},
		},
		{
			name:     "missing creator id",
			mutate:   func(b *bundle.ContentBundle) { b.Creator.PSUserID = "" },
			expected: []string{"creator.ps_user_id: required"},
		},
		{
			name:     "unknown content type",
			mutate:   func(b *bundle.ContentBundle) { b.ContentType = "poster" },
			expected: []string{"content_type: must be one of [comic trading_card visual_novel cyoa cover motion]"},
		},
		{
			name:     "unknown visibility",
			mutate:   func(b *bundle.ContentBundle) { b.Visibility = "friends" },
			expected: []string{"visibility: must be one of [private unlisted public]"},
		},
		{
			name:     "wrong contract version",
			mutate:   func(b *bundle.ContentBundle) { b.ContractVersion = "v2" },
			expected: []string{`contract_version: must be "v1"`},
		},
		{
			name: "malformed asset entry",
			mutate: func(b *bundle.ContentBundle) {
				b.Assets = append(b.Assets, bundle.AssetEntry{AssetID: "a2", Type: "image"})
			},
			expected: []string{"assets[1].url: required"},
		},
		{
			name:     "missing payload",
			mutate:   func(b *bundle.ContentBundle) { b.Payload = nil },
			expected: []string{"payload: required"},
		},
		{
			name:   "empty tag is accepted",
			mutate: func(b *bundle.ContentBundle) { b.Tags = []string{"ok", ""} },
		},
		{
			name: "relative asset urls are accepted",
			mutate: func(b *bundle.ContentBundle) {
				b.CoverAssetURL = "uploads/cover.png"
				b.Creator.AvatarURL = "avatars/ada.png"
				b.Assets = append(b.Assets, bundle.AssetEntry{
					AssetID: "a2", URL: "uploads/page2.png", Type: "image", ThumbnailURL: "uploads/page2_t.png",
				})
			},
		},
		{
			name:     "missing tags",
			mutate:   func(b *bundle.ContentBundle) { b.Tags = nil },
			expected: []string{"tags: required"},
		},
		{
			name: "multiple errors",
			mutate: func(b *bundle.ContentBundle) {
				b.Title = ""
				b.PublishedAt = time.Time{}
			},
			expected: []string{"title: required", "published_at: required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(b)

			result := bundle.Validate(b)
			if len(tt.expected) == 0 {
				assert.True(t, result.Valid)
				assert.Empty(t, result.Errors)
				return
			}
			assert.False(t, result.Valid)
			assert.ElementsMatch(t, tt.expected, result.Errors)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	result := bundle.Validate(nil)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"bundle: required"}, result.Errors)
}

func TestValidateJSON(t *testing.T) {
	t.Run("round trip of a valid bundle", func(t *testing.T) {
		raw, err := validBundle().Marshal()
		require.NoError(t, err)
		assert.True(t, bundle.ValidateJSON(raw).Valid)
	})

	t.Run("missing creator object", func(t *testing.T) {
		raw := []byte(`{"contract_version":"v1","content_id":"p","content_type":"comic","title":"t",
			"visibility":"private","tags":[],"payload":{},"assets":[],
			"published_at":"2026-10-17T09:30:00Z","updated_at":"2026-10-17T09:30:00Z"}`)
		result := bundle.ValidateJSON(raw)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "creator.ps_user_id: required")
		assert.Contains(t, result.Errors, "creator.display_name: required")
	})

	t.Run("wrong field type", func(t *testing.T) {
		result := bundle.ValidateJSON([]byte(`{"title": 42}`))
		assert.False(t, result.Valid)
		assert.Equal(t, []string{"title: must be string"}, result.Errors)
	})

	t.Run("not json", func(t *testing.T) {
		result := bundle.ValidateJSON([]byte(`{{`))
		assert.False(t, result.Valid)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "malformed JSON")
	})
}

func TestResult_Error(t *testing.T) {
	r := bundle.Result{Errors: []string{"title: required", "creator.ps_user_id: required"}}
	assert.Equal(t, "title: required; creator.ps_user_id: required", r.Error())
}
