package bundle

import (
	"maps"
	"strings"
	"time"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// contentTypes maps project types onto wire content types
var contentTypes = map[domain.ProjectType]string{
	domain.ProjectTypeComic:       "comic",
	domain.ProjectTypeTradingCard: "trading_card",
	domain.ProjectTypeVisualNovel: "visual_novel",
	domain.ProjectTypeCYOA:        "cyoa",
	domain.ProjectTypeCover:       "cover",
	domain.ProjectTypeMotion:      "motion",
}

// ContentTypeFor returns the wire content type for a project type.
// Unknown types fall back to comic.
func ContentTypeFor(t domain.ProjectType) string {
	if ct, ok := contentTypes[t]; ok {
		return ct
	}
	return "comic"
}

// Build maps a project, its creator and assets into a bundle stamped with the current time
func Build(project *domain.Project, user *domain.User, assets []*domain.Asset, opts domain.PublishOptions) *ContentBundle {
	return BuildAt(project, user, assets, opts, time.Now().UTC())
}

// BuildAt is Build with an explicit clock. None of the inputs are modified.
func BuildAt(project *domain.Project, user *domain.User, assets []*domain.Asset, opts domain.PublishOptions, now time.Time) *ContentBundle {
	visibility := string(opts.Visibility)
	if visibility == "" {
		visibility = string(domain.VisibilityPrivate)
	}

	updatedAt := project.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	b := &ContentBundle{
		ContractVersion: ContractVersion,
		ContentID:       project.ID,
		ContentType:     ContentTypeFor(project.Type),
		Title:           project.Title,
		Description:     project.Description,
		CoverAssetURL:   project.ThumbnailURL,
		Visibility:      visibility,
		AgeRating:       opts.AgeRating,
		Tags:            resolveTags(project.Payload, opts.Tags),
		Payload:         copyPayload(project.Payload),
		Assets:          make([]AssetEntry, 0, len(assets)),
		PublishedAt:     now,
		UpdatedAt:       updatedAt.UTC(),
	}

	if user != nil {
		b.Creator = Creator{
			PSUserID:    user.ID,
			DisplayName: user.DisplayName,
			AvatarURL:   user.AvatarURL,
		}
	}

	for _, a := range assets {
		if a == nil {
			continue
		}
		b.Assets = append(b.Assets, AssetEntry{
			AssetID:      a.ID,
			URL:          a.URL,
			Type:         a.Type,
			ThumbnailURL: a.ThumbnailURL,
		})
	}

	return b
}

// resolveTags prefers explicit option tags over tags embedded in the payload
func resolveTags(payload map[string]any, override []string) []string {
	if override != nil {
		return append([]string{}, override...)
	}

	// blank entries in editor payloads are dropped
	tags := []string{}
	switch embedded := payload["tags"].(type) {
	case []string:
		for _, s := range embedded {
			if strings.TrimSpace(s) != "" {
				tags = append(tags, s)
			}
		}
	case []any:
		for _, t := range embedded {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, s)
			}
		}
	}
	return tags
}

// copyPayload deep copies the document so nested pages and panels are not shared
func copyPayload(payload map[string]any) map[string]any {
	if payload == nil {
		return map[string]any{}
	}
	out := maps.Clone(payload)
	for k, v := range out {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyPayload(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
