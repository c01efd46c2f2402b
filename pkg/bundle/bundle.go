package bundle

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContractVersion is the wire contract version produced by this package
const ContractVersion = "v1"

// ContentBundle is the externally shared representation of a project
type ContentBundle struct {
	ContractVersion string         `json:"contract_version" validate:"required,eq=v1"`
	ContentID       string         `json:"content_id" validate:"required"`
	ContentType     string         `json:"content_type" validate:"required,oneof=comic trading_card visual_novel cyoa cover motion"`
	Title           string         `json:"title" validate:"required"`
	Description     string         `json:"description"`
	CoverAssetURL   string         `json:"cover_asset_url,omitempty"`
	Creator         Creator        `json:"creator"`
	Visibility      string         `json:"visibility" validate:"required,oneof=private unlisted public"`
	AgeRating       string         `json:"age_rating,omitempty" validate:"omitempty,max=32"`
	Tags            []string       `json:"tags" validate:"required"`
	Payload         map[string]any `json:"payload" validate:"required"`
	Assets          []AssetEntry   `json:"assets" validate:"required,dive"`
	PublishedAt     time.Time      `json:"published_at" validate:"required"`
	UpdatedAt       time.Time      `json:"updated_at" validate:"required"`
}

// Creator identifies the author of the bundle
type Creator struct {
	PSUserID    string `json:"ps_user_id" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// AssetEntry references a media file used by the bundle
type AssetEntry struct {
	AssetID      string `json:"asset_id" validate:"required"`
	URL          string `json:"url" validate:"required"`
	Type         string `json:"type" validate:"required"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Marshal encodes the bundle as wire JSON
func (b *ContentBundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle: %w", err)
	}
	return data, nil
}
