// Package models defines the data types shared across the twitch-scout
// pipeline: search criteria, streamer records, and export configuration.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for struct tag validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// SocialLinks holds social media URLs extracted from a channel description.
type SocialLinks struct {
	Twitter   string   `json:"twitter,omitempty"`
	Instagram string   `json:"instagram,omitempty"`
	YouTube   string   `json:"youtube,omitempty"`
	Discord   string   `json:"discord,omitempty"`
	TikTok    string   `json:"tiktok,omitempty"`
	Other     []string `json:"other,omitempty"`
}

// Empty returns true if no social link was extracted.
func (s SocialLinks) Empty() bool {
	return s.Twitter == "" && s.Instagram == "" && s.YouTube == "" &&
		s.Discord == "" && s.TikTok == "" && len(s.Other) == 0
}

// Streamer represents a Twitch content creator. Records start partially
// populated from a discovery phase and are completed during enrichment.
// TwitchID is the platform-assigned identity used to merge records across
// phases.
type Streamer struct {
	TwitchID        string      `json:"twitch_id"`
	Username        string      `json:"username"`
	DisplayName     string      `json:"display_name"`
	Description     string      `json:"description,omitempty"`
	BroadcasterType string      `json:"broadcaster_type,omitempty"`
	FollowerCount   *int        `json:"follower_count,omitempty"`
	IsLive          bool        `json:"is_live"`
	ViewerCount     int         `json:"viewer_count,omitempty"`
	GameName        string      `json:"game_name,omitempty"`
	Language        string      `json:"language,omitempty"`
	Emails          []string    `json:"emails,omitempty"`
	SocialLinks     SocialLinks `json:"social_links"`
	LastUpdated     time.Time   `json:"last_updated"`
}

// SearchCriteria is the immutable input for a collection run.
type SearchCriteria struct {
	MinViewers     int    `validate:"gte=0"`
	MaxViewers     int    // 0 means no upper bound
	GameName       string
	GameID         string
	Language       string
	IncludeOffline bool
	Limit          int `validate:"gte=1,lte=10000"`
}

// Validate checks bounds and cross-field constraints. The pipeline calls
// this before issuing any network request.
func (c SearchCriteria) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			switch f.Field() {
			case "MinViewers":
				return errors.New("min_viewers must be >= 0")
			case "Limit":
				return errors.New("limit must be between 1 and 10000")
			}
		}
		return fmt.Errorf("invalid search criteria: %w", err)
	}
	if c.MaxViewers != 0 && c.MaxViewers <= c.MinViewers {
		return errors.New("max_viewers must be greater than min_viewers")
	}
	return nil
}

// ExportFormat selects the output serialization.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportConfig configures the export collaborator.
type ExportConfig struct {
	Format     ExportFormat
	OutputPath string `validate:"required"`
}

// Validate checks the export configuration.
func (c ExportConfig) Validate() error {
	if c.Format != FormatCSV && c.Format != FormatJSON {
		return fmt.Errorf("format must be %q or %q", FormatCSV, FormatJSON)
	}
	if err := validate.Struct(c); err != nil {
		return errors.New("output path is required")
	}
	return nil
}
