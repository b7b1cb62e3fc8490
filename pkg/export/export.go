// Package export serializes collected streamer records to CSV or JSON.
// Exporters are stateless collaborators: they receive the final ordered
// record slice and the originating criteria, and only write files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/streamscout/twitch-scout/pkg/models"
)

// csvColumns is the fixed CSV column contract.
var csvColumns = []string{
	"username",
	"display_name",
	"twitch_id",
	"is_live",
	"viewer_count",
	"game_name",
	"language",
	"broadcaster_type",
	"email",
	"twitter",
	"instagram",
	"youtube",
	"discord",
	"tiktok",
}

// utf8BOM makes Excel detect the encoding correctly.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Write serializes streamers to the configured format and path.
func Write(streamers []models.Streamer, criteria models.SearchCriteria, cfg models.ExportConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch cfg.Format {
	case models.FormatCSV:
		return writeCSV(streamers, cfg.OutputPath)
	case models.FormatJSON:
		return writeJSON(streamers, criteria, cfg.OutputPath)
	default:
		return fmt.Errorf("unsupported format %q", cfg.Format)
	}
}

func writeCSV(streamers []models.Streamer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range streamers {
		if err := w.Write(csvRow(s)); err != nil {
			return fmt.Errorf("write row for %s: %w", s.Username, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(s models.Streamer) []string {
	viewers := ""
	if s.ViewerCount > 0 {
		viewers = strconv.Itoa(s.ViewerCount)
	}
	email := ""
	if len(s.Emails) > 0 {
		email = s.Emails[0]
	}
	return []string{
		s.Username,
		s.DisplayName,
		s.TwitchID,
		strconv.FormatBool(s.IsLive),
		viewers,
		s.GameName,
		s.Language,
		s.BroadcasterType,
		email,
		s.SocialLinks.Twitter,
		s.SocialLinks.Instagram,
		s.SocialLinks.YouTube,
		s.SocialLinks.Discord,
		s.SocialLinks.TikTok,
	}
}

type jsonMetadata struct {
	GeneratedAt    string        `json:"generated_at"`
	TotalResults   int           `json:"total_results"`
	SearchCriteria *jsonCriteria `json:"search_criteria,omitempty"`
}

type jsonCriteria struct {
	Game           string `json:"game,omitempty"`
	GameID         string `json:"game_id,omitempty"`
	MinViewers     int    `json:"min_viewers"`
	MaxViewers     int    `json:"max_viewers,omitempty"`
	Language       string `json:"language,omitempty"`
	IncludeOffline bool   `json:"include_offline"`
	Limit          int    `json:"limit"`
}

type jsonDocument struct {
	Metadata  jsonMetadata      `json:"metadata"`
	Streamers []models.Streamer `json:"streamers"`
}

func writeJSON(streamers []models.Streamer, criteria models.SearchCriteria, path string) error {
	doc := jsonDocument{
		Metadata: jsonMetadata{
			GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
			TotalResults: len(streamers),
			SearchCriteria: &jsonCriteria{
				Game:           criteria.GameName,
				GameID:         criteria.GameID,
				MinViewers:     criteria.MinViewers,
				MaxViewers:     criteria.MaxViewers,
				Language:       criteria.Language,
				IncludeOffline: criteria.IncludeOffline,
				Limit:          criteria.Limit,
			},
		},
		Streamers: streamers,
	}
	if doc.Streamers == nil {
		doc.Streamers = []models.Streamer{}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
