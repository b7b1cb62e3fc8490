package scraper

import (
	"time"

	"github.com/streamscout/twitch-scout/pkg/models"
)

// rawRecord is a partially populated record produced by a single discovery
// phase. It never leaves this package; callers only see the merged
// models.Streamer set.
type rawRecord struct {
	id          string
	username    string
	displayName string
	isLive      bool
	viewerCount int
	gameName    string
	language    string

	// fromLivePhase marks liveness data as fresh. Live-phase records take
	// precedence over a stale offline-phase liveness flag for the same
	// identity.
	fromLivePhase bool
}

// recordSet folds raw records from all discovery phases into one set keyed
// by identity, preserving insertion order for output stability.
type recordSet struct {
	order    []string
	byID     map[string]*models.Streamer
	liveSeen map[string]bool
}

func newRecordSet() *recordSet {
	return &recordSet{
		byID:     make(map[string]*models.Streamer),
		liveSeen: make(map[string]bool),
	}
}

// merge folds raw into the set and reports whether a new identity was
// added. Later arrivals never overwrite populated fields unless the new
// data is strictly fresher: a live-phase record always wins on liveness.
// Merging the same record twice has no additional effect.
func (rs *recordSet) merge(raw rawRecord) bool {
	existing, ok := rs.byID[raw.id]
	if !ok {
		s := &models.Streamer{
			TwitchID:    raw.id,
			Username:    raw.username,
			DisplayName: raw.displayName,
			IsLive:      raw.isLive,
			ViewerCount: raw.viewerCount,
			GameName:    raw.gameName,
			Language:    raw.language,
			LastUpdated: time.Now().UTC(),
		}
		rs.byID[raw.id] = s
		rs.order = append(rs.order, raw.id)
		rs.liveSeen[raw.id] = raw.fromLivePhase
		return true
	}

	if existing.Username == "" {
		existing.Username = raw.username
	}
	if existing.DisplayName == "" {
		existing.DisplayName = raw.displayName
	}
	if existing.GameName == "" {
		existing.GameName = raw.gameName
	}
	if existing.Language == "" {
		existing.Language = raw.language
	}
	if raw.fromLivePhase && !rs.liveSeen[raw.id] {
		existing.IsLive = raw.isLive
		existing.ViewerCount = raw.viewerCount
		rs.liveSeen[raw.id] = true
	}
	return false
}

// get returns the record for an identity, or nil.
func (rs *recordSet) get(id string) *models.Streamer {
	return rs.byID[id]
}

// remove drops an identity from the set, keeping order for the rest.
func (rs *recordSet) remove(id string) {
	if _, ok := rs.byID[id]; !ok {
		return
	}
	delete(rs.byID, id)
	delete(rs.liveSeen, id)
	for i, other := range rs.order {
		if other == id {
			rs.order = append(rs.order[:i], rs.order[i+1:]...)
			break
		}
	}
}

// ids returns all identities in insertion order.
func (rs *recordSet) ids() []string {
	out := make([]string, len(rs.order))
	copy(out, rs.order)
	return out
}

// streamers returns the merged records in insertion order.
func (rs *recordSet) streamers() []models.Streamer {
	out := make([]models.Streamer, 0, len(rs.order))
	for _, id := range rs.order {
		out = append(out, *rs.byID[id])
	}
	return out
}

func (rs *recordSet) len() int {
	return len(rs.order)
}
