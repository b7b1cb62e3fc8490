package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSet_MergeNewIdentity(t *testing.T) {
	rs := newRecordSet()

	added := rs.merge(rawRecord{id: "1", username: "alpha", isLive: true, viewerCount: 120, fromLivePhase: true})
	assert.True(t, added)
	assert.Equal(t, 1, rs.len())

	s := rs.get("1")
	require.NotNil(t, s)
	assert.Equal(t, "alpha", s.Username)
	assert.True(t, s.IsLive)
	assert.Equal(t, 120, s.ViewerCount)
}

func TestRecordSet_MergeIdempotent(t *testing.T) {
	rs := newRecordSet()
	raw := rawRecord{id: "1", username: "alpha", isLive: true, viewerCount: 120, fromLivePhase: true}

	assert.True(t, rs.merge(raw))
	before := *rs.get("1")

	assert.False(t, rs.merge(raw))
	assert.Equal(t, 1, rs.len())
	assert.Equal(t, before, *rs.get("1"))
}

func TestRecordSet_FillsEmptyFields(t *testing.T) {
	rs := newRecordSet()
	rs.merge(rawRecord{id: "1", username: "alpha"})
	rs.merge(rawRecord{id: "1", displayName: "Alpha", gameName: "Chess", language: "de"})

	s := rs.get("1")
	assert.Equal(t, "alpha", s.Username)
	assert.Equal(t, "Alpha", s.DisplayName)
	assert.Equal(t, "Chess", s.GameName)
	assert.Equal(t, "de", s.Language)
}

func TestRecordSet_PopulatedFieldsNotOverwritten(t *testing.T) {
	rs := newRecordSet()
	rs.merge(rawRecord{id: "1", username: "alpha", gameName: "Chess"})
	rs.merge(rawRecord{id: "1", username: "other", gameName: "Poker"})

	s := rs.get("1")
	assert.Equal(t, "alpha", s.Username)
	assert.Equal(t, "Chess", s.GameName)
}

func TestRecordSet_LivePhaseWinsLiveness(t *testing.T) {
	rs := newRecordSet()

	// Offline discovery sees the channel first, then the live phase
	// reports it streaming.
	rs.merge(rawRecord{id: "1", username: "alpha"})
	rs.merge(rawRecord{id: "1", isLive: true, viewerCount: 300, fromLivePhase: true})

	s := rs.get("1")
	assert.True(t, s.IsLive)
	assert.Equal(t, 300, s.ViewerCount)

	// A later offline sighting does not reset fresh liveness.
	rs.merge(rawRecord{id: "1", isLive: false})
	assert.True(t, rs.get("1").IsLive)
}

func TestRecordSet_InsertionOrderPreserved(t *testing.T) {
	rs := newRecordSet()
	for _, id := range []string{"3", "1", "2"} {
		rs.merge(rawRecord{id: id, username: "u" + id})
	}

	assert.Equal(t, []string{"3", "1", "2"}, rs.ids())

	streamers := rs.streamers()
	require.Len(t, streamers, 3)
	assert.Equal(t, "3", streamers[0].TwitchID)
	assert.Equal(t, "2", streamers[2].TwitchID)
}

func TestRecordSet_Remove(t *testing.T) {
	rs := newRecordSet()
	rs.merge(rawRecord{id: "1"})
	rs.merge(rawRecord{id: "2"})
	rs.merge(rawRecord{id: "3"})

	rs.remove("2")
	assert.Equal(t, []string{"1", "3"}, rs.ids())
	assert.Nil(t, rs.get("2"))

	rs.remove("missing")
	assert.Equal(t, 2, rs.len())
}
