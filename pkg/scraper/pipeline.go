// Package scraper implements the multi-phase collection pipeline: live
// discovery, offline discovery, batch enrichment, and export, driven as a
// state machine over a deduplicated record set.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nicklaw5/helix/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/streamscout/twitch-scout/pkg/cache"
	"github.com/streamscout/twitch-scout/pkg/extract"
	"github.com/streamscout/twitch-scout/pkg/models"
	"github.com/streamscout/twitch-scout/pkg/twitch"
)

// Prometheus metrics for pipeline runs.
var (
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "twitch_scout_phase_duration_seconds",
		Help:    "Duration of each pipeline phase",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	}, []string{"phase"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "twitch_scout_runs_total",
		Help: "Total pipeline runs by result",
	}, []string{"result"})
)

// API is the slice of the Helix client the pipeline drives.
// *twitch.Client satisfies it; tests use a fake.
type API interface {
	Authenticate(ctx context.Context) (twitch.Credential, error)
	GetStreams(ctx context.Context, q twitch.StreamsQuery) (twitch.StreamPage, error)
	SearchChannels(ctx context.Context, q twitch.ChannelsQuery) (twitch.ChannelPage, error)
	GetUsersByID(ctx context.Context, ids []string) ([]helix.User, error)
	ResolveGameID(ctx context.Context, name string) (string, error)
}

// ExtractFunc is the contact-extraction collaborator: free text in,
// emails and social links out. Must be pure.
type ExtractFunc func(text string) ([]string, models.SocialLinks)

// ExportFunc is the export collaborator, called once with the final
// ordered record set.
type ExportFunc func(streamers []models.Streamer, criteria models.SearchCriteria) error

// ProfileCache is the optional enrichment cache consulted before batch
// lookups. *cache.ProfileCache satisfies it.
type ProfileCache interface {
	GetMany(ctx context.Context, ids []string) (map[string]cache.Profile, error)
	Set(ctx context.Context, p cache.Profile) error
}

// State is the accumulating result of a collection run. It is owned by
// the pipeline while a run is in flight and handed back read-only on
// completion or failure.
type State struct {
	criteria  models.SearchCriteria
	gameID    string
	records   *recordSet
	completed map[Phase]bool
}

// Criteria returns the originating search criteria.
func (s *State) Criteria() models.SearchCriteria { return s.criteria }

// Streamers returns the merged records in insertion order.
func (s *State) Streamers() []models.Streamer { return s.records.streamers() }

// Len returns the current record count.
func (s *State) Len() int { return s.records.len() }

// Completed reports whether a phase has finished.
func (s *State) Completed(p Phase) bool { return s.completed[p] }

// RunError is the typed failure returned when a phase cannot complete.
// It carries the partial state so a caller can resume discovery from the
// next incomplete phase instead of starting over.
type RunError struct {
	Phase         Phase
	LastCompleted Phase
	State         *State
	Err           error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline failed during %s: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractor replaces the default contact extractor.
func WithExtractor(fn ExtractFunc) Option {
	return func(p *Pipeline) { p.extract = fn }
}

// WithExporter sets the export collaborator. Without one the exporting
// phase is a no-op.
func WithExporter(fn ExportFunc) Option {
	return func(p *Pipeline) { p.export = fn }
}

// WithObserver subscribes an observer to progress updates.
func WithObserver(obs Observer) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithProfileCache enables the enrichment profile cache.
func WithProfileCache(c ProfileCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// Pipeline orchestrates the collection phases.
type Pipeline struct {
	api      API
	extract  ExtractFunc
	export   ExportFunc
	cache    ProfileCache
	observer Observer
	tracker  *Tracker
	logger   zerolog.Logger
}

// New creates a pipeline around the given API client.
func New(api API, opts ...Option) *Pipeline {
	p := &Pipeline{
		api: api,
		extract: func(text string) ([]string, models.SocialLinks) {
			return extract.Emails(text), extract.Socials(text)
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.tracker = NewTracker(p.observer)
	return p
}

// Tracker exposes the progress tracker view for polling.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Run validates the criteria and drives all phases to completion. On
// success the terminal State is returned; on failure the error is a
// *RunError carrying the resumable partial state.
func (p *Pipeline) Run(ctx context.Context, criteria models.SearchCriteria) (*State, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	st := &State{
		criteria:  criteria,
		gameID:    criteria.GameID,
		records:   newRecordSet(),
		completed: make(map[Phase]bool),
	}
	if !criteria.IncludeOffline {
		st.completed[PhaseCollectingOffline] = true
	}
	return p.run(ctx, st)
}

// Resume re-runs only the incomplete phases of a failed run. Records
// merged before the failure are preserved.
func (p *Pipeline) Resume(ctx context.Context, st *State) (*State, error) {
	if st == nil {
		return nil, errors.New("nil state")
	}
	return p.run(ctx, st)
}

func (p *Pipeline) run(ctx context.Context, st *State) (*State, error) {
	steps := []struct {
		phase Phase
		fn    func(context.Context, *State) error
	}{
		{PhaseAuthenticating, p.authenticate},
		{PhaseCollectingLive, p.collectLive},
		{PhaseCollectingOffline, p.collectOffline},
		{PhaseEnriching, p.enrich},
		{PhaseExporting, p.exportRecords},
	}

	last := PhaseIdle
	for _, step := range steps {
		if st.completed[step.phase] {
			last = step.phase
			continue
		}

		p.tracker.SetPhase(step.phase)
		p.logger.Info().Str("phase", string(step.phase)).Msg("phase started")

		start := time.Now()
		err := step.fn(ctx, st)
		phaseDuration.WithLabelValues(string(step.phase)).Observe(time.Since(start).Seconds())

		if err != nil {
			// A malformed response aborts only the phase; the run goes on
			// to export whatever was already merged. Authentication has
			// nothing merged yet and always fails the run.
			if errors.Is(err, twitch.ErrMalformedResponse) && step.phase != PhaseAuthenticating {
				p.logger.Warn().
					Str("phase", string(step.phase)).
					Err(err).
					Msg("phase aborted on malformed response, continuing with merged records")
				p.tracker.Add(step.phase, 0, 0, 1)
				st.completed[step.phase] = true
				last = step.phase
				continue
			}

			p.tracker.SetPhase(PhaseFailed)
			runsTotal.WithLabelValues("failed").Inc()
			return st, &RunError{Phase: step.phase, LastCompleted: last, State: st, Err: err}
		}

		st.completed[step.phase] = true
		last = step.phase
	}

	p.tracker.SetPhase(PhaseComplete)
	runsTotal.WithLabelValues("complete").Inc()
	p.logger.Info().Int("records", st.records.len()).Msg("collection complete")
	return st, nil
}

func (p *Pipeline) authenticate(ctx context.Context, _ *State) error {
	_, err := p.api.Authenticate(ctx)
	return err
}

func (p *Pipeline) collectLive(ctx context.Context, st *State) error {
	crit := st.criteria
	remaining := crit.Limit - st.records.len()
	if remaining <= 0 {
		return nil
	}

	if st.gameID == "" && crit.GameName != "" {
		id, err := p.api.ResolveGameID(ctx, crit.GameName)
		if err != nil {
			return err
		}
		if id == "" {
			return fmt.Errorf("game not found: %q", crit.GameName)
		}
		st.gameID = id
	}

	return paginate(ctx, remaining,
		func(ctx context.Context, after string, first int) ([]helix.Stream, string, error) {
			page, err := p.api.GetStreams(ctx, twitch.StreamsQuery{
				GameID:   st.gameID,
				Language: crit.Language,
				First:    first,
				After:    after,
			})
			return page.Streams, page.Cursor, err
		},
		func(s helix.Stream) bool {
			added := false
			if s.ViewerCount >= crit.MinViewers &&
				(crit.MaxViewers == 0 || s.ViewerCount <= crit.MaxViewers) {
				added = st.records.merge(rawRecord{
					id:            s.UserID,
					username:      s.UserLogin,
					displayName:   s.UserName,
					isLive:        true,
					viewerCount:   s.ViewerCount,
					gameName:      s.GameName,
					language:      s.Language,
					fromLivePhase: true,
				})
			}
			p.tracker.Add(PhaseCollectingLive, 1, boolToInt(added), 0)
			return added
		})
}

func (p *Pipeline) collectOffline(ctx context.Context, st *State) error {
	crit := st.criteria
	remaining := crit.Limit - st.records.len()
	if remaining <= 0 {
		return nil
	}

	query := crit.GameName
	if query == "" {
		query = st.gameID
	}
	if query == "" {
		query = "streamer"
	}

	return paginate(ctx, remaining,
		func(ctx context.Context, after string, first int) ([]helix.Channel, string, error) {
			page, err := p.api.SearchChannels(ctx, twitch.ChannelsQuery{
				Query: query,
				First: first,
				After: after,
			})
			return page.Channels, page.Cursor, err
		},
		func(ch helix.Channel) bool {
			added := false
			// Live channels were already covered by the live phase; the
			// language filter applies because channel search cannot
			// filter server-side.
			if !ch.IsLive && (crit.Language == "" || ch.Language == crit.Language) {
				added = st.records.merge(rawRecord{
					id:          ch.ID,
					username:    ch.BroadcasterLogin,
					displayName: ch.DisplayName,
					gameName:    ch.GameName,
					language:    ch.Language,
				})
			}
			p.tracker.Add(PhaseCollectingOffline, 1, boolToInt(added), 0)
			return added
		})
}

func (p *Pipeline) enrich(ctx context.Context, st *State) error {
	ids := st.records.ids()
	if len(ids) == 0 {
		return nil
	}

	for _, batch := range batches(ids, twitch.MaxPageSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		pending := batch
		if p.cache != nil {
			cached, err := p.cache.GetMany(ctx, batch)
			if err != nil {
				p.logger.Warn().Err(err).Msg("profile cache lookup failed, fetching all")
			} else if len(cached) > 0 {
				pending = pending[:0:0]
				for _, id := range batch {
					if prof, ok := cached[id]; ok {
						p.applyProfile(st, id, prof.Login, prof.DisplayName, prof.BroadcasterType, prof.Description)
					} else {
						pending = append(pending, id)
					}
				}
			}
		}

		if len(pending) == 0 {
			continue
		}

		users, err := p.api.GetUsersByID(ctx, pending)
		if err != nil {
			return err
		}

		resolved := make(map[string]bool, len(users))
		for _, u := range users {
			resolved[u.ID] = true
			p.applyProfile(st, u.ID, u.Login, u.DisplayName, u.BroadcasterType, u.Description)
			if p.cache != nil {
				if err := p.cache.Set(ctx, cache.Profile{
					ID:              u.ID,
					Login:           u.Login,
					DisplayName:     u.DisplayName,
					BroadcasterType: u.BroadcasterType,
					Description:     u.Description,
				}); err != nil {
					p.logger.Warn().Str("id", u.ID).Err(err).Msg("profile cache store failed")
				}
			}
		}

		// Identities the upstream could not resolve (deleted or banned
		// accounts) are dropped from the final set, not treated as
		// failures of the batch.
		for _, id := range pending {
			if !resolved[id] {
				p.logger.Debug().Str("id", id).Msg("identity unresolved, dropping record")
				st.records.remove(id)
				p.tracker.Add(PhaseEnriching, 1, 0, 1)
			}
		}
	}
	return nil
}

func (p *Pipeline) applyProfile(st *State, id, login, displayName, broadcasterType, description string) {
	s := st.records.get(id)
	if s == nil {
		return
	}
	if login != "" {
		s.Username = login
	}
	if displayName != "" {
		s.DisplayName = displayName
	}
	s.BroadcasterType = broadcasterType
	s.Description = description
	s.Emails, s.SocialLinks = p.extract(description)
	s.LastUpdated = time.Now().UTC()
	p.tracker.Add(PhaseEnriching, 1, 1, 0)
}

func (p *Pipeline) exportRecords(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.export == nil {
		return nil
	}
	return p.export(st.records.streamers(), st.criteria)
}

// paginate drives cursor pagination until the cursor is exhausted or
// limit items have been accepted, whichever comes first. visit reports
// whether an item counted toward the limit; the same logical record
// appearing on two consecutive pages is handled by the record set, not
// assumed away here.
func paginate[T any](
	ctx context.Context,
	limit int,
	fetch func(ctx context.Context, after string, first int) ([]T, string, error),
	visit func(T) bool,
) error {
	after := ""
	accepted := 0
	for accepted < limit {
		if err := ctx.Err(); err != nil {
			return err
		}

		first := limit - accepted
		if first > twitch.MaxPageSize {
			first = twitch.MaxPageSize
		}

		items, cursor, err := fetch(ctx, after, first)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		for _, item := range items {
			if visit(item) {
				accepted++
				if accepted >= limit {
					return nil
				}
			}
		}

		if cursor == "" {
			return nil
		}
		after = cursor
	}
	return nil
}

// batches partitions ids into groups no larger than size.
func batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = twitch.MaxPageSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
