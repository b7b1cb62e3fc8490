// Package testutil provides test doubles shared across packages.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/nicklaw5/helix/v2"

	"github.com/streamscout/twitch-scout/pkg/twitch"
)

// FakeHelix is a scriptable stand-in for the Helix client used by the
// pipeline. Pages are served in the order they were scripted; the user
// directory answers enrichment lookups. All methods are safe for
// concurrent use.
type FakeHelix struct {
	mu sync.Mutex

	streamPages  []twitch.StreamPage
	channelPages []twitch.ChannelPage
	users        map[string]helix.User
	games        map[string]string

	// Scripted failures by method name and 1-based call number, each
	// returned once and then cleared.
	failures map[string]map[int]error

	AuthCalls    int
	StreamCalls  int
	ChannelCalls int
	UserCalls    int

	// UserBatches records the id slices passed to GetUsersByID.
	UserBatches [][]string
}

// NewFakeHelix returns an empty fake. Script it with the Add* methods.
func NewFakeHelix() *FakeHelix {
	return &FakeHelix{
		users:    make(map[string]helix.User),
		games:    make(map[string]string),
		failures: make(map[string]map[int]error),
	}
}

// AddStreamPage appends a page to the live-stream script.
func (f *FakeHelix) AddStreamPage(cursor string, streams ...helix.Stream) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamPages = append(f.streamPages, twitch.StreamPage{Streams: streams, Cursor: cursor})
}

// AddChannelPage appends a page to the channel-search script.
func (f *FakeHelix) AddChannelPage(cursor string, channels ...helix.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channelPages = append(f.channelPages, twitch.ChannelPage{Channels: channels, Cursor: cursor})
}

// AddUser registers a user for enrichment lookups.
func (f *FakeHelix) AddUser(u helix.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// AddGame registers a game name to id mapping.
func (f *FakeHelix) AddGame(name, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games[name] = id
}

// FailNext makes the named method ("auth", "streams", "channels",
// "users") return err on its next call, then behave normally again.
func (f *FakeHelix) FailNext(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedule(method, f.count(method)+1, err)
}

// FailCall makes the named method return err on its nth call (1-based).
// A failed call does not consume a scripted page.
func (f *FakeHelix) FailCall(method string, call int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedule(method, call, err)
}

func (f *FakeHelix) schedule(method string, call int, err error) {
	if f.failures[method] == nil {
		f.failures[method] = make(map[int]error)
	}
	f.failures[method][call] = err
}

func (f *FakeHelix) count(method string) int {
	switch method {
	case "auth":
		return f.AuthCalls
	case "streams":
		return f.StreamCalls
	case "channels":
		return f.ChannelCalls
	case "users":
		return f.UserCalls
	}
	return 0
}

// takeErr runs under the mutex, after the method's counter increment.
func (f *FakeHelix) takeErr(method string) error {
	call := f.count(method)
	if err, ok := f.failures[method][call]; ok {
		delete(f.failures[method], call)
		return err
	}
	return nil
}

func (f *FakeHelix) Authenticate(_ context.Context) (twitch.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	if err := f.takeErr("auth"); err != nil {
		return twitch.Credential{}, err
	}
	return twitch.Credential{Token: "fake-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *FakeHelix) GetStreams(_ context.Context, _ twitch.StreamsQuery) (twitch.StreamPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StreamCalls++
	if err := f.takeErr("streams"); err != nil {
		return twitch.StreamPage{}, err
	}
	if len(f.streamPages) == 0 {
		return twitch.StreamPage{}, nil
	}
	page := f.streamPages[0]
	f.streamPages = f.streamPages[1:]
	return page, nil
}

func (f *FakeHelix) SearchChannels(_ context.Context, _ twitch.ChannelsQuery) (twitch.ChannelPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ChannelCalls++
	if err := f.takeErr("channels"); err != nil {
		return twitch.ChannelPage{}, err
	}
	if len(f.channelPages) == 0 {
		return twitch.ChannelPage{}, nil
	}
	page := f.channelPages[0]
	f.channelPages = f.channelPages[1:]
	return page, nil
}

func (f *FakeHelix) GetUsersByID(_ context.Context, ids []string) ([]helix.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UserCalls++
	f.UserBatches = append(f.UserBatches, append([]string(nil), ids...))
	if err := f.takeErr("users"); err != nil {
		return nil, err
	}
	var out []helix.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *FakeHelix) ResolveGameID(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.games[name], nil
}
