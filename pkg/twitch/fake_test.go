package twitch

import (
	"net/http"
	"sync"

	"github.com/nicklaw5/helix/v2"
)

// fakeAPI is a scriptable helixAPI for unit tests. Zero value answers
// every call with an empty 200 response and a fresh token.
type fakeAPI struct {
	mu        sync.Mutex
	exchanges int
	calls     int
	tokensSet []string

	exchangeFn func() (*helix.AppAccessTokenResponse, error)
	streamsFn  func(*helix.StreamsParams) (*helix.StreamsResponse, error)
	channelsFn func(*helix.SearchChannelsParams) (*helix.SearchChannelsResponse, error)
	usersFn    func(*helix.UsersParams) (*helix.UsersResponse, error)
	gamesFn    func(*helix.GamesParams) (*helix.GamesResponse, error)
}

func ok() helix.ResponseCommon {
	return helix.ResponseCommon{StatusCode: http.StatusOK, Header: http.Header{}}
}

func (f *fakeAPI) RequestAppAccessToken(scopes []string) (*helix.AppAccessTokenResponse, error) {
	f.mu.Lock()
	f.exchanges++
	f.mu.Unlock()
	if f.exchangeFn != nil {
		return f.exchangeFn()
	}
	resp := &helix.AppAccessTokenResponse{ResponseCommon: ok()}
	resp.Data.AccessToken = "tok"
	resp.Data.ExpiresIn = 3600
	return resp, nil
}

func (f *fakeAPI) SetAppAccessToken(token string) {
	f.mu.Lock()
	f.tokensSet = append(f.tokensSet, token)
	f.mu.Unlock()
}

func (f *fakeAPI) GetStreams(params *helix.StreamsParams) (*helix.StreamsResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.streamsFn != nil {
		return f.streamsFn(params)
	}
	return &helix.StreamsResponse{ResponseCommon: ok()}, nil
}

func (f *fakeAPI) SearchChannels(params *helix.SearchChannelsParams) (*helix.SearchChannelsResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.channelsFn != nil {
		return f.channelsFn(params)
	}
	return &helix.SearchChannelsResponse{ResponseCommon: ok()}, nil
}

func (f *fakeAPI) GetUsers(params *helix.UsersParams) (*helix.UsersResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.usersFn != nil {
		return f.usersFn(params)
	}
	return &helix.UsersResponse{ResponseCommon: ok()}, nil
}

func (f *fakeAPI) GetGames(params *helix.GamesParams) (*helix.GamesResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.gamesFn != nil {
		return f.gamesFn(params)
	}
	return &helix.GamesResponse{ResponseCommon: ok()}, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeAPI) exchangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchanges
}
