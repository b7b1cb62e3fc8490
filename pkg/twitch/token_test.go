package twitch

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nicklaw5/helix/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_CachesCredential(t *testing.T) {
	api := &fakeAPI{}
	tm := NewTokenManager(api, clockwork.NewFakeClock(), zerolog.Nop())

	first, err := tm.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", first.Token)

	second, err := tm.Token()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, api.exchangeCount())
}

func TestTokenManager_RefreshesWithinSafetyMargin(t *testing.T) {
	api := &fakeAPI{}
	fc := clockwork.NewFakeClock()
	tm := NewTokenManager(api, fc, zerolog.Nop())

	_, err := tm.Token()
	require.NoError(t, err)

	// 56 minutes into a 60 minute lifetime leaves less than the 5 minute
	// margin, so the next call must exchange again.
	fc.Advance(56 * time.Minute)
	_, err = tm.Token()
	require.NoError(t, err)
	assert.Equal(t, 2, api.exchangeCount())
}

func TestTokenManager_InvalidateForcesExchange(t *testing.T) {
	api := &fakeAPI{}
	tm := NewTokenManager(api, clockwork.NewFakeClock(), zerolog.Nop())

	_, err := tm.Token()
	require.NoError(t, err)

	tm.Invalidate()
	_, err = tm.Token()
	require.NoError(t, err)
	assert.Equal(t, 2, api.exchangeCount())
}

func TestTokenManager_RejectedSecrets(t *testing.T) {
	api := &fakeAPI{
		exchangeFn: func() (*helix.AppAccessTokenResponse, error) {
			resp := &helix.AppAccessTokenResponse{}
			resp.StatusCode = http.StatusForbidden
			resp.ErrorMessage = "invalid client secret"
			return resp, nil
		},
	}
	tm := NewTokenManager(api, clockwork.NewFakeClock(), zerolog.Nop())

	_, err := tm.Token()
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestTokenManager_NetworkFailureIsTransient(t *testing.T) {
	api := &fakeAPI{
		exchangeFn: func() (*helix.AppAccessTokenResponse, error) {
			return nil, assert.AnError
		},
	}
	tm := NewTokenManager(api, clockwork.NewFakeClock(), zerolog.Nop())

	_, err := tm.Token()
	var transient *TransientError
	assert.ErrorAs(t, err, &transient)
}

func TestTokenManager_ConcurrentRefreshDeduplicated(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{}
	api.exchangeFn = func() (*helix.AppAccessTokenResponse, error) {
		<-release
		resp := &helix.AppAccessTokenResponse{ResponseCommon: ok()}
		resp.Data.AccessToken = "tok"
		resp.Data.ExpiresIn = 3600
		return resp, nil
	}
	tm := NewTokenManager(api, clockwork.NewFakeClock(), zerolog.Nop())

	const callers = 5
	var wg sync.WaitGroup
	tokens := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cred, err := tm.Token()
			if err == nil {
				tokens <- cred.Token
			}
		}()
	}

	// Let the callers pile up on the in-flight exchange before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(tokens)

	count := 0
	for tok := range tokens {
		assert.Equal(t, "tok", tok)
		count++
	}
	assert.Equal(t, callers, count)
	assert.Equal(t, 1, api.exchangeCount())
}

func TestCredential_Valid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		cred  Credential
		valid bool
	}{
		{"empty", Credential{}, false},
		{"plenty of lifetime", Credential{Token: "t", ExpiresAt: now.Add(time.Hour)}, true},
		{"inside safety margin", Credential{Token: "t", ExpiresAt: now.Add(4 * time.Minute)}, false},
		{"expired", Credential{Token: "t", ExpiresAt: now.Add(-time.Minute)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.cred.Valid(now))
		})
	}
}
