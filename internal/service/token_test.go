package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Investa/internal/model"
	"Investa/internal/model/dto"
	"Investa/internal/session"
	"Investa/pkg/errors"
)

func TestEnsureValidAccessToken_ValidTokenNoRefresh(t *testing.T) {
	store := storeWith(t, time.Hour, nil)
	api := &fakeRefreshAPI{}
	m := NewTokenManager(store, api, 0)

	access, err := m.EnsureValidAccessToken(context.Background())
	require.NoError(t, err)
	want, _ := store.Tokens()
	assert.Equal(t, want, access)
	assert.Zero(t, api.Calls())
}

func TestEnsureValidAccessToken_ConcurrentCallersShareOneRefresh(t *testing.T) {
	store := storeWith(t, -time.Minute, nil)
	newA, newR := mustPair(t, time.Hour)
	api := &fakeRefreshAPI{
		gate:    make(chan struct{}),
		results: []refreshResult{{resp: &dto.TokenResponse{AccessToken: newA, RefreshToken: newR}}},
	}
	m := NewTokenManager(store, api, 0)

	const callers = 20
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = m.EnsureValidAccessToken(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return api.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(api.gate)
	wg.Wait()

	assert.Equal(t, 1, api.Calls())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, newA, tokens[i])
	}
	gotA, gotR := store.Tokens()
	assert.Equal(t, newA, gotA)
	assert.Equal(t, newR, gotR)
}

func TestEnsureValidAccessToken_NetworkRetriedOnce(t *testing.T) {
	store := storeWith(t, -time.Minute, nil)
	newA, newR := mustPair(t, time.Hour)
	api := &fakeRefreshAPI{results: []refreshResult{
		{err: errors.NetworkUnavailable},
		{resp: &dto.TokenResponse{AccessToken: newA, RefreshToken: newR}},
	}}
	m := NewTokenManager(store, api, time.Millisecond)

	access, err := m.EnsureValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, newA, access)
	assert.Equal(t, 2, api.Calls())
}

func TestEnsureValidAccessToken_SecondNetworkFailureLogsOut(t *testing.T) {
	store := storeWith(t, -time.Minute, &model.UserRecord{ID: "u1"})
	api := &fakeRefreshAPI{results: []refreshResult{{err: errors.NetworkUnavailable}}}
	m := NewTokenManager(store, api, time.Millisecond)

	_, err := m.EnsureValidAccessToken(context.Background())
	assert.ErrorIs(t, err, errors.LoggedOut)
	assert.Equal(t, errors.KindAuth, errors.KindOf(err))
	assert.Equal(t, 2, api.Calls())

	a, r := store.Tokens()
	assert.Empty(t, a)
	assert.Empty(t, r)
	assert.Nil(t, store.GetUser())
}

func TestEnsureValidAccessToken_AuthFailureNotRetried(t *testing.T) {
	store := storeWith(t, -time.Minute, nil)
	api := &fakeRefreshAPI{results: []refreshResult{{err: errors.RefreshTokenInvalid}}}
	m := NewTokenManager(store, api, time.Millisecond)

	_, err := m.EnsureValidAccessToken(context.Background())
	assert.ErrorIs(t, err, errors.LoggedOut)
	assert.Equal(t, 1, api.Calls())
	assert.False(t, store.VerifyToken())
}

func TestEnsureValidAccessToken_MissingRefreshToken(t *testing.T) {
	store := session.NewStore(nil)
	api := &fakeRefreshAPI{}
	m := NewTokenManager(store, api, 0)

	_, err := m.EnsureValidAccessToken(context.Background())
	assert.ErrorIs(t, err, errors.LoggedOut)
	assert.Zero(t, api.Calls())
}

func TestEnsureValidAccessToken_RefreshUpdatesUser(t *testing.T) {
	store := storeWith(t, -time.Minute, &model.UserRecord{ID: "u1", KYCStatus: model.KYCPending})
	newA, newR := mustPair(t, time.Hour)
	api := &fakeRefreshAPI{results: []refreshResult{{resp: &dto.TokenResponse{
		AccessToken:  newA,
		RefreshToken: newR,
		User:         &model.UserRecord{ID: "u1", KYCStatus: model.KYCApproved},
	}}}}
	m := NewTokenManager(store, api, 0)

	_, err := m.EnsureValidAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.KYCApproved, store.GetUser().KYCStatus)
}

func TestEnsureValidAccessToken_CallerCancellationDoesNotFailOthers(t *testing.T) {
	store := storeWith(t, -time.Minute, nil)
	newA, newR := mustPair(t, time.Hour)
	api := &fakeRefreshAPI{
		gate:    make(chan struct{}),
		results: []refreshResult{{resp: &dto.TokenResponse{AccessToken: newA, RefreshToken: newR}}},
	}
	m := NewTokenManager(store, api, 0)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancelledErr := make(chan error, 1)
	go func() {
		_, err := m.EnsureValidAccessToken(cancelCtx)
		cancelledErr <- err
	}()
	require.Eventually(t, func() bool { return api.Calls() == 1 }, time.Second, time.Millisecond)

	otherTok := make(chan string, 1)
	go func() {
		tok, _ := m.EnsureValidAccessToken(context.Background())
		otherTok <- tok
	}()

	cancel()
	assert.ErrorIs(t, <-cancelledErr, context.Canceled)

	close(api.gate)
	assert.Equal(t, newA, <-otherTok)
	assert.Equal(t, 1, api.Calls())
}

func TestEnsureValidAccessToken_LogoutDuringRefreshWins(t *testing.T) {
	store := storeWith(t, -time.Minute, nil)
	newA, newR := mustPair(t, time.Hour)
	api := &fakeRefreshAPI{
		gate:    make(chan struct{}),
		results: []refreshResult{{resp: &dto.TokenResponse{AccessToken: newA, RefreshToken: newR}}},
	}
	m := NewTokenManager(store, api, 0)

	done := make(chan error, 1)
	go func() {
		_, err := m.EnsureValidAccessToken(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return api.Calls() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, store.ClearAll(context.Background()))
	close(api.gate)

	assert.ErrorIs(t, <-done, errors.LoggedOut)
	assert.False(t, store.VerifyToken())
}

func TestEnsureValidAccessToken_ExpiredRefreshResultLogsOut(t *testing.T) {
	store := storeWith(t, -time.Minute, &model.UserRecord{ID: "u1"})
	staleA, staleR := mustPair(t, -time.Second)
	api := &fakeRefreshAPI{results: []refreshResult{{resp: &dto.TokenResponse{AccessToken: staleA, RefreshToken: staleR}}}}
	m := NewTokenManager(store, api, 0)

	_, err := m.EnsureValidAccessToken(context.Background())
	assert.ErrorIs(t, err, errors.LoggedOut)
	assert.ErrorIs(t, err, errors.RefreshTokenInvalid)
	assert.False(t, store.Snapshot().HasTokenPair())
	assert.Nil(t, store.GetUser())
}

func TestEnsureValidAccessToken_MalformedRefreshResultLogsOut(t *testing.T) {
	store := storeWith(t, -time.Minute, nil)
	api := &fakeRefreshAPI{results: []refreshResult{{resp: &dto.TokenResponse{AccessToken: "not-a-jwt", RefreshToken: "r"}}}}
	m := NewTokenManager(store, api, 0)

	_, err := m.EnsureValidAccessToken(context.Background())
	assert.ErrorIs(t, err, errors.LoggedOut)
	a, _ := store.Tokens()
	assert.Empty(t, a)
}

func TestRefreshRejected_ForcesRefreshOfUnexpiredToken(t *testing.T) {
	store := storeWith(t, time.Hour, nil)
	rejected, oldR := store.Tokens()
	newA, newR := mustPair(t, 2*time.Hour)
	api := &fakeRefreshAPI{results: []refreshResult{{resp: &dto.TokenResponse{AccessToken: newA, RefreshToken: newR}}}}
	m := NewTokenManager(store, api, 0)

	access, err := m.RefreshRejected(context.Background(), rejected)
	require.NoError(t, err)
	assert.Equal(t, newA, access)
	assert.Equal(t, []string{oldR}, api.seen)

	// 已经换过 token 时不再刷新
	access, err = m.RefreshRejected(context.Background(), rejected)
	require.NoError(t, err)
	assert.Equal(t, newA, access)
	assert.Equal(t, 1, api.Calls())
}

func TestEndSession_ClearsAndReportsLoggedOut(t *testing.T) {
	store := storeWith(t, time.Hour, &model.UserRecord{ID: "u1"})
	m := NewTokenManager(store, &fakeRefreshAPI{}, 0)

	err := m.EndSession(context.Background(), errors.Unauthorized)
	assert.ErrorIs(t, err, errors.LoggedOut)
	assert.ErrorIs(t, err, errors.Unauthorized)
	assert.False(t, store.VerifyToken())
	assert.Nil(t, store.GetUser())
}
