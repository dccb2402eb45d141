package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"Investa/internal/model"
	"Investa/internal/model/dto"
	"Investa/internal/session"
	"Investa/pkg/token"
)

var testSecret = []byte("service-test")

func mustPair(t *testing.T, accessTTL time.Duration) (string, string) {
	t.Helper()
	a, r, err := token.GenerateTokenPair(testSecret, "u1", accessTTL, time.Hour)
	require.NoError(t, err)
	return a, r
}

// storeWith 返回一个带 token 对的内存 Store
func storeWith(t *testing.T, accessTTL time.Duration, user *model.UserRecord) *session.Store {
	t.Helper()
	s := session.NewStore(nil)
	a, r := mustPair(t, accessTTL)
	require.NoError(t, s.SetTokens(context.Background(), a, r))
	if user != nil {
		require.NoError(t, s.SetUser(context.Background(), user))
	}
	return s
}

type refreshResult struct {
	resp *dto.TokenResponse
	err  error
}

// fakeRefreshAPI 依次返回 results，最后一个重复使用；gate 非空时每次调用都等待放行
type fakeRefreshAPI struct {
	mu      sync.Mutex
	results []refreshResult
	calls   int32
	gate    chan struct{}
	seen    []string
}

func (f *fakeRefreshAPI) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, refreshToken)
	idx := int(n) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	r := f.results[idx]
	return r.resp, r.err
}

func (f *fakeRefreshAPI) Calls() int {
	return int(atomic.LoadInt32(&f.calls))
}

// fakeProfileAPI 资料接口
type fakeProfileAPI struct {
	mu         sync.Mutex
	submitUser *model.UserRecord
	submitErr  error
	meUser     *model.UserRecord
	meErr      error
	submits    int
	gate       chan struct{}
}

func (f *fakeProfileAPI) SubmitProfile(ctx context.Context, p model.ProfileData) (*model.UserRecord, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return f.submitUser.Clone(), f.submitErr
}

func (f *fakeProfileAPI) GetMe(ctx context.Context) (*model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meUser.Clone(), f.meErr
}

// fakeSubscriptionAPI 订阅接口
type fakeSubscriptionAPI struct {
	mu        sync.Mutex
	trial     *model.TrialResult
	trialErr  error
	trials    int
	mine      *model.Subscription
	mineErr   error
	cancelled []string
	gate      chan struct{}
}

func (f *fakeSubscriptionAPI) StartFreeTrial(ctx context.Context) (*model.TrialResult, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trials++
	return f.trial, f.trialErr
}

func (f *fakeSubscriptionAPI) GetMySubscription(ctx context.Context) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mine, f.mineErr
}

func (f *fakeSubscriptionAPI) CancelSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return &model.Subscription{ID: id, Status: model.SubscriptionCancelled}, nil
}

// recordingSink 记录发布的事件
type recordingSink struct {
	mu     sync.Mutex
	events []model.OnboardingEvent
}

func (r *recordingSink) PublishOnboardingEvent(ctx context.Context, ev model.OnboardingEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) Steps() []model.OnboardingStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.OnboardingStep, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.To)
	}
	return out
}
