package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Investa/internal/model"
)

type published struct {
	exchange, routingKey, messageID string
	body                            interface{}
}

func TestPublishOnboardingEvent(t *testing.T) {
	var got []published
	p := newEventProducer("onboarding.events",
		func(_ context.Context, exchange, routingKey, messageID string, body interface{}) error {
			got = append(got, published{exchange, routingKey, messageID, body})
			return nil
		},
		func() (int64, error) { return 42, nil },
	)

	ev := model.OnboardingEvent{
		UserID:     "u1",
		From:       model.StepTrialPending,
		To:         model.StepTrialActive,
		Trigger:    "trial_started",
		OccurredAt: time.Now(),
	}
	require.NoError(t, p.PublishOnboardingEvent(context.Background(), ev))

	require.Len(t, got, 1)
	assert.Equal(t, "onboarding.events", got[0].exchange)
	assert.Equal(t, "onboarding.trial_active", got[0].routingKey)
	assert.Equal(t, "onboarding_42", got[0].messageID)

	body, ok := got[0].body.(model.OnboardingEvent)
	require.True(t, ok)
	assert.Equal(t, "onboarding_42", body.MessageID)
	assert.Equal(t, "u1", body.UserID)
}

func TestPublishOnboardingEvent_KeepsExistingID(t *testing.T) {
	var ids []string
	p := newEventProducer("x",
		func(_ context.Context, _, _, messageID string, _ interface{}) error {
			ids = append(ids, messageID)
			return nil
		},
		func() (int64, error) { t.Fatal("id generator should not be called"); return 0, nil },
	)

	require.NoError(t, p.PublishOnboardingEvent(context.Background(), model.OnboardingEvent{MessageID: "given", To: model.StepComplete}))
	assert.Equal(t, []string{"given"}, ids)
}

func TestPublishOnboardingEvent_Errors(t *testing.T) {
	boom := errors.New("boom")

	p := newEventProducer("x",
		func(context.Context, string, string, string, interface{}) error { return boom },
		func() (int64, error) { return 1, nil },
	)
	assert.ErrorIs(t, p.PublishOnboardingEvent(context.Background(), model.OnboardingEvent{To: model.StepSkipped}), boom)

	p = newEventProducer("x",
		func(context.Context, string, string, string, interface{}) error { return nil },
		func() (int64, error) { return 0, boom },
	)
	assert.ErrorIs(t, p.PublishOnboardingEvent(context.Background(), model.OnboardingEvent{To: model.StepSkipped}), boom)
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "onboarding.profile_pending", RoutingKey(model.StepProfilePending))
	assert.Equal(t, "onboarding.complete", RoutingKey(model.StepComplete))
}
