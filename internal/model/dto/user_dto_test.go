package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Investa/internal/model"
)

func TestParseUserRecord_NamingVariants(t *testing.T) {
	snake := []byte(`{
		"id": "u1",
		"full_name": "Amina Otieno",
		"phone_number": "+254712345678",
		"phone_verified": true,
		"kyc_status": "verified",
		"profile_completed": true,
		"subscription_status": "trial",
		"trial_used": true
	}`)
	camel := []byte(`{
		"userId": "u1",
		"fullName": "Amina Otieno",
		"phoneNumber": "+254712345678",
		"phoneVerified": true,
		"kyc": {"status": "approved"},
		"isProfileComplete": true,
		"subscription": {"status": "TRIAL"},
		"hasUsedTrial": true
	}`)

	a, err := ParseUserRecord(snake)
	require.NoError(t, err)
	b, err := ParseUserRecord(camel)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, model.KYCApproved, a.KYCStatus)
	assert.True(t, a.HasActiveSubscription)
	assert.True(t, a.ProfileCompleted)
}

func TestParseUserRecord_Defaults(t *testing.T) {
	u, err := ParseUserRecord([]byte(`{"id": 17, "kyc_status": null}`))
	require.NoError(t, err)
	assert.Equal(t, "17", u.ID)
	assert.Equal(t, model.KYCNotSubmitted, u.KYCStatus)
	assert.False(t, u.PhoneVerified)
	assert.False(t, u.HasActiveSubscription)

	_, err = ParseUserRecord([]byte(`{"email": "x@y.z"}`))
	assert.Error(t, err)
	_, err = ParseUserRecord([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = ParseUserRecord([]byte(`{`))
	assert.Error(t, err)
}

func TestNormalizeKYCStatus(t *testing.T) {
	cases := map[string]model.KYCStatus{
		"approved":     model.KYCApproved,
		"VERIFIED":     model.KYCApproved,
		"under_review": model.KYCPending,
		"submitted":    model.KYCPending,
		"declined":     model.KYCRejected,
		"":             model.KYCNotSubmitted,
		"whatever":     model.KYCNotSubmitted,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeKYCStatus(in), in)
	}
}

func TestParseTokenResponse(t *testing.T) {
	resp, err := ParseTokenResponse([]byte(`{"accessToken":"a","refreshToken":"r","user":{"id":"u1","kycStatus":"pending"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AccessToken)
	assert.Equal(t, "r", resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, model.KYCPending, resp.User.KYCStatus)

	resp, err = ParseTokenResponse([]byte(`{"tokens":{"access":"a2","refresh":"r2"}}`))
	require.NoError(t, err)
	assert.Equal(t, "a2", resp.AccessToken)
	assert.Equal(t, "r2", resp.RefreshToken)
	assert.Nil(t, resp.User)
}

func TestParseTrialResult(t *testing.T) {
	res, err := ParseTrialResult([]byte(`{
		"success": true,
		"subscription": {"id": "s1", "status": "trialing", "plan": "premium",
			"startDate": "2026-01-01T00:00:00Z", "endDate": "2026-01-15T00:00:00Z", "autoRenew": true}
	}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.Subscription)
	assert.Equal(t, model.SubscriptionTrial, res.Subscription.Status)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), res.Subscription.EndDate)
	assert.True(t, res.Subscription.IsLive())

	res, err = ParseTrialResult([]byte(`{"id":"s2","status":"active","end_date":1767225600}`))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "s2", res.Subscription.ID)

	res, err = ParseTrialResult([]byte(`{"success": false}`))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Nil(t, res.Subscription)
}

func TestParseSubscription_Canceled(t *testing.T) {
	sub, err := ParseSubscription([]byte(`{"subscription":{"id":"s1","status":"canceled","renewal_date":"2026-02-01"}}`))
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCancelled, sub.Status)
	require.NotNil(t, sub.RenewalDate)
	assert.False(t, sub.IsLive())
}
