package service

import (
	"Investa/internal/model"
	"Investa/internal/session"
)

// Facade 从 Session Store 派生出的能力判断，每次调用都重新计算，不做缓存
type Facade struct {
	store *session.Store
}

func NewFacade(store *session.Store) *Facade {
	return &Facade{store: store}
}

// Capabilities 某一时刻的全部判断
type Capabilities struct {
	IsAuthenticated          bool `json:"is_authenticated"`
	IsLoggedIn               bool `json:"is_logged_in"`
	CanAccessProtectedRoutes bool `json:"can_access_protected_routes"`
	CanMakeInvestments       bool `json:"can_make_investments"`
	NeedsOnboarding          bool `json:"needs_onboarding"`
}

func (f *Facade) IsAuthenticated() bool {
	return f.Capabilities().IsAuthenticated
}

func (f *Facade) IsLoggedIn() bool {
	return f.Capabilities().IsLoggedIn
}

func (f *Facade) CanAccessProtectedRoutes() bool {
	return f.Capabilities().CanAccessProtectedRoutes
}

func (f *Facade) CanMakeInvestments() bool {
	return f.Capabilities().CanMakeInvestments
}

func (f *Facade) NeedsOnboarding() bool {
	return f.Capabilities().NeedsOnboarding
}

// Capabilities 基于同一份会话快照计算
func (f *Facade) Capabilities() Capabilities {
	authenticated, user := f.store.AuthState()
	return derive(authenticated, user)
}

func derive(authenticated bool, user *model.UserRecord) Capabilities {
	c := Capabilities{IsAuthenticated: authenticated}
	if !authenticated || user == nil {
		return c
	}

	c.IsLoggedIn = true
	c.CanAccessProtectedRoutes = user.PhoneVerified
	c.CanMakeInvestments = c.CanAccessProtectedRoutes && user.KYCStatus == model.KYCApproved
	c.NeedsOnboarding = !user.ProfileCompleted || (!user.HasActiveSubscription && !user.TrialUsed)
	return c
}
