package dto

import "Investa/internal/model"

// SessionView 网关返回给 UI 的会话视图，不包含 token
type SessionView struct {
	IsAuthenticated          bool              `json:"is_authenticated"`
	IsLoggedIn               bool              `json:"is_logged_in"`
	CanAccessProtectedRoutes bool              `json:"can_access_protected_routes"`
	CanMakeInvestments       bool              `json:"can_make_investments"`
	NeedsOnboarding          bool              `json:"needs_onboarding"`
	User                     *model.UserRecord `json:"user,omitempty"`
}

// RegisterResponse 注册成功后返回会话视图与新的引导状态
type RegisterResponse struct {
	Session    SessionView           `json:"session"`
	Onboarding model.OnboardingState `json:"onboarding"`
}

// CountryRuleView 国家列表项
type CountryRuleView struct {
	CountryCode string `json:"country_code"`
	Name        string `json:"name"`
	CallingCode string `json:"calling_code"`
	MinLength   int    `json:"min_length"`
	MaxLength   int    `json:"max_length"`
	FormatHint  string `json:"format_hint"`
	Example     string `json:"example"`
}
