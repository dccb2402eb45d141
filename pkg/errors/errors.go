package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 是错误的大类，决定重试与展示策略。
type Kind string

const (
	KindValidation Kind = "validation" // 客户端校验失败，例如手机号格式
	KindConflict   Kind = "conflict"   // 试用已使用或已有有效订阅
	KindForbidden  Kind = "forbidden"  // 前置条件不满足，例如资料未完善
	KindAuth       Kind = "auth"       // 凭证无效或过期
	KindNetwork    Kind = "network"    // 临时的传输失败
	KindNotFound   Kind = "not_found"
	KindLimited    Kind = "rate_limited"
	KindInternal   Kind = "internal"
)

func (d Definition) Error() string {
	return d.Message
}

// Is 按错误码匹配，WithMessage 之后仍然等于原 Definition。
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	return ok && t.Code == d.Code
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
	Kind    Kind
}

// Wrap 附带底层原因，errors.Is 仍然可以按错误码匹配 Definition。
func (d Definition) Wrap(cause error) error {
	if cause == nil {
		return d
	}
	return &Error{Definition: d, Cause: cause}
}

// WithMessage 替换展示信息，错误码和类别不变。
func (d Definition) WithMessage(msg string) Definition {
	d.Message = msg
	return d
}

// Error 是带原因的 Definition。
type Error struct {
	Definition
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is 按错误码匹配，忽略 Message 的差异。
func (e *Error) Is(target error) bool {
	def, ok := target.(Definition)
	return ok && def.Code == e.Code
}

// 认证相关错误。
var (
	Unauthorized        = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized", Kind: KindAuth}
	LoggedOut           = Definition{Code: "SESSION_LOGGED_OUT", Message: "Your session has ended, please log in again", Kind: KindAuth}
	RefreshTokenInvalid = Definition{Code: "REFRESH_TOKEN_INVALID", Message: "Refresh token invalid or expired", Kind: KindAuth}
	InvalidCredentials  = Definition{Code: "INVALID_CREDENTIALS", Message: "Invalid credentials", Kind: KindAuth}
	TokenPairIncomplete = Definition{Code: "TOKEN_PAIR_INCOMPLETE", Message: "Access and refresh token must be set together", Kind: KindValidation}
	VerificationInvalid = Definition{Code: "VERIFICATION_CODE_INVALID", Message: "Verification code invalid", Kind: KindValidation}
	PhoneAlreadyUsed    = Definition{Code: "PHONE_ALREADY_REGISTERED", Message: "Phone already registered", Kind: KindConflict}
)

// 手机号错误。
var (
	PhoneInvalid       = Definition{Code: "INVALID_PHONE", Message: "Phone number invalid", Kind: KindValidation}
	UnsupportedCountry = Definition{Code: "UNSUPPORTED_COUNTRY", Message: "Country not supported", Kind: KindValidation}
)

// 引导流程错误。
var (
	OnboardingStepInvalid = Definition{Code: "ONBOARDING_STEP_INVALID", Message: "Onboarding step invalid", Kind: KindValidation}
	OnboardingBusy        = Definition{Code: "ONBOARDING_BUSY", Message: "A request is already in progress", Kind: KindValidation}
	ProfileInvalid        = Definition{Code: "PROFILE_INVALID", Message: "Profile data invalid", Kind: KindValidation}
	ProfileIncomplete     = Definition{Code: "PROFILE_INCOMPLETE", Message: "Please complete your profile before starting the free trial", Kind: KindForbidden}
	TrialUnavailable      = Definition{Code: "TRIAL_UNAVAILABLE", Message: "Free trial already used or a subscription is already active", Kind: KindConflict}
)

// 订阅错误。
var (
	SubscriptionNotFound = Definition{Code: "SUBSCRIPTION_NOT_FOUND", Message: "Subscription not found", Kind: KindNotFound}
)

// 通用错误。
var (
	InvalidRequest     = Definition{Code: "INVALID_REQUEST", Message: "Invalid request", Kind: KindValidation}
	Conflict           = Definition{Code: "CONFLICT", Message: "Conflict", Kind: KindConflict}
	Forbidden          = Definition{Code: "FORBIDDEN", Message: "Forbidden", Kind: KindForbidden}
	NotFound           = Definition{Code: "NOT_FOUND", Message: "Not found", Kind: KindNotFound}
	NetworkUnavailable = Definition{Code: "NETWORK_UNAVAILABLE", Message: "Network unavailable, please try again", Kind: KindNetwork}
	TooManyRequests    = Definition{Code: "RATE_LIMITED", Message: "Too many attempts, please try again later", Kind: KindLimited}
	Internal           = Definition{Code: "INTERNAL_ERROR", Message: "Unexpected error", Kind: KindInternal}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	Unauthorized.Code:          Unauthorized,
	LoggedOut.Code:             LoggedOut,
	RefreshTokenInvalid.Code:   RefreshTokenInvalid,
	InvalidCredentials.Code:    InvalidCredentials,
	TokenPairIncomplete.Code:   TokenPairIncomplete,
	VerificationInvalid.Code:   VerificationInvalid,
	PhoneAlreadyUsed.Code:      PhoneAlreadyUsed,
	PhoneInvalid.Code:          PhoneInvalid,
	UnsupportedCountry.Code:    UnsupportedCountry,
	OnboardingStepInvalid.Code: OnboardingStepInvalid,
	OnboardingBusy.Code:        OnboardingBusy,
	ProfileInvalid.Code:        ProfileInvalid,
	ProfileIncomplete.Code:     ProfileIncomplete,
	TrialUnavailable.Code:      TrialUnavailable,
	SubscriptionNotFound.Code:  SubscriptionNotFound,
	InvalidRequest.Code:        InvalidRequest,
	Conflict.Code:              Conflict,
	Forbidden.Code:             Forbidden,
	NotFound.Code:              NotFound,
	NetworkUnavailable.Code:    NetworkUnavailable,
	TooManyRequests.Code:       TooManyRequests,
	Internal.Code:              Internal,
}

// Get 根据错误码返回 Definition，若不存在则返回 Internal 类别的 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error", Kind: KindInternal}
}

// As 取出错误链上的 Definition。
func As(err error) (Definition, bool) {
	var wrapped *Error
	if stderrors.As(err, &wrapped) {
		return wrapped.Definition, true
	}
	var def Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// KindOf 对任意错误分类，未知错误归为 internal。
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if def, ok := As(err); ok && def.Kind != "" {
		return def.Kind
	}
	return KindInternal
}

// IsKind 判断错误是否属于某个类别。
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
