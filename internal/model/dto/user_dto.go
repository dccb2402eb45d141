package dto

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"Investa/internal/model"
)

// 后端不同接口对同一字段的命名并不统一，这里集中列出所有已知变体，
// 下游只看到规范化后的 model.UserRecord
var (
	idPaths                = []string{"id", "_id", "user_id", "userId"}
	emailPaths             = []string{"email", "email_address", "emailAddress"}
	fullNamePaths          = []string{"full_name", "fullName", "name", "profile.full_name", "profile.fullName"}
	phonePaths             = []string{"phone", "phone_number", "phoneNumber"}
	countryCodePaths       = []string{"country_code", "countryCode", "country"}
	phoneVerifiedPaths     = []string{"phone_verified", "phoneVerified", "is_phone_verified", "isPhoneVerified"}
	kycStatusPaths         = []string{"kyc_status", "kycStatus", "kyc.status"}
	profileCompletedPaths  = []string{"profile_completed", "profileCompleted", "is_profile_complete", "isProfileComplete", "profile.completed"}
	subscriptionPaths      = []string{"subscription.status", "subscription_status", "subscriptionStatus"}
	activeSubscriptionPath = []string{"has_active_subscription", "hasActiveSubscription"}
	trialUsedPaths         = []string{"trial_used", "trialUsed", "has_used_trial", "hasUsedTrial"}
)

// ParseUserRecord 把任意命名风格的用户 JSON 规范化成 UserRecord
func ParseUserRecord(raw []byte) (*model.UserRecord, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid user payload")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, fmt.Errorf("user payload is not an object")
	}
	return userFromResult(root)
}

func userFromResult(root gjson.Result) (*model.UserRecord, error) {
	id := first(root, idPaths)
	if !id.Exists() || id.String() == "" {
		return nil, fmt.Errorf("user payload has no id")
	}

	user := &model.UserRecord{
		ID:                    id.String(),
		Email:                 first(root, emailPaths).String(),
		FullName:              first(root, fullNamePaths).String(),
		Phone:                 first(root, phonePaths).String(),
		CountryCode:           strings.ToUpper(first(root, countryCodePaths).String()),
		PhoneVerified:         first(root, phoneVerifiedPaths).Bool(),
		KYCStatus:             NormalizeKYCStatus(first(root, kycStatusPaths).String()),
		ProfileCompleted:      first(root, profileCompletedPaths).Bool(),
		SubscriptionStatus:    model.SubscriptionStatus(strings.ToLower(first(root, subscriptionPaths).String())),
		HasActiveSubscription: first(root, activeSubscriptionPath).Bool(),
		TrialUsed:             first(root, trialUsedPaths).Bool(),
	}

	// 只给了订阅状态没给布尔值时由状态推导
	if !first(root, activeSubscriptionPath).Exists() {
		user.HasActiveSubscription = user.SubscriptionStatus == model.SubscriptionTrial ||
			user.SubscriptionStatus == model.SubscriptionActive
	}

	return user, nil
}

// NormalizeKYCStatus 后端使用过的各种写法统一到四种状态，未知值视为未提交
func NormalizeKYCStatus(raw string) model.KYCStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "approved", "verified", "completed", "complete":
		return model.KYCApproved
	case "pending", "submitted", "in_review", "under_review", "processing":
		return model.KYCPending
	case "rejected", "failed", "declined":
		return model.KYCRejected
	default:
		return model.KYCNotSubmitted
	}
}

// first 返回第一个存在且非 null 的路径值
func first(root gjson.Result, paths []string) gjson.Result {
	for _, p := range paths {
		if r := root.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}
