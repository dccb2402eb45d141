package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"Investa/internal/model"
)

var (
	subIDPaths        = []string{"id", "_id", "subscription_id", "subscriptionId"}
	subPlanPaths      = []string{"plan", "plan_name", "planName", "plan.name"}
	subStartPaths     = []string{"start_date", "startDate", "started_at", "startedAt"}
	subEndPaths       = []string{"end_date", "endDate", "expires_at", "expiresAt", "trial_end", "trialEnd"}
	subRenewalPaths   = []string{"renewal_date", "renewalDate", "next_billing_date", "nextBillingDate"}
	subAutoRenewPaths = []string{"auto_renew", "autoRenew"}
	subWrapperPaths   = []string{"subscription"}
	trialSuccessPaths = []string{"success", "ok"}
)

// ParseSubscription 解析订阅对象，兼容外层包了一层 subscription 的返回
func ParseSubscription(raw []byte) (*model.Subscription, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid subscription payload")
	}
	root := gjson.ParseBytes(raw)
	if inner := first(root, subWrapperPaths); inner.IsObject() {
		root = inner
	}
	return subscriptionFromResult(root)
}

// ParseTrialResult 解析 startFreeTrial 的返回；没有 success 字段时以是否带订阅判断
func ParseTrialResult(raw []byte) (*model.TrialResult, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid trial payload")
	}
	root := gjson.ParseBytes(raw)

	result := &model.TrialResult{}
	if inner := first(root, subWrapperPaths); inner.IsObject() {
		sub, err := subscriptionFromResult(inner)
		if err != nil {
			return nil, err
		}
		result.Subscription = sub
	} else if first(root, []string{"status"}).Exists() {
		sub, err := subscriptionFromResult(root)
		if err != nil {
			return nil, err
		}
		result.Subscription = sub
	}

	if s := first(root, trialSuccessPaths); s.Exists() {
		result.Success = s.Bool()
	} else {
		result.Success = result.Subscription != nil
	}
	return result, nil
}

func subscriptionFromResult(root gjson.Result) (*model.Subscription, error) {
	if !root.IsObject() {
		return nil, fmt.Errorf("subscription payload is not an object")
	}

	sub := &model.Subscription{
		ID:        first(root, subIDPaths).String(),
		Status:    normalizeSubscriptionStatus(root.Get("status").String()),
		Plan:      first(root, subPlanPaths).String(),
		StartDate: parseTime(first(root, subStartPaths)),
		EndDate:   parseTime(first(root, subEndPaths)),
		AutoRenew: first(root, subAutoRenewPaths).Bool(),
	}
	if r := first(root, subRenewalPaths); r.Exists() {
		t := parseTime(r)
		if !t.IsZero() {
			sub.RenewalDate = &t
		}
	}
	return sub, nil
}

func normalizeSubscriptionStatus(raw string) model.SubscriptionStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trial", "trialing", "in_trial":
		return model.SubscriptionTrial
	case "active":
		return model.SubscriptionActive
	case "cancelled", "canceled":
		return model.SubscriptionCancelled
	default:
		return model.SubscriptionExpired
	}
}

// parseTime 支持 RFC3339 字符串与 unix 秒
func parseTime(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		return time.Unix(r.Int(), 0).UTC()
	case gjson.String:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, r.String()); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
