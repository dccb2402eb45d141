package model

import "time"

// SubscriptionStatus 订阅状态
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription 由订阅服务持有，这里只读
type Subscription struct {
	ID          string             `json:"id"`
	Status      SubscriptionStatus `json:"status"`
	Plan        string             `json:"plan"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	RenewalDate *time.Time         `json:"renewal_date,omitempty"`
	AutoRenew   bool               `json:"auto_renew"`
}

// IsLive trial 和 active 都算有效订阅
func (s *Subscription) IsLive() bool {
	return s != nil && (s.Status == SubscriptionTrial || s.Status == SubscriptionActive)
}

// TrialResult startFreeTrial 的结果
type TrialResult struct {
	Success      bool          `json:"success"`
	Subscription *Subscription `json:"subscription,omitempty"`
}
