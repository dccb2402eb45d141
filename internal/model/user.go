package model

// KYCStatus 身份认证状态，决定是否可以投资
type KYCStatus string

const (
	KYCNotSubmitted KYCStatus = "not_submitted"
	KYCPending      KYCStatus = "pending"
	KYCApproved     KYCStatus = "approved"
	KYCRejected     KYCStatus = "rejected"
)

// UserRecord 规范化后的用户记录，各接口返回的字段变体在 dto 层统一
type UserRecord struct {
	ID               string    `json:"id"`
	Email            string    `json:"email,omitempty"`
	FullName         string    `json:"full_name,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	CountryCode      string    `json:"country_code,omitempty"`
	PhoneVerified    bool      `json:"phone_verified"`
	KYCStatus        KYCStatus `json:"kyc_status"`
	ProfileCompleted bool      `json:"profile_completed"`

	// 订阅相关，可选
	SubscriptionStatus    SubscriptionStatus `json:"subscription_status,omitempty"`
	HasActiveSubscription bool               `json:"has_active_subscription"`
	TrialUsed             bool               `json:"trial_used"`
}

// Clone 返回副本，避免调用方修改 Store 内部状态
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// ProfileData 资料提交内容
type ProfileData struct {
	FullName             string `json:"full_name"`
	DateOfBirth          string `json:"date_of_birth"` // YYYY-MM-DD
	Nationality          string `json:"nationality"`
	Phone                string `json:"phone"`
	CountryCode          string `json:"country_code"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	Occupation           string `json:"occupation"`
	SourceOfFunds        string `json:"source_of_funds"`
	InvestmentExperience string `json:"investment_experience"` // none, beginner, intermediate, expert
	RiskTolerance        string `json:"risk_tolerance"`        // low, medium, high
}
