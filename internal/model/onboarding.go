package model

import "time"

// OnboardingStep 引导流程所处步骤
type OnboardingStep string

const (
	StepProfilePending OnboardingStep = "PROFILE_PENDING"
	StepTrialPending   OnboardingStep = "TRIAL_PENDING"
	StepTrialActive    OnboardingStep = "TRIAL_ACTIVE"
	StepComplete       OnboardingStep = "COMPLETE"
	StepSkipped        OnboardingStep = "SKIPPED"
)

// Terminal COMPLETE 与 SKIPPED 为终态
func (s OnboardingStep) Terminal() bool {
	return s == StepComplete || s == StepSkipped
}

// OnboardingError 唯一的错误槽，可展示给用户
type OnboardingError struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OnboardingState 引导状态，只能由 Orchestrator 修改
type OnboardingState struct {
	Step         OnboardingStep   `json:"step"`
	LastError    *OnboardingError `json:"last_error,omitempty"`
	Subscription *Subscription    `json:"subscription,omitempty"`
	Busy         bool             `json:"busy"`
}

// OnboardingEvent 每次状态迁移发布的事件
type OnboardingEvent struct {
	MessageID  string         `json:"message_id"`
	UserID     string         `json:"user_id"`
	From       OnboardingStep `json:"from"`
	To         OnboardingStep `json:"to"`
	Trigger    string         `json:"trigger"`
	ErrorCode  string         `json:"error_code,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
