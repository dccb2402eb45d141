package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"Investa/internal/model"
	"Investa/internal/session"
	"Investa/pkg/errors"
	"Investa/pkg/logger"
	"Investa/pkg/metrics"
)

// ProfileAPI 资料服务
type ProfileAPI interface {
	SubmitProfile(ctx context.Context, profile model.ProfileData) (*model.UserRecord, error)
	GetMe(ctx context.Context) (*model.UserRecord, error)
}

// SubscriptionAPI 订阅服务
type SubscriptionAPI interface {
	StartFreeTrial(ctx context.Context) (*model.TrialResult, error)
	GetMySubscription(ctx context.Context) (*model.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*model.Subscription, error)
}

// EventSink 状态迁移事件的去处，可以为空
type EventSink interface {
	PublishOnboardingEvent(ctx context.Context, ev model.OnboardingEvent) error
}

// 迁移触发原因
const (
	triggerProfileSubmitted = "profile_submitted"
	triggerProfileFailed    = "profile_failed"
	triggerTrialStarted     = "trial_started"
	triggerTrialFailed      = "trial_failed"
	triggerSettled          = "settled"
	triggerSkipped          = "skipped"
	triggerResumed          = "resumed"
)

// OrchestratorOptions 可选配置
type OrchestratorOptions struct {
	SettleDelay time.Duration // 试用开通后停留在 TRIAL_ACTIVE 的时间，0 表示立即完成
	Events      EventSink
	OnComplete  func(model.OnboardingState) // 进入 COMPLETE 或 SKIPPED 时调用一次
	Now         func() time.Time
}

// Orchestrator 注册后的引导流程状态机，OnboardingState 只在这里修改。
//
// 锁只覆盖内存状态，网络调用在锁外进行；异步结果在返回时按当时的状态判断是否生效，
// 过期的结果不会让状态倒退。
type Orchestrator struct {
	mu          sync.Mutex
	state       model.OnboardingState
	profileBusy bool
	trialBusy   bool
	closed      bool
	notified    bool
	settleTimer *time.Timer

	store    *session.Store
	profiles ProfileAPI
	subs     SubscriptionAPI
	opts     OrchestratorOptions
	log      *zap.Logger
}

func NewOrchestrator(store *session.Store, profiles ProfileAPI, subs SubscriptionAPI, opts OrchestratorOptions) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Orchestrator{
		state:    model.OnboardingState{Step: model.StepProfilePending},
		store:    store,
		profiles: profiles,
		subs:     subs,
		opts:     opts,
		log:      logger.Named("onboarding"),
	}
}

// State 返回状态副本
func (o *Orchestrator) State() model.OnboardingState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

// Closed 流程已结束或已被关闭
func (o *Orchestrator) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Start 根据已有的资料与订阅决定从哪一步继续
func (o *Orchestrator) Start(ctx context.Context) model.OnboardingState {
	o.mu.Lock()
	if o.closed || o.state.Step != model.StepProfilePending || o.profileBusy {
		defer o.mu.Unlock()
		return o.stateLocked()
	}
	o.mu.Unlock()

	user := o.store.GetUser()
	profileDone := user != nil && user.ProfileCompleted

	var live *model.Subscription
	sub, err := o.subs.GetMySubscription(ctx)
	switch {
	case err == nil && sub.IsLive():
		live = sub
	case err != nil && !errors.IsKind(err, errors.KindNotFound):
		o.log.Warn("Failed to load subscription while resuming onboarding", zap.Error(err))
	}

	var events []model.OnboardingEvent
	o.mu.Lock()
	if !o.closed && o.state.Step == model.StepProfilePending && !o.profileBusy {
		switch {
		case live != nil:
			o.state.Subscription = live
			events = append(events, o.transitionLocked(model.StepComplete, triggerResumed, nil))
		case profileDone:
			events = append(events, o.transitionLocked(model.StepTrialPending, triggerResumed, nil))
		}
	}
	state, fire := o.finishIfTerminalLocked()
	o.mu.Unlock()

	o.publish(ctx, events)
	o.fireCompletion(state, fire)
	return state
}

// SubmitProfile PROFILE_PENDING 下提交资料，成功后进入 TRIAL_PENDING
func (o *Orchestrator) SubmitProfile(ctx context.Context, profile model.ProfileData) error {
	validated, verr := ValidateProfile(ctx, profile, o.opts.Now())

	o.mu.Lock()
	if err := o.guardLocked(model.StepProfilePending, o.profileBusy); err != nil {
		o.mu.Unlock()
		return err
	}
	if verr != nil {
		o.state.LastError = toOnboardingError(verr)
		o.mu.Unlock()
		return verr
	}
	o.profileBusy = true
	o.state.LastError = nil
	o.mu.Unlock()

	user, err := o.profiles.SubmitProfile(ctx, validated)
	if err == nil {
		o.updateUser(ctx, user, func(u *model.UserRecord) {
			u.ProfileCompleted = true
			u.FullName = validated.FullName
			u.Phone = validated.Phone
			u.CountryCode = validated.CountryCode
		})
	}

	var events []model.OnboardingEvent
	o.mu.Lock()
	o.profileBusy = false
	switch {
	case err != nil:
		if !o.closed && o.state.Step == model.StepProfilePending {
			o.state.LastError = toOnboardingError(err)
			events = append(events, o.transitionLocked(model.StepProfilePending, triggerProfileFailed, err))
		}
	case !o.closed && o.state.Step == model.StepProfilePending:
		events = append(events, o.transitionLocked(model.StepTrialPending, triggerProfileSubmitted, nil))
	default:
		o.log.Info("Ignoring profile result for a state that moved on", zap.String("step", string(o.state.Step)))
	}
	o.mu.Unlock()

	o.publish(ctx, events)
	return err
}

// ActivateTrial TRIAL_PENDING 下开通免费试用
func (o *Orchestrator) ActivateTrial(ctx context.Context) error {
	o.mu.Lock()
	if err := o.guardLocked(model.StepTrialPending, o.trialBusy); err != nil {
		o.mu.Unlock()
		return err
	}
	o.trialBusy = true
	o.state.LastError = nil
	o.mu.Unlock()

	res, err := o.subs.StartFreeTrial(ctx)
	if err == nil && (res == nil || !res.Success) {
		err = errors.Internal.WithMessage("We could not start your free trial, please try again")
	}
	err = mapTrialError(err)

	var events []model.OnboardingEvent
	activated := false
	o.mu.Lock()
	o.trialBusy = false
	switch {
	case err != nil:
		if !o.closed && o.state.Step == model.StepTrialPending {
			o.state.LastError = toOnboardingError(err)
			events = append(events, o.transitionLocked(model.StepTrialPending, triggerTrialFailed, err))
		}
	case !o.closed && o.state.Step == model.StepTrialPending:
		o.state.Subscription = res.Subscription
		events = append(events, o.transitionLocked(model.StepTrialActive, triggerTrialStarted, nil))
		activated = true
	default:
		o.log.Info("Ignoring trial result for a state that moved on", zap.String("step", string(o.state.Step)))
	}
	o.mu.Unlock()

	o.publish(ctx, events)
	if err != nil {
		return err
	}
	if !activated {
		return nil
	}

	o.refreshUserAfterTrial(ctx, res.Subscription)
	o.scheduleCompletion(ctx)
	return nil
}

// Skip 跳过引导，PROFILE_PENDING 与 TRIAL_PENDING 都可以跳过
func (o *Orchestrator) Skip(ctx context.Context) error {
	o.mu.Lock()
	if o.closed || (o.state.Step != model.StepProfilePending && o.state.Step != model.StepTrialPending) {
		o.mu.Unlock()
		return errors.OnboardingStepInvalid
	}
	events := []model.OnboardingEvent{o.transitionLocked(model.StepSkipped, triggerSkipped, nil)}
	state, fire := o.finishIfTerminalLocked()
	o.mu.Unlock()

	o.publish(ctx, events)
	o.fireCompletion(state, fire)
	return nil
}

// ClearError 用户关闭错误提示
func (o *Orchestrator) ClearError() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.LastError = nil
}

// Close 放弃流程，不触发完成回调；登出时调用
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.notified = true
	if o.settleTimer != nil {
		o.settleTimer.Stop()
	}
}

func (o *Orchestrator) scheduleCompletion(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if o.opts.SettleDelay == 0 {
		o.complete(ctx)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.settleTimer = time.AfterFunc(o.opts.SettleDelay, func() { o.complete(ctx) })
}

func (o *Orchestrator) complete(ctx context.Context) {
	var events []model.OnboardingEvent
	o.mu.Lock()
	if !o.closed && o.state.Step == model.StepTrialActive {
		events = append(events, o.transitionLocked(model.StepComplete, triggerSettled, nil))
	}
	state, fire := o.finishIfTerminalLocked()
	o.mu.Unlock()

	o.publish(ctx, events)
	o.fireCompletion(state, fire)
}

// refreshUserAfterTrial 拉取最新用户；失败时在本地标记订阅状态，保证派生判断不过期
func (o *Orchestrator) refreshUserAfterTrial(ctx context.Context, sub *model.Subscription) {
	user, err := o.profiles.GetMe(ctx)
	if err != nil {
		o.log.Warn("Failed to refresh user after trial activation", zap.Error(err))
		user = nil
	}
	o.updateUser(ctx, user, func(u *model.UserRecord) {
		u.HasActiveSubscription = true
		u.TrialUsed = true
		u.SubscriptionStatus = model.SubscriptionTrial
		if sub != nil && sub.Status != "" {
			u.SubscriptionStatus = sub.Status
		}
	})
}

// updateUser 有服务端返回的用户时直接使用，否则在当前用户上打补丁
func (o *Orchestrator) updateUser(ctx context.Context, fresh *model.UserRecord, patch func(*model.UserRecord)) {
	user := fresh
	if user == nil {
		user = o.store.GetUser()
		if user == nil {
			return
		}
		patch(user)
	}
	if err := o.store.SetUser(ctx, user); err != nil {
		o.log.Warn("Failed to persist user", zap.Error(err))
	}
}

func (o *Orchestrator) guardLocked(step model.OnboardingStep, busy bool) error {
	if o.closed || o.state.Step != step {
		return errors.OnboardingStepInvalid
	}
	if busy {
		return errors.OnboardingBusy
	}
	return nil
}

func (o *Orchestrator) transitionLocked(to model.OnboardingStep, trigger string, cause error) model.OnboardingEvent {
	from := o.state.Step
	o.state.Step = to

	ev := model.OnboardingEvent{
		From:       from,
		To:         to,
		Trigger:    trigger,
		OccurredAt: o.opts.Now().UTC(),
	}
	if def, ok := errors.As(cause); ok {
		ev.ErrorCode = def.Code
	}
	return ev
}

// finishIfTerminalLocked 进入终态后关闭状态机，回调只允许触发一次
func (o *Orchestrator) finishIfTerminalLocked() (model.OnboardingState, bool) {
	state := o.stateLocked()
	if !o.state.Step.Terminal() || o.notified {
		return state, false
	}
	o.closed = true
	o.notified = true
	return state, true
}

func (o *Orchestrator) fireCompletion(state model.OnboardingState, fire bool) {
	if fire && o.opts.OnComplete != nil {
		o.opts.OnComplete(state)
	}
}

func (o *Orchestrator) publish(ctx context.Context, events []model.OnboardingEvent) {
	if len(events) == 0 {
		return
	}

	var userID string
	if u := o.store.GetUser(); u != nil {
		userID = u.ID
	}

	for _, ev := range events {
		ev.UserID = userID
		o.log.Info("Onboarding transition",
			zap.String("from", string(ev.From)),
			zap.String("to", string(ev.To)),
			zap.String("trigger", ev.Trigger),
		)
		metrics.GetMetrics().RecordOnboardingTransition(ctx, string(ev.From), string(ev.To), ev.Trigger)

		if o.opts.Events == nil {
			continue
		}
		if err := o.opts.Events.PublishOnboardingEvent(context.WithoutCancel(ctx), ev); err != nil {
			o.log.Warn("Failed to publish onboarding event", zap.Error(err))
		}
	}
}

func (o *Orchestrator) stateLocked() model.OnboardingState {
	s := o.state
	if s.LastError != nil {
		e := *s.LastError
		s.LastError = &e
	}
	if s.Subscription != nil {
		sub := *s.Subscription
		s.Subscription = &sub
	}
	s.Busy = o.profileBusy || o.trialBusy
	return s
}

// mapTrialError 把后端错误转换成可以直接展示给用户的错误
func mapTrialError(err error) error {
	switch errors.KindOf(err) {
	case "":
		return nil
	case errors.KindConflict:
		return errors.TrialUnavailable.Wrap(err)
	case errors.KindForbidden:
		return errors.ProfileIncomplete.Wrap(err)
	case errors.KindNetwork:
		return errors.NetworkUnavailable.Wrap(err)
	default:
		return err
	}
}

func toOnboardingError(err error) *model.OnboardingError {
	def, ok := errors.As(err)
	if !ok {
		def = errors.Internal
	}
	return &model.OnboardingError{
		Kind:    string(def.Kind),
		Code:    def.Code,
		Message: def.Message,
	}
}
