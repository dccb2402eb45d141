package service

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"Investa/internal/model"
	"Investa/internal/model/dto"
	"Investa/internal/session"
	"Investa/pkg/errors"
	"Investa/pkg/logger"
	"Investa/pkg/metrics"
	"Investa/pkg/phone"
	"Investa/utils"
)

// AuthAPI 认证接口
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*dto.TokenResponse, error)
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.TokenResponse, error)
	VerifyPhone(ctx context.Context, phone, code string) (*model.UserRecord, error)
	Logout(ctx context.Context) error
}

// Backend 认证服务需要的全部后端能力，*api.Client 满足它
type Backend interface {
	AuthAPI
	ProfileAPI
	SubscriptionAPI
}

// AccessTokens 由 TokenManager 实现
type AccessTokens interface {
	EnsureValidAccessToken(ctx context.Context) (string, error)
}

// AuthService 登录、注册、验证与登出，并持有当前会话对应的引导流程
type AuthService struct {
	store      *session.Store
	api        Backend
	tokens     AccessTokens
	onboarding OrchestratorOptions

	mu      sync.Mutex
	current *Orchestrator

	log *zap.Logger
}

// NewAuthService tokens 为空时不尝试刷新，过期的 access token 直接视为未登录
func NewAuthService(store *session.Store, api Backend, tokens AccessTokens, onboarding OrchestratorOptions) *AuthService {
	return &AuthService{
		store:      store,
		api:        api,
		tokens:     tokens,
		onboarding: onboarding,
		log:        logger.Named("auth"),
	}
}

// Login 成功后写入 token 与用户
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*model.UserRecord, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, errors.InvalidRequest.WithMessage("Email and password are required")
	}

	resp, err := s.api.Login(ctx, email, req.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.establish(ctx, resp)
	if err != nil {
		return nil, err
	}

	s.resetOnboarding()
	s.log.Info("User logged in", zap.String("user_id", userID(user)))
	return user, nil
}

// Register 手机号先在本地规范化，成功后返回新的引导流程
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*Orchestrator, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.CountryCode = strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if req.Email == "" || len(req.Password) < 8 {
		return nil, errors.InvalidRequest.WithMessage("Email and a password of at least 8 characters are required")
	}

	canonical, err := phone.Validate(req.Phone, req.CountryCode)
	metrics.GetMetrics().RecordPhoneValidation(ctx, req.CountryCode, phoneOutcome(err))
	if err != nil {
		return nil, err
	}
	req.Phone = canonical

	resp, err := s.api.Register(ctx, req)
	if err != nil {
		s.log.Info("Registration rejected",
			zap.String("phone_hash", utils.HashPhone(canonical)),
			zap.String("kind", string(errors.KindOf(err))),
		)
		return nil, err
	}
	user, err := s.establish(ctx, resp)
	if err != nil {
		return nil, err
	}

	s.log.Info("User registered",
		zap.String("user_id", userID(user)),
		zap.String("phone_hash", utils.HashPhone(canonical)),
	)
	return s.resetOnboarding(), nil
}

// VerifyPhone 校验当前用户手机号的验证码
func (s *AuthService) VerifyPhone(ctx context.Context, code string) (*model.UserRecord, error) {
	if err := s.EnsureSession(ctx); err != nil {
		return nil, err
	}
	current := s.store.GetUser()
	if current == nil {
		return nil, errors.Unauthorized
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.VerificationInvalid.WithMessage("Please enter the code we sent you")
	}

	user, err := s.api.VerifyPhone(ctx, current.Phone, code)
	if err != nil {
		return nil, err
	}
	if user == nil {
		user = current
		user.PhoneVerified = true
	}
	if err := s.store.SetUser(ctx, user); err != nil {
		s.log.Warn("Failed to persist verified user", zap.Error(err))
	}
	return user.Clone(), nil
}

// Logout 服务端登出尽力而为，本地会话总是清除
func (s *AuthService) Logout(ctx context.Context) {
	if access, _ := s.store.Tokens(); access != "" {
		if err := s.api.Logout(ctx); err != nil {
			s.log.Warn("Server logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.current != nil {
		s.current.Close()
		s.current = nil
	}
	s.mu.Unlock()

	if err := s.store.ClearAll(ctx); err != nil {
		s.log.Warn("Failed to clear persisted session", zap.Error(err))
	}
}

// EnsureSession 确认存在已登录会话。access token 过期但还有 refresh token 时先刷新，
// 刷新失败时会话已被清除；缺少用户记录时补拉一次。
func (s *AuthService) EnsureSession(ctx context.Context) error {
	if _, refresh := s.store.Tokens(); refresh == "" {
		return errors.Unauthorized
	}
	if s.tokens != nil {
		if _, err := s.tokens.EnsureValidAccessToken(ctx); err != nil {
			return err
		}
	}

	authenticated, user := s.store.AuthState()
	if !authenticated {
		return errors.Unauthorized
	}
	if user != nil {
		return nil
	}

	fetched, err := s.api.GetMe(ctx)
	if err != nil {
		return err
	}
	if fetched == nil {
		return errors.Unauthorized
	}
	if err := s.store.SetUser(ctx, fetched); err != nil {
		s.log.Warn("Failed to persist user", zap.Error(err))
	}
	return nil
}

// Onboarding 返回当前的引导流程，没有时为已登录用户创建一个
func (s *AuthService) Onboarding(ctx context.Context) (*Orchestrator, error) {
	if err := s.EnsureSession(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		s.current = NewOrchestrator(s.store, s.api, s.api, s.onboarding)
	}
	return s.current, nil
}

// MySubscription 当前用户的订阅，没有时返回 SubscriptionNotFound
func (s *AuthService) MySubscription(ctx context.Context) (*model.Subscription, error) {
	return s.api.GetMySubscription(ctx)
}

// CancelSubscription 取消后刷新一次用户记录
func (s *AuthService) CancelSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.InvalidRequest.WithMessage("Subscription id is required")
	}

	sub, err := s.api.CancelSubscription(ctx, id)
	if err != nil {
		return nil, err
	}

	if user, err := s.api.GetMe(ctx); err == nil && user != nil {
		if err := s.store.SetUser(ctx, user); err != nil {
			s.log.Warn("Failed to persist user", zap.Error(err))
		}
	} else if err != nil {
		s.log.Warn("Failed to refresh user after cancellation", zap.Error(err))
	}
	return sub, nil
}

// establish 写入 token 对；响应里没有用户时再拉取一次，拉取失败则整个登录失败，
// 不留下没有用户记录的会话
func (s *AuthService) establish(ctx context.Context, resp *dto.TokenResponse) (*model.UserRecord, error) {
	if resp == nil {
		return nil, errors.Internal.WithMessage("Empty response from server")
	}
	if err := s.store.SetTokens(ctx, resp.AccessToken, resp.RefreshToken); err != nil {
		if errors.IsKind(err, errors.KindValidation) {
			return nil, err
		}
		s.log.Warn("Failed to persist tokens", zap.Error(err))
	}

	user := resp.User
	if user == nil {
		fetched, err := s.api.GetMe(ctx)
		if err == nil && fetched == nil {
			err = errors.Internal.WithMessage("Server returned no user")
		}
		if err != nil {
			s.log.Warn("Failed to load user after sign in, discarding tokens", zap.Error(err))
			if clearErr := s.store.ClearAll(ctx); clearErr != nil {
				s.log.Warn("Failed to clear persisted session", zap.Error(clearErr))
			}
			return nil, err
		}
		user = fetched
	}
	if err := s.store.SetUser(ctx, user); err != nil {
		s.log.Warn("Failed to persist user", zap.Error(err))
	}
	return user.Clone(), nil
}

func (s *AuthService) resetOnboarding() *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Close()
	}
	s.current = NewOrchestrator(s.store, s.api, s.api, s.onboarding)
	return s.current
}

func userID(u *model.UserRecord) string {
	if u == nil {
		return ""
	}
	return u.ID
}
