package handler

import (
	"Investa/internal/model/dto"
	"Investa/internal/service"
	"Investa/internal/session"
)

// Handler 本地网关的 HTTP 处理器，UI 壳通过它驱动认证与引导流程
type Handler struct {
	auth   *service.AuthService
	facade *service.Facade
	store  *session.Store
}

func New(auth *service.AuthService, facade *service.Facade, store *session.Store) *Handler {
	return &Handler{auth: auth, facade: facade, store: store}
}

// sessionView 能力判断与用户记录来自同一时刻的会话，token 不出网关
func (h *Handler) sessionView() dto.SessionView {
	caps := h.facade.Capabilities()
	view := dto.SessionView{
		IsAuthenticated:          caps.IsAuthenticated,
		IsLoggedIn:               caps.IsLoggedIn,
		CanAccessProtectedRoutes: caps.CanAccessProtectedRoutes,
		CanMakeInvestments:       caps.CanMakeInvestments,
		NeedsOnboarding:          caps.NeedsOnboarding,
	}
	if caps.IsAuthenticated {
		view.User = h.store.GetUser()
	}
	return view
}
