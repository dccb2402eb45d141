package dto

import (
	"fmt"

	"github.com/tidwall/gjson"

	"Investa/internal/model"
)

// ========== Auth 相关 DTO ==========

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" vd:"len($)>0"`
	Password string `json:"password" vd:"len($)>0"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email       string `json:"email" vd:"len($)>0"`
	Password    string `json:"password" vd:"len($)>=8"`
	FullName    string `json:"full_name"`
	Phone       string `json:"phone" vd:"len($)>0"`
	CountryCode string `json:"country_code" vd:"len($)>0"`
}

// VerifyPhoneRequest 手机验证码校验请求
type VerifyPhoneRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code" vd:"len($)>0"`
}

// RefreshTokenRequest 刷新 token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// NormalizePhoneRequest 手机号规范化请求
type NormalizePhoneRequest struct {
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
}

// TokenResponse 认证类接口返回的 token 对与可选的用户记录
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	User         *model.UserRecord
}

var (
	accessTokenPaths  = []string{"access_token", "accessToken", "token", "tokens.access", "tokens.access_token"}
	refreshTokenPaths = []string{"refresh_token", "refreshToken", "tokens.refresh", "tokens.refresh_token"}
	userObjectPaths   = []string{"user", "profile"}
)

// ParseTokenResponse 解析 login / register / refresh 的 data 部分
func ParseTokenResponse(raw []byte) (*TokenResponse, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid token payload")
	}
	root := gjson.ParseBytes(raw)

	resp := &TokenResponse{
		AccessToken:  first(root, accessTokenPaths).String(),
		RefreshToken: first(root, refreshTokenPaths).String(),
	}

	if u := first(root, userObjectPaths); u.IsObject() {
		user, err := userFromResult(u)
		if err != nil {
			return nil, fmt.Errorf("failed to parse user: %w", err)
		}
		resp.User = user
	}

	return resp, nil
}
