package api

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"Investa/internal/model"
	"Investa/internal/model/dto"
	"Investa/pkg/errors"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name,omitempty"`
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
}

type verifyPhoneBody struct {
	Phone string `json:"phone,omitempty"`
	Code  string `json:"code"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

// Login POST /auth/login
func (c *Client) Login(ctx context.Context, email, password string) (*dto.TokenResponse, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodPost,
		path:   "/auth/login",
		body:   loginBody{Email: email, Password: password},
	})
	if err != nil {
		if errors.IsKind(err, errors.KindAuth) {
			return nil, errors.InvalidCredentials.Wrap(err)
		}
		return nil, err
	}
	return parseTokens(data)
}

// Register POST /auth/register，phone 必须已经是规范形式
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*dto.TokenResponse, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodPost,
		path:   "/auth/register",
		body: registerBody{
			Email:       req.Email,
			Password:    req.Password,
			FullName:    req.FullName,
			Phone:       req.Phone,
			CountryCode: req.CountryCode,
		},
	})
	if err != nil {
		if errors.IsKind(err, errors.KindConflict) {
			if def, _ := errors.As(err); def.Code == errors.Conflict.Code {
				return nil, errors.PhoneAlreadyUsed.Wrap(err)
			}
		}
		return nil, err
	}
	return parseTokens(data)
}

// VerifyPhone POST /auth/verify-phone，返回更新后的用户
func (c *Client) VerifyPhone(ctx context.Context, phone, code string) (*model.UserRecord, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodPost,
		path:   "/auth/verify-phone",
		body:   verifyPhoneBody{Phone: phone, Code: code},
		auth:   true,
	})
	if err != nil {
		if errors.IsKind(err, errors.KindValidation) {
			return nil, errors.VerificationInvalid.Wrap(err)
		}
		return nil, err
	}
	return parseUser(data)
}

// RefreshToken POST /auth/refresh，不带 bearer
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	data, err := c.do(ctx, call{
		method:  consts.MethodPost,
		path:    "/auth/refresh",
		body:    refreshBody{RefreshToken: refreshToken},
		refresh: true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := dto.ParseTokenResponse(data)
	if err != nil {
		return nil, errors.RefreshTokenInvalid.Wrap(err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.RefreshTokenInvalid.WithMessage("Refresh response did not contain a token pair")
	}
	return resp, nil
}

// Logout POST /auth/logout，401 时不刷新，调用方随后总会清除本地会话
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, call{
		method:  consts.MethodPost,
		path:    "/auth/logout",
		auth:    true,
		noRetry: true,
	})
	return err
}

func parseTokens(data []byte) (*dto.TokenResponse, error) {
	resp, err := dto.ParseTokenResponse(data)
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, errors.Internal.Wrap(fmt.Errorf("auth response did not contain a token pair"))
	}
	return resp, nil
}

func parseUser(data []byte) (*model.UserRecord, error) {
	user, err := dto.ParseUserRecord(data)
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	return user, nil
}
