package api

import (
	"context"

	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"Investa/internal/model"
	"Investa/pkg/errors"
)

// SubmitProfile PUT /users/me/profile，返回更新后的用户
func (c *Client) SubmitProfile(ctx context.Context, profile model.ProfileData) (*model.UserRecord, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodPut,
		path:   "/users/me/profile",
		body:   profile,
		auth:   true,
	})
	if err != nil {
		if def, ok := errors.As(err); ok && def.Code == errors.InvalidRequest.Code {
			return nil, errors.ProfileInvalid.WithMessage(def.Message).Wrap(err)
		}
		return nil, err
	}
	return parseUser(data)
}

// GetMe GET /users/me
func (c *Client) GetMe(ctx context.Context) (*model.UserRecord, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodGet,
		path:   "/users/me",
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return parseUser(data)
}
