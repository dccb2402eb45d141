package api

import (
	"context"
	"net/url"

	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"Investa/internal/model"
	"Investa/internal/model/dto"
	"Investa/pkg/errors"
)

// StartFreeTrial POST /subscriptions/trial。
// 409 表示试用已用过或已有订阅，403 表示资料未完善。
func (c *Client) StartFreeTrial(ctx context.Context) (*model.TrialResult, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodPost,
		path:   "/subscriptions/trial",
		auth:   true,
	})
	if err != nil {
		return nil, err
	}

	res, err := dto.ParseTrialResult(data)
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	return res, nil
}

// GetMySubscription GET /subscriptions/me，没有订阅时返回 SubscriptionNotFound
func (c *Client) GetMySubscription(ctx context.Context) (*model.Subscription, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodGet,
		path:   "/subscriptions/me",
		auth:   true,
	})
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, errors.SubscriptionNotFound.Wrap(err)
		}
		return nil, err
	}
	if string(data) == "{}" || string(data) == "null" {
		return nil, errors.SubscriptionNotFound
	}

	sub, err := dto.ParseSubscription(data)
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	return sub, nil
}

// CancelSubscription POST /subscriptions/{id}/cancel
func (c *Client) CancelSubscription(ctx context.Context, id string) (*model.Subscription, error) {
	data, err := c.do(ctx, call{
		method: consts.MethodPost,
		path:   "/subscriptions/" + url.PathEscape(id) + "/cancel",
		auth:   true,
	})
	if err != nil {
		if errors.IsKind(err, errors.KindNotFound) {
			return nil, errors.SubscriptionNotFound.Wrap(err)
		}
		return nil, err
	}

	sub, err := dto.ParseSubscription(data)
	if err != nil {
		return nil, errors.Internal.Wrap(err)
	}
	return sub, nil
}
