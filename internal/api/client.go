package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"Investa/pkg/errors"
	"Investa/pkg/logger"
	"Investa/pkg/metrics"
)

// TokenSource 为需要鉴权的请求提供 access token，通常是 service.TokenManager
type TokenSource interface {
	EnsureValidAccessToken(ctx context.Context) (string, error)
	// RefreshRejected 服务端以 401 拒绝了 rejected，强制刷新后返回新 token
	RefreshRejected(ctx context.Context, rejected string) (string, error)
	// EndSession 刷新后仍被拒绝，清除会话并返回 errors.LoggedOut
	EndSession(ctx context.Context, cause error) error
}

// Options 客户端配置
type Options struct {
	BaseURL     string
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Tracing     bool
}

// Client 后端 API 客户端，所有接口共用一个 Hertz client
type Client struct {
	hc      *client.Client
	baseURL string
	tokens  TokenSource
}

// New 创建客户端
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("api base url is empty")
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}

	hc, err := client.NewClient(
		client.WithDialTimeout(opts.DialTimeout),
		client.WithClientReadTimeout(opts.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hertz client: %w", err)
	}
	if opts.Tracing {
		hc.Use(hertztracing.ClientMiddleware())
	}

	return &Client{
		hc:      hc,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}, nil
}

// SetTokenSource token 管理器本身依赖 Client 刷新，只能在构造后注入
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// call 描述一次请求
type call struct {
	method  string
	path    string
	body    interface{}
	auth    bool // 需要 bearer token
	refresh bool // refresh 接口，400/401/403 都视为 refresh token 失效
	noRetry bool // 401 时不刷新重放
}

// StatusError 后端返回的非 2xx 响应，作为 Definition 的 cause 保留
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// do 发送请求，返回 data 部分；非 2xx 与传输错误都会转换为带 Kind 的错误。
// 带 bearer 的请求收到 401 时刷新一次并重放，仍然 401 则结束会话。
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	var body []byte
	if cl.body != nil {
		raw, err := json.Marshal(cl.body)
		if err != nil {
			return nil, errors.InvalidRequest.Wrap(err)
		}
		body = raw
	}

	if !cl.auth {
		return c.send(ctx, cl, body, "")
	}

	if c.tokens == nil {
		return nil, errors.Unauthorized
	}
	access, err := c.tokens.EnsureValidAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.send(ctx, cl, body, access)
	if cl.noRetry || !rejected(err) {
		return data, err
	}

	logger.Logger.Info("Access token rejected by server, refreshing",
		zap.String("path", cl.path),
	)
	access, err = c.tokens.RefreshRejected(ctx, access)
	if err != nil {
		return nil, err
	}
	data, err = c.send(ctx, cl, body, access)
	if rejected(err) {
		return nil, c.tokens.EndSession(ctx, err)
	}
	return data, err
}

func (c *Client) send(ctx context.Context, cl call, body []byte, access string) ([]byte, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer protocol.ReleaseRequest(req)
	defer protocol.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + cl.path)
	req.SetMethod(cl.method)
	req.SetHeader("Accept", "application/json")
	req.SetHeader("X-Request-Id", uuid.NewString())
	if access != "" {
		req.SetHeader("Authorization", "Bearer "+access)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json")
		req.SetBody(body)
	}

	start := time.Now()
	if err := c.hc.Do(ctx, req, resp); err != nil {
		metrics.GetMetrics().RecordAPIRequest(ctx, cl.path, 0, time.Since(start))
		logger.Logger.Warn("Backend request failed",
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Error(err),
		)
		return nil, errors.NetworkUnavailable.Wrap(err)
	}

	status := resp.StatusCode()
	respBody := append([]byte(nil), resp.Body()...)
	metrics.GetMetrics().RecordAPIRequest(ctx, cl.path, status, time.Since(start))

	if status >= 200 && status < 300 {
		return unwrapData(respBody), nil
	}

	return nil, mapStatus(status, respBody, cl.refresh)
}

// rejected 服务端以 401 拒绝了 bearer token
func rejected(err error) bool {
	var se *StatusError
	return stderrors.As(err, &se) && se.Status == consts.StatusUnauthorized
}

// unwrapData 兼容 {data, meta} 信封与裸对象两种返回
func unwrapData(body []byte) []byte {
	if len(body) == 0 {
		return []byte("{}")
	}
	if d := gjson.GetBytes(body, "data"); d.Exists() && d.Type != gjson.Null {
		return []byte(d.Raw)
	}
	return body
}

// mapStatus 状态码决定错误类别；后端给出的错误码属于同一类别时沿用它的定义
func mapStatus(status int, body []byte, refresh bool) error {
	code := gjson.GetBytes(body, "error.code").String()
	msg := firstString(body, "error.message", "message", "error", "detail")

	var def errors.Definition
	switch {
	case refresh && (status == consts.StatusBadRequest || status == consts.StatusUnauthorized || status == consts.StatusForbidden):
		def = errors.RefreshTokenInvalid
	case status == consts.StatusRequestTimeout, status == consts.StatusTooManyRequests, status >= 500:
		def = errors.NetworkUnavailable
	case status == consts.StatusConflict:
		def = errors.Conflict
	case status == consts.StatusForbidden:
		def = errors.Forbidden
	case status == consts.StatusUnauthorized:
		def = errors.Unauthorized
	case status == consts.StatusNotFound:
		def = errors.NotFound
	case status >= 400:
		def = errors.InvalidRequest
	default:
		def = errors.Internal
	}

	if known, ok := errors.Lookup[code]; ok && known.Kind == def.Kind && !refresh {
		def = known
	}
	if msg != "" && def.Kind != errors.KindNetwork {
		def = def.WithMessage(msg)
	}

	return def.Wrap(&StatusError{Status: status, Code: code, Message: msg})
}

func firstString(body []byte, paths ...string) string {
	for _, p := range paths {
		if r := gjson.GetBytes(body, p); r.Type == gjson.String && r.String() != "" {
			return r.String()
		}
	}
	return ""
}
