package token

import (
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	IdentityKey = "uid"

	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims 是客户端能读到的 token 结构信息，签名由后端校验
type Claims struct {
	UserID    string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time // 零值表示没有 exp 声明
}

var parser = jwtv5.NewParser(jwtv5.WithoutClaimsValidation())

// Parse 只做结构解析，不校验签名：客户端没有密钥
func Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty token")
	}

	mapClaims := jwtv5.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, mapClaims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims := &Claims{}

	exp, err := mapClaims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("invalid exp claim: %w", err)
	}
	if exp != nil {
		claims.ExpiresAt = exp.Time
	}

	iat, err := mapClaims.GetIssuedAt()
	if err != nil {
		return nil, fmt.Errorf("invalid iat claim: %w", err)
	}
	if iat != nil {
		claims.IssuedAt = iat.Time
	}

	switch uid := mapClaims[IdentityKey].(type) {
	case string:
		claims.UserID = uid
	case float64:
		claims.UserID = fmt.Sprintf("%.0f", uid)
	default:
		if sub, err := mapClaims.GetSubject(); err == nil {
			claims.UserID = sub
		}
	}

	if t, ok := mapClaims["type"].(string); ok {
		claims.Type = t
	}

	return claims, nil
}

// IsUsable 判断 access token 是否存在、结构合法且在 leeway 之外未过期，不会 panic
func IsUsable(raw string, now time.Time, leeway time.Duration) bool {
	claims, err := Parse(raw)
	if err != nil {
		return false
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return now.Add(leeway).Before(claims.ExpiresAt)
}

// GenerateTokenPair 生成 access token 和 refresh token，供本地假后端与测试签发
func GenerateTokenPair(secret []byte, userID string, accessTTL, refreshTTL time.Duration) (accessToken, refreshToken string, err error) {
	now := time.Now()

	accessToken, err = sign(secret, jwtv5.MapClaims{
		IdentityKey: userID,
		"type":      TypeAccess,
		"jti":       uuid.NewString(),
		"iat":       now.Unix(),
		"exp":       now.Add(accessTTL).Unix(),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = sign(secret, jwtv5.MapClaims{
		IdentityKey: userID,
		"type":      TypeRefresh,
		"jti":       uuid.NewString(),
		"iat":       now.Unix(),
		"exp":       now.Add(refreshTTL).Unix(),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

func sign(secret []byte, claims jwtv5.MapClaims) (string, error) {
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(secret)
}
