package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tendero/internal/pkg/id"
)

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token expired")
)

// Claims 会话令牌 Claims
// 聊天挂件持有该令牌，tenant_id + session_id 共同决定对话归属
type Claims struct {
	TenantID  string `json:"tenant_id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Issuer 会话令牌签发与验证
type Issuer struct {
	secret []byte
	expiry time.Duration
}

// NewIssuer 创建会话令牌工具
func NewIssuer(secret string, expiry time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue 为租户签发新会话，返回 sessionID、令牌和过期时间
func (i *Issuer) Issue(tenantID, userID string) (sessionID, token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(i.expiry)
	sessionID = id.New()

	claims := &Claims{
		TenantID:  tenantID,
		SessionID: sessionID,
		UserID:    userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return sessionID, token, expiresAt, err
}

// Validate 验证令牌并返回 Claims
func (i *Issuer) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
