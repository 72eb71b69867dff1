// Package auth 校验上游签发的 Bearer JWT，并把调用方身份放进请求上下文。
// 令牌由身份服务签发，这里只负责验证。
package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/web"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Principal 是经过验证的调用方。Token 保留原始凭证，供下游调用显式转发。
type Principal struct {
	UserID   string
	Username string
	Email    string
	Roles    []string
	Token    string
}

func (p Principal) IsAdmin() bool {
	return slices.Contains(p.Roles, constants.RoleAdmin)
}

// Claims 是令牌载荷，sub 为用户 ID。
type Claims struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify 解析并校验令牌，失败统一归为 Unauthorized。
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.WithMessage(apperr.ErrUnauthorized, err.Error())
	}
	if !token.Valid {
		return nil, errors.WithMessage(apperr.ErrUnauthorized, "invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.WithMessage(apperr.ErrUnauthorized, "token has no subject")
	}

	return &Principal{
		UserID:   claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
		Roles:    claims.Roles,
		Token:    tokenString,
	}, nil
}

// Issue 按同一密钥签发令牌，供本地联调与测试使用。
func (v *Verifier) Issue(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: p.Username,
		Email:    p.Email,
		Roles:    p.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Middleware 要求请求携带有效的 Bearer 令牌。
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			web.WriteError(r.Context(), w, errors.WithMessage(apperr.ErrUnauthorized, "missing bearer token"))
			return
		}
		principal, err := v.Verify(raw)
		if err != nil {
			web.WriteError(r.Context(), w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
