package service

import (
	"errors"
	"strings"
	"time"

	"github.com/liveshop-next/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenInvalid      = errors.New("token invalid")
	ErrTokenSecretUnset  = errors.New("jwt secret is not configured")
	ErrTokenRoleRequired = errors.New("token role is required")
)

// JWTClaims 履约令牌声明。身份由外部系统签发，令牌只携带操作者 ID 与角色。
type JWTClaims struct {
	ActorID uint   `json:"actor_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService 令牌签发与校验
type AuthService struct {
	secret      string
	expireHours int
}

// NewAuthService 创建令牌服务
func NewAuthService(cfg config.JWTConfig) *AuthService {
	expireHours := cfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	return &AuthService{
		secret:      strings.TrimSpace(cfg.SecretKey),
		expireHours: expireHours,
	}
}

// GenerateToken 为操作者签发令牌
func (s *AuthService) GenerateToken(actorID uint, role string) (string, error) {
	if s.secret == "" {
		return "", ErrTokenSecretUnset
	}
	role = strings.TrimSpace(role)
	if actorID == 0 || role == "" {
		return "", ErrTokenRoleRequired
	}
	now := time.Now()
	claims := JWTClaims{
		ActorID: actorID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// ParseToken 校验令牌并返回声明
func (s *AuthService) ParseToken(tokenString string) (*JWTClaims, error) {
	if s.secret == "" {
		return nil, ErrTokenSecretUnset
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret), nil
	})
	if err != nil || !token.Valid || claims.ActorID == 0 || strings.TrimSpace(claims.Role) == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
