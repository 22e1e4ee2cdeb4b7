package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"petlink-go/internal/config"
)

var (
	// ErrTokenRevoked 令牌已被加入黑名单。
	ErrTokenRevoked = errors.New("JWT 已被吊销")
	// ErrTokenMissingID is returned when a revocation check is required but the token has no jti.
	ErrTokenMissingID = errors.New("JWT 缺少 JTI 声明")
)

// Claims carries the authenticated user on every request.
type Claims struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken 为指定用户签发 HS256 令牌，jti 用于吊销。
func GenerateToken(userID uint, username string, authCfg config.AuthConfig) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    authCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(authCfg.JWTExpiry)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(authCfg.JWTSecretKey))
	if err != nil {
		return "", fmt.Errorf("生成 JWT 失败: %w", err)
	}
	return signed, nil
}

// ValidateToken parses tokenString, verifies its signature and expiry, and
// consults blacklist when one is given. A failed blacklist lookup rejects the token.
func ValidateToken(ctx context.Context, tokenString, jwtKey string, blacklist TokenBlacklist) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名算法: %v", token.Header["alg"])
		}
		return []byte(jwtKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("解析或验证 JWT 失败: %w", err)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("JWT 缺少用户 ID")
	}

	if blacklist == nil {
		return claims, nil
	}
	if claims.ID == "" {
		return nil, ErrTokenMissingID
	}
	revoked, err := blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("检查 Token 黑名单失败: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}
