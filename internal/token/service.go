// Package token はアクセストークンとリフレッシュトークンの発行・検証を提供する。
// 2種類のトークンは独立したシークレットで署名され、状態を持たない。
package token

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// AccessTokenTTL はアクセストークンの有効期間。Cookieの有効期限と一致させる。
	AccessTokenTTL = 15 * time.Minute
	// RefreshTokenTTL はリフレッシュトークンの有効期間。Cookieの有効期限と一致させる。
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken はトークン検証失敗を表す。
// 署名不正・期限切れ・形式不正は呼び出し元に区別して返さない。
var ErrInvalidToken = errors.New("invalid or expired token")

// Config はトークンサービスの設定。
type Config struct {
	AccessSecret  string
	RefreshSecret string
}

// Claims はトークンに含めるクレーム。SubjectにユーザーIDを格納する。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID はクレームのsubjectを返す。
func (c *Claims) UserID() string {
	return c.Subject
}

// Service はJWTの発行と検証を行う。
type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	now           func() time.Time
}

// Option はServiceの生成オプション。
type Option func(*Service)

// WithClock は時刻取得関数を差し替える。テストで期限切れを再現するために使う。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService はServiceを生成する。
// シークレットが未設定、または2つのシークレットが同一の場合はエラーを返す。
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("access token secret is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh token secret is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh token secrets must differ")
	}

	s := &Service{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// IssueAccessToken はアクセストークンを発行する。
func (s *Service) IssueAccessToken(userID, email string) (string, error) {
	return s.issue(userID, email, s.accessSecret, AccessTokenTTL)
}

// IssueRefreshToken はリフレッシュトークンを発行する。
func (s *Service) IssueRefreshToken(userID, email string) (string, error) {
	return s.issue(userID, email, s.refreshSecret, RefreshTokenTTL)
}

// VerifyAccessToken はアクセストークンの署名と有効期限を検証する。
func (s *Service) VerifyAccessToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.accessSecret, "access")
}

// VerifyRefreshToken はリフレッシュトークンの署名と有効期限を検証する。
func (s *Service) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.refreshSecret, "refresh")
}

// RefreshTokenExpiry は発行時刻から見たリフレッシュトークンの失効時刻を返す。
func (s *Service) RefreshTokenExpiry() time.Time {
	return s.now().Add(RefreshTokenTTL)
}

func (s *Service) issue(userID, email string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) verify(tokenString string, secret []byte, kind string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		slog.Debug("token verification failed",
			slog.String("token_kind", kind),
			slog.String("reason", err.Error()),
		)
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
