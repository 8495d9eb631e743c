// Package auth はパスワード認証とリフレッシュトークンによるセッション管理を提供する。
// ユーザーごとに有効なリフレッシュトークンは常に1つだけで、users行に保存される。
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
	"github.com/hitoshi/taskman/internal/token"
)

// TokenIssuer はトークンの発行・検証のインターフェース。
type TokenIssuer interface {
	IssueAccessToken(userID, email string) (string, error)
	IssueRefreshToken(userID, email string) (string, error)
	VerifyRefreshToken(tokenString string) (*token.Claims, error)
	RefreshTokenExpiry() time.Time
}

var _ TokenIssuer = (*token.Service)(nil)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// RefreshTokenRotation が有効な場合、リフレッシュのたびに新しいリフレッシュトークンを発行する。
	RefreshTokenRotation bool
}

// RegisterInput はユーザー登録の入力。
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginResult はログイン成功時の結果。
type LoginResult struct {
	User         *model.PublicUser
	AccessToken  string
	RefreshToken string
}

// RefreshResult はトークン更新の結果。
// RefreshTokenはローテーション有効時のみ設定される。
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	hasher   PasswordHasher
	metrics  metrics.MetricsCollector
	config   ServiceConfig
	now      func() time.Time
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	tokens TokenIssuer,
	hasher PasswordHasher,
	mc metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		metrics:  mc,
		config:   config,
		now:      time.Now,
	}
}

// Register はユーザーを登録する。登録直後はセッションを持たない。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.PublicUser, error) {
	email := strings.TrimSpace(in.Email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeFailure)
		return nil, model.NewEmailConflictError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェック後に同時登録された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeFailure)
			return nil, model.NewEmailConflictError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordAuthEvent(metrics.EventRegister, metrics.OutcomeSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return user.Public(), nil
}

// Login はメールアドレスとパスワードで認証し、トークンペアを発行する。
// 新しいリフレッシュトークンで保存値を上書きするため、以前のセッションは無効になる。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeFailure)
		return nil, model.NewUserNotFoundError()
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeFailure)
			slog.Info("login rejected", slog.String("user_id", user.ID), slog.String("reason", "password_mismatch"))
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, err
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	expiresAt := s.tokens.RefreshTokenExpiry()
	if err := s.userRepo.SetRefreshToken(ctx, user.ID, refresh, &expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.metrics.RecordAuthEvent(metrics.EventLogin, metrics.OutcomeSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		User:         user.Public(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Refresh は提示されたリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// 提示値は署名検証に加え、保存値とバイト単位で一致する必要がある。
func (s *Service) Refresh(ctx context.Context, presented string) (*RefreshResult, error) {
	if presented == "" {
		s.metrics.RecordAuthEvent(metrics.EventRefresh, metrics.OutcomeFailure)
		return nil, model.NewUnauthenticatedError()
	}

	claims, err := s.tokens.VerifyRefreshToken(presented)
	if err != nil {
		return nil, s.rejectRefresh("", "verification_failed")
	}
	userID := claims.UserID()

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, s.rejectRefresh(userID, "user_not_found")
	}
	if !user.HasActiveSession() ||
		subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return nil, s.rejectRefresh(userID, "token_mismatch")
	}

	access, err := s.tokens.IssueAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	result := &RefreshResult{AccessToken: access}

	if s.config.RefreshTokenRotation {
		next, err := s.tokens.IssueRefreshToken(user.ID, user.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to issue refresh token: %w", err)
		}
		swapped, err := s.userRepo.SwapRefreshToken(ctx, user.ID, presented, next, s.tokens.RefreshTokenExpiry())
		if err != nil {
			return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		// 同じトークンによる並行リフレッシュに負けた場合
		if !swapped {
			return nil, s.rejectRefresh(userID, "rotation_conflict")
		}
		result.RefreshToken = next
	}

	s.metrics.RecordAuthEvent(metrics.EventRefresh, metrics.OutcomeSuccess)
	return result, nil
}

func (s *Service) rejectRefresh(userID, reason string) error {
	s.metrics.RecordAuthEvent(metrics.EventRefresh, metrics.OutcomeFailure)
	slog.Info("refresh rejected", slog.String("user_id", userID), slog.String("reason", reason))
	return model.NewInvalidTokenError()
}

// Logout は保存済みのリフレッシュトークンを消去する。
// 発行済みのアクセストークンは有効期限まで失効しない。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewUserNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.userRepo.SetRefreshToken(ctx, userID, "", nil); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("failed to clear refresh token: %w", err)
	}

	s.metrics.RecordAuthEvent(metrics.EventLogout, metrics.OutcomeSuccess)
	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// CurrentUser は指定ユーザーの公開情報を返す。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user.Public(), nil
}
