package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/repository"
)

// SessionServiceConfig はセッション管理の設定。
type SessionServiceConfig struct {
	MaxAge          time.Duration // セッション有効期間
	ExtendThreshold time.Duration // 自動延長を行う残り有効期間のしきい値
}

// SessionService はサーバーサイドセッションのライフサイクルを管理する。
// トークン発行とは独立しており、セッションの削除はトークンに影響しない。
type SessionService struct {
	repo   repository.SessionRepository
	config SessionServiceConfig
	now    func() time.Time
}

// NewSessionService はSessionServiceを生成する。
func NewSessionService(repo repository.SessionRepository, config SessionServiceConfig) *SessionService {
	return &SessionService{
		repo:   repo,
		config: config,
		now:    time.Now,
	}
}

// Create は新しいセッションを作成し永続化する。
// 有効期限は現在時刻 + MaxAge。
func (s *SessionService) Create(ctx context.Context, userID string, data map[string]string) (*model.Session, error) {
	now := s.now()

	sessionData := make(map[string]string, len(data))
	for k, v := range data {
		sessionData[k] = v
	}

	session := &model.Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		Data:           sessionData,
		ExpiresAt:      now.Add(s.config.MaxAge),
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// Get は指定IDのセッションを取得する。見つからない場合・期限切れの場合はnilを返す
// （エラーではない）。取得できた場合はlast_accessed_atを現在時刻に更新し、
// 残り有効期間がしきい値を下回っている場合は有効期限をMaxAge分延長する。
// アクティブなセッションは明示的なリフレッシュなしに自己更新される。
func (s *SessionService) Get(ctx context.Context, id string) (*model.Session, error) {
	session, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	now := s.now()
	if session.ExpiresAt.Sub(now) < s.config.ExtendThreshold {
		newExpiry := now.Add(s.config.MaxAge)
		if err := s.repo.Extend(ctx, id, newExpiry); err != nil {
			return nil, fmt.Errorf("failed to extend session: %w", err)
		}
		session.ExpiresAt = newExpiry
	} else {
		if err := s.repo.Touch(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
	}
	session.LastAccessedAt = now

	return session, nil
}

// Extend は有効期限を現在時刻 + MaxAgeに再設定し、last_accessed_atを更新する。
// セッションが存在しない・期限切れの場合はno-op。
func (s *SessionService) Extend(ctx context.Context, id string) error {
	if err := s.repo.Extend(ctx, id, s.now().Add(s.config.MaxAge)); err != nil {
		return fmt.Errorf("failed to extend session: %w", err)
	}
	return nil
}

// UpdateData は部分データを既存のデータブロブに浅くマージする
// （新しいキーが既存のキーを上書きする）。
// セッションが存在しない・期限切れの場合はnilを返す（エラーではない）。
func (s *SessionService) UpdateData(ctx context.Context, id string, partial map[string]string) (*model.Session, error) {
	session, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	if session.Data == nil {
		session.Data = make(map[string]string, len(partial))
	}
	for k, v := range partial {
		session.Data[k] = v
	}

	if err := s.repo.UpdateData(ctx, id, session.Data); err != nil {
		return nil, fmt.Errorf("failed to update session data: %w", err)
	}
	session.LastAccessedAt = s.now()

	return session, nil
}

// Delete は指定IDのセッションを削除する。対象が無くてもエラーにしない。
func (s *SessionService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions は指定ユーザーの全セッションを削除する。
func (s *SessionService) DeleteUserSessions(ctx context.Context, userID string) error {
	if err := s.repo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// ListUserSessions は指定ユーザーの未期限切れセッション一覧を返す。
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]*model.Session, error) {
	sessions, err := s.repo.ListActiveByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	return sessions, nil
}
