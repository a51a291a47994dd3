package service

import (
	"context"
	"fmt"
	"strings"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
)

// ProgressService 会话之外的进度查询与用户资料同步
type ProgressService struct {
	store       *ProgressStoreAdapter
	credentials *CredentialService
}

func NewProgressService(store *ProgressStoreAdapter, credentials *CredentialService) *ProgressService {
	return &ProgressService{store: store, credentials: credentials}
}

// swagger:model ProgressView
type ProgressView struct {
	UnlockedLevels  model.UnlockProgress `json:"unlockedLevels"`
	LastQuizAttempt *model.QuizAttempt   `json:"lastQuizAttempt,omitempty"`
	PendingSync     bool                 `json:"pendingSync"`
}

func (s *ProgressService) Progress(ctx context.Context, identity *util.Claims) (*ProgressView, error) {
	cred, err := s.credentials.Obtain(identity)
	if err != nil {
		return nil, err
	}
	userID := identity.UserID()

	progress, err := s.store.LoadProgress(ctx, cred, userID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.store.LastAttempt(ctx, cred, userID)
	if err != nil {
		return nil, err
	}
	return &ProgressView{
		UnlockedLevels:  progress,
		LastQuizAttempt: attempt,
		PendingSync:     s.store.HasPending(userID),
	}, nil
}

// SyncUser 把身份令牌中的邮箱与姓名合并进用户文档
func (s *ProgressService) SyncUser(ctx context.Context, identity *util.Claims) (*model.UserProfile, error) {
	cred, err := s.credentials.Obtain(identity)
	if err != nil {
		return nil, err
	}
	profile := model.UserProfile{
		UserID: identity.UserID(),
		Email:  identity.Email,
		Name:   strings.TrimSpace(identity.Name),
	}
	if err := s.store.SyncProfile(ctx, cred, profile); err != nil {
		return nil, err
	}
	stored, err := s.store.Profile(ctx, cred, profile.UserID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return &profile, nil
	}
	return stored, nil
}

// Profile 读取当前用户文档，不存在时返回 ErrUserNotFound
func (s *ProgressService) Profile(ctx context.Context, identity *util.Claims) (*model.UserProfile, error) {
	cred, err := s.credentials.Obtain(identity)
	if err != nil {
		return nil, err
	}
	profile, err := s.store.Profile(ctx, cred, identity.UserID())
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, util.ErrUserNotFound
	}
	return profile, nil
}

// MaxPointsDelta 单次积分变动的上限（绝对值）
const MaxPointsDelta = 10000

// AddPoints 给当前用户累加积分，delta 可为负
func (s *ProgressService) AddPoints(ctx context.Context, identity *util.Claims, delta int64) (int64, error) {
	if delta == 0 || delta > MaxPointsDelta || delta < -MaxPointsDelta {
		return 0, fmt.Errorf("%w: %d", util.ErrInvalidPoints, delta)
	}
	cred, err := s.credentials.Obtain(identity)
	if err != nil {
		return 0, err
	}
	return s.store.AddPoints(ctx, cred, identity.UserID(), delta)
}
