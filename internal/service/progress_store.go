package service

import (
	"context"
	"fmt"
	"sync"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
	"smartprep_backend/pkg/logger"
	"smartprep_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// ProgressBackend 文档型进度存储（redis hash 或数据库表），写入均为按字段合并
type ProgressBackend interface {
	LoadUnlocked(ctx context.Context, userID string) (model.UnlockProgress, error)
	LoadLastAttempt(ctx context.Context, userID string) (*model.QuizAttempt, error)
	SaveProgress(ctx context.Context, userID string, progress model.UnlockProgress, attempt *model.QuizAttempt) error
	SaveProfile(ctx context.Context, profile model.UserProfile) error
	LoadProfile(ctx context.Context, userID string) (*model.UserProfile, error)
	AddPoints(ctx context.Context, userID string, delta int64) (int64, error)
}

type CredentialVerifier interface {
	Verify(cred *StoreCredential, userID string) error
}

// ProgressStore 会话状态机依赖的进度存储契约
type ProgressStore interface {
	LoadProgress(ctx context.Context, cred *StoreCredential, userID string) (model.UnlockProgress, error)
	SaveProgress(ctx context.Context, cred *StoreCredential, userID string, progress model.UnlockProgress, attempt model.QuizAttempt) error
}

type pendingSave struct {
	progress model.UnlockProgress
	attempt  *model.QuizAttempt
}

// ProgressStoreAdapter 校验凭证、翻译错误，并暂存失败的写入以便下次加载时重试
type ProgressStoreAdapter struct {
	backend  ProgressBackend
	verifier CredentialVerifier

	mu      sync.Mutex
	pending map[string]*pendingSave
}

func NewProgressStoreAdapter(backend ProgressBackend, verifier CredentialVerifier) *ProgressStoreAdapter {
	return &ProgressStoreAdapter{
		backend:  backend,
		verifier: verifier,
		pending:  make(map[string]*pendingSave),
	}
}

func (a *ProgressStoreAdapter) LoadProgress(ctx context.Context, cred *StoreCredential, userID string) (model.UnlockProgress, error) {
	if err := a.verifier.Verify(cred, userID); err != nil {
		return nil, err
	}

	pending := a.retryPending(ctx, userID)

	stored, err := a.backend.LoadUnlocked(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	progress := stored.WithDefaults()
	if pending != nil {
		progress = progress.Merge(pending.progress)
	}
	return progress, nil
}

func (a *ProgressStoreAdapter) SaveProgress(ctx context.Context, cred *StoreCredential, userID string, progress model.UnlockProgress, attempt model.QuizAttempt) error {
	if err := a.verifier.Verify(cred, userID); err != nil {
		return err
	}

	if err := a.backend.SaveProgress(ctx, userID, progress, &attempt); err != nil {
		a.keepPending(userID, progress, &attempt)
		monitoring.ProgressSaveFailures.Inc()
		return fmt.Errorf("%w: %v", util.ErrPersistenceFailed, err)
	}
	a.mu.Lock()
	delete(a.pending, userID)
	a.mu.Unlock()
	return nil
}

// LastAttempt 返回持久化的最近一次测验；尚未写入成功的暂存记录优先
func (a *ProgressStoreAdapter) LastAttempt(ctx context.Context, cred *StoreCredential, userID string) (*model.QuizAttempt, error) {
	if err := a.verifier.Verify(cred, userID); err != nil {
		return nil, err
	}
	a.mu.Lock()
	p := a.pending[userID]
	a.mu.Unlock()
	if p != nil && p.attempt != nil {
		attempt := *p.attempt
		return &attempt, nil
	}
	attempt, err := a.backend.LoadLastAttempt(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	return attempt, nil
}

// HasPending 是否存在待重试的写入
func (a *ProgressStoreAdapter) HasPending(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.pending[userID]
	return ok
}

// SyncProfile 合并写入用户资料，不影响进度字段
func (a *ProgressStoreAdapter) SyncProfile(ctx context.Context, cred *StoreCredential, profile model.UserProfile) error {
	if err := a.verifier.Verify(cred, profile.UserID); err != nil {
		return err
	}
	if err := a.backend.SaveProfile(ctx, profile); err != nil {
		return fmt.Errorf("%w: %v", util.ErrPersistenceFailed, err)
	}
	return nil
}

func (a *ProgressStoreAdapter) Profile(ctx context.Context, cred *StoreCredential, userID string) (*model.UserProfile, error) {
	if err := a.verifier.Verify(cred, userID); err != nil {
		return nil, err
	}
	profile, err := a.backend.LoadProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	return profile, nil
}

// AddPoints 原子累加积分并返回新值
func (a *ProgressStoreAdapter) AddPoints(ctx context.Context, cred *StoreCredential, userID string, delta int64) (int64, error) {
	if err := a.verifier.Verify(cred, userID); err != nil {
		return 0, err
	}
	total, err := a.backend.AddPoints(ctx, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", util.ErrPersistenceFailed, err)
	}
	return total, nil
}

func (a *ProgressStoreAdapter) keepPending(userID string, progress model.UnlockProgress, attempt *model.QuizAttempt) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[userID]
	if !ok {
		a.pending[userID] = &pendingSave{progress: progress.Clone(), attempt: attempt}
		return
	}
	a.pending[userID] = &pendingSave{progress: p.progress.Merge(progress), attempt: attempt}
}

// retryPending 重试上次失败的写入；仍失败时保留并返回暂存内容
func (a *ProgressStoreAdapter) retryPending(ctx context.Context, userID string) *pendingSave {
	a.mu.Lock()
	p, ok := a.pending[userID]
	a.mu.Unlock()
	if !ok {
		return nil
	}

	if err := a.backend.SaveProgress(ctx, userID, p.progress, p.attempt); err != nil {
		logger.Log.Warn("Retry of pending progress save failed",
			zap.String("userId", userID),
			zap.Error(err),
		)
		return p
	}

	a.mu.Lock()
	if a.pending[userID] == p {
		delete(a.pending, userID)
	}
	a.mu.Unlock()
	logger.Log.Info("Pending progress save flushed", zap.String("userId", userID))
	return nil
}
