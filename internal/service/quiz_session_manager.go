package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"smartprep_backend/internal/util"
	"smartprep_backend/pkg/logger"
	"smartprep_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// QuizSessionManager 每个用户最多一个在线会话，空闲超时后回收
type QuizSessionManager struct {
	source      QuestionSource
	store       ProgressStore
	credentials *CredentialService
	idle        time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*QuizSession
}

func NewQuizSessionManager(source QuestionSource, store ProgressStore, credentials *CredentialService, idle time.Duration) *QuizSessionManager {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &QuizSessionManager{
		source:      source,
		store:       store,
		credentials: credentials,
		idle:        idle,
		now:         time.Now,
		sessions:    make(map[string]*QuizSession),
	}
}

// Open 返回用户现有会话，或换取凭证、加载进度后新建一个
func (m *QuizSessionManager) Open(ctx context.Context, identity *util.Claims) (*QuizSession, error) {
	cred, err := m.credentials.Obtain(identity)
	if err != nil {
		return nil, err
	}
	userID := identity.UserID()

	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok {
		m.mu.Unlock()
		s.UpdateCredential(cred)
		return s, nil
	}
	m.mu.Unlock()

	s := NewQuizSession(userID, cred, m.source, m.store)
	if err := s.Start(ctx); err != nil {
		s.Close()
		// 存储拒绝了缓存的凭证，下次重新签发
		if errors.Is(err, util.ErrAuthenticationRequired) {
			m.credentials.Revoke(userID)
		}
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// 并发 Open 时保留先注册的会话
	if existing, ok := m.sessions[userID]; ok {
		s.Close()
		return existing, nil
	}
	m.sessions[userID] = s
	monitoring.ActiveSessions.Set(float64(len(m.sessions)))
	logger.Log.Debug("Quiz session opened", zap.String("userId", userID), zap.String("sessionId", s.ID))
	return s, nil
}

// Get 返回已存在的会话，并刷新其存储凭证
func (m *QuizSessionManager) Get(identity *util.Claims) (*QuizSession, error) {
	if identity == nil || identity.UserID() == "" {
		return nil, util.ErrAuthenticationRequired
	}
	m.mu.Lock()
	s, ok := m.sessions[identity.UserID()]
	m.mu.Unlock()
	if !ok {
		return nil, util.ErrSessionNotFound
	}

	cred, err := m.credentials.Obtain(identity)
	if err != nil {
		return nil, err
	}
	s.UpdateCredential(cred)
	return s, nil
}

func (m *QuizSessionManager) Close(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	if ok {
		delete(m.sessions, userID)
	}
	monitoring.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (m *QuizSessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run 定期回收空闲会话，ctx 取消时关闭全部会话
func (m *QuizSessionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return
		case <-ticker.C:
			if n := m.EvictIdle(); n > 0 {
				logger.Log.Info("Evicted idle quiz sessions", zap.Int("count", n))
			}
		}
	}
}

// EvictIdle 关闭超过空闲时长的会话，提交中的会话不回收
func (m *QuizSessionManager) EvictIdle() int {
	cutoff := m.now().Add(-m.idle)

	m.mu.Lock()
	var stale []*QuizSession
	for userID, s := range m.sessions {
		if s.State() == StateSubmitting {
			continue
		}
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, userID)
		}
	}
	monitoring.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

func (m *QuizSessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*QuizSession)
	monitoring.ActiveSessions.Set(0)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
