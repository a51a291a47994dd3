package service

import (
	"fmt"
	"sync"
	"time"

	"smartprep_backend/internal/config"
	"smartprep_backend/internal/util"
)

// credentialRefreshSkew 凭证到期前提前刷新
const credentialRefreshSkew = 30 * time.Second

// StoreCredential 访问进度存储所需的凭证，由身份令牌换取
type StoreCredential struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (c *StoreCredential) Expired(now time.Time) bool {
	return c == nil || !now.Before(c.ExpiresAt)
}

// CredentialService 负责身份令牌与进度存储凭证的交换，按用户缓存至有效期结束
type CredentialService struct {
	secret string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]*StoreCredential
}

func NewCredentialService(cfg config.StoreConfig) *CredentialService {
	ttl := cfg.CredentialTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CredentialService{
		secret: cfg.Secret,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]*StoreCredential),
	}
}

// Obtain 幂等：有效期内重复调用返回同一凭证
func (s *CredentialService) Obtain(identity *util.Claims) (*StoreCredential, error) {
	if identity == nil || identity.UserID() == "" {
		return nil, util.ErrAuthenticationRequired
	}
	userID := identity.UserID()
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cred, ok := s.cache[userID]; ok && now.Add(credentialRefreshSkew).Before(cred.ExpiresAt) {
		return cred, nil
	}

	expiresAt := now.Add(s.ttl)
	token, err := util.GenerateStoreToken(userID, s.secret, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign store credential: %w", err)
	}
	cred := &StoreCredential{Token: token, UserID: userID, ExpiresAt: expiresAt}
	s.cache[userID] = cred
	return cred, nil
}

// Verify 校验凭证签名、有效期以及是否属于 userID
func (s *CredentialService) Verify(cred *StoreCredential, userID string) error {
	if cred == nil || cred.Token == "" || userID == "" {
		return util.ErrAuthenticationRequired
	}
	if cred.Expired(s.now()) {
		return fmt.Errorf("%w: credential expired", util.ErrAuthenticationRequired)
	}
	claims, err := util.ParseStoreToken(cred.Token, s.secret)
	if err != nil {
		return fmt.Errorf("%w: %v", util.ErrAuthenticationRequired, err)
	}
	if claims.Subject != userID {
		return fmt.Errorf("%w: credential issued for another user", util.ErrAuthenticationRequired)
	}
	return nil
}

// Revoke 丢弃缓存的凭证
func (s *CredentialService) Revoke(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}
