package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
)

const testStoreSecret = "store-secret-for-tests-0123456789"

func testIdentity(userID string) *util.Claims {
	c := &util.Claims{Email: userID + "@smartprep.dev", Name: "Test " + userID}
	c.Subject = userID
	return c
}

// makeQuestions 生成 n 道题，正确答案均为 option_a
func makeQuestions(prefix string, n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{
			ID:         fmt.Sprintf("%s-q%d", prefix, i+1),
			Question:   fmt.Sprintf("question %d", i+1),
			OptionA:    "right",
			OptionB:    "wrong",
			OptionC:    "wrong",
			OptionD:    "wrong",
			CorrectAns: model.OptionA,
		}
	}
	return qs
}

type sourceKey struct {
	role  model.Role
	level int
}

type fakeSource struct {
	mu        sync.Mutex
	questions map[sourceKey][]model.Question
	errs      map[sourceKey]error
	gates     map[sourceKey]chan struct{}
	started   chan sourceKey
	calls     int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		questions: make(map[sourceKey][]model.Question),
		errs:      make(map[sourceKey]error),
		gates:     make(map[sourceKey]chan struct{}),
	}
}

func (f *fakeSource) set(role model.Role, level int, qs []model.Question) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions[sourceKey{role, level}] = qs
}

func (f *fakeSource) fail(role model.Role, level int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[sourceKey{role, level}] = err
}

// block 让对应 key 的请求阻塞到返回的 channel 被关闭
func (f *fakeSource) block(role model.Role, level int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[sourceKey{role, level}] = ch
	if f.started == nil {
		f.started = make(chan sourceKey, 4)
	}
	return ch
}

func (f *fakeSource) FetchQuestions(ctx context.Context, role model.Role, level int) ([]model.Question, error) {
	key := sourceKey{role, level}
	f.mu.Lock()
	f.calls++
	gate := f.gates[key]
	started := f.started
	f.mu.Unlock()

	if gate != nil {
		started <- key
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	qs := f.questions[key]
	out := make([]model.Question, len(qs))
	copy(out, qs)
	return out, nil
}

type savedProgress struct {
	userID   string
	progress model.UnlockProgress
	attempt  model.QuizAttempt
}

type fakeStore struct {
	mu       sync.Mutex
	progress map[string]model.UnlockProgress
	saves    []savedProgress
	loadErr  error
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{progress: make(map[string]model.UnlockProgress)}
}

func (f *fakeStore) LoadProgress(ctx context.Context, cred *StoreCredential, userID string) (model.UnlockProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.progress[userID].WithDefaults(), nil
}

func (f *fakeStore) SaveProgress(ctx context.Context, cred *StoreCredential, userID string, progress model.UnlockProgress, attempt model.QuizAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, savedProgress{userID: userID, progress: progress.Clone(), attempt: attempt})
	if f.saveErr != nil {
		return fmt.Errorf("%w: %v", util.ErrPersistenceFailed, f.saveErr)
	}
	f.progress[userID] = f.progress[userID].Merge(progress)
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeStore) lastSave() savedProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

// fakeBackend 内存中的 ProgressBackend，可切换为写入失败
type fakeBackend struct {
	mu        sync.Mutex
	unlocked  map[string]model.UnlockProgress
	attempts  map[string]*model.QuizAttempt
	profiles  map[string]model.UserProfile
	failSave  bool
	failLoad  bool
	saveCalls int
}

var errBackendDown = errors.New("backend down")

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		unlocked: make(map[string]model.UnlockProgress),
		attempts: make(map[string]*model.QuizAttempt),
		profiles: make(map[string]model.UserProfile),
	}
}

func (b *fakeBackend) setFailSave(v bool) {
	b.mu.Lock()
	b.failSave = v
	b.mu.Unlock()
}

func (b *fakeBackend) LoadUnlocked(ctx context.Context, userID string) (model.UnlockProgress, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad {
		return nil, errBackendDown
	}
	return b.unlocked[userID].Clone(), nil
}

func (b *fakeBackend) LoadLastAttempt(ctx context.Context, userID string) (*model.QuizAttempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failLoad {
		return nil, errBackendDown
	}
	return b.attempts[userID], nil
}

func (b *fakeBackend) SaveProgress(ctx context.Context, userID string, progress model.UnlockProgress, attempt *model.QuizAttempt) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveCalls++
	if b.failSave {
		return errBackendDown
	}
	b.unlocked[userID] = b.unlocked[userID].Merge(progress)
	if attempt != nil {
		a := *attempt
		b.attempts[userID] = &a
	}
	return nil
}

func (b *fakeBackend) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave {
		return errBackendDown
	}
	profile.Points = b.profiles[profile.UserID].Points
	b.profiles[profile.UserID] = profile
	return nil
}

func (b *fakeBackend) AddPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failSave {
		return 0, errBackendDown
	}
	p := b.profiles[userID]
	p.UserID = userID
	p.Points += delta
	b.profiles[userID] = p
	return p.Points, nil
}

func (b *fakeBackend) LoadProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.prompt = prompt
	return g.reply, g.err
}
