package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
	"smartprep_backend/pkg/logger"
	"smartprep_backend/pkg/monitoring"
	"smartprep_backend/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateLoading    SessionState = "loading"
	StateReady      SessionState = "ready"
	StateAnswering  SessionState = "answering"
	StateSubmitting SessionState = "submitting"
	StateSubmitted  SessionState = "submitted"
	StateError      SessionState = "error"
)

const (
	TriggerManual = "manual"
	TriggerTimer  = "timer"
)

// 计时器触发的提交没有请求上下文，持久化使用独立超时
const expireSaveTimeout = 10 * time.Second

// swagger:model QuizResult
type QuizResult struct {
	Role          model.Role `json:"role"`
	Level         int        `json:"level"`
	Correct       int        `json:"correct"`
	Total         int        `json:"total"`
	Score         int        `json:"score"`
	Passed        bool       `json:"passed"`
	UnlockedLevel int        `json:"unlockedLevel"`
	NewlyUnlocked bool       `json:"newlyUnlocked"`
	Persisted     bool       `json:"persisted"`
	Trigger       string     `json:"trigger"`
	SubmittedAt   time.Time  `json:"submittedAt"`
}

// QuizSession 单个用户的测验状态机：选择岗位/关卡、作答、计分、解锁与进度同步
type QuizSession struct {
	ID     string
	userID string
	cred   *StoreCredential
	source QuestionSource
	store  ProgressStore
	now    func() time.Time

	timer *QuizTimer

	// ready: 状态为 ready/answering；submitted: 当前选择已提交（防重复提交，计时器与手动提交共用）
	ready     atomic.Bool
	submitted atomic.Bool
	// selection 与 generation 同步，供计时器在不持有会话锁时读取
	selection atomic.Uint64

	mu         sync.Mutex
	state      SessionState
	role       model.Role
	level      int
	questions  []model.Question
	answers    map[string]string
	progress   model.UnlockProgress
	result     *QuizResult
	errKind    error
	generation uint64
	lastActive time.Time
}

func NewQuizSession(userID string, cred *StoreCredential, source QuestionSource, store ProgressStore) *QuizSession {
	s := &QuizSession{
		ID:         uuid.NewString(),
		userID:     userID,
		cred:       cred,
		source:     source,
		store:      store,
		now:        time.Now,
		state:      StateIdle,
		role:       model.Roles[0].ID,
		level:      model.MinLevel,
		answers:    make(map[string]string),
		progress:   model.DefaultProgress(),
		lastActive: time.Now(),
	}
	s.timer = newQuizTimer(s.onTimerExpired, s.timerCanRun, s.selection.Load, s.submitted.Load)
	return s
}

func (s *QuizSession) UserID() string {
	return s.userID
}

func (s *QuizSession) Timer() *QuizTimer {
	return s.timer
}

func (s *QuizSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *QuizSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// UpdateCredential 凭证刷新后替换（会话管理器在每次访问时调用）
func (s *QuizSession) UpdateCredential(cred *StoreCredential) {
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
}

// Start 加载解锁进度，缺失的岗位默认第 1 关
func (s *QuizSession) Start(ctx context.Context) error {
	s.mu.Lock()
	cred := s.cred
	s.mu.Unlock()

	progress, err := s.store.LoadProgress(ctx, cred, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.progress = s.progress.Merge(progress)
	s.lastActive = s.now()
	s.mu.Unlock()
	return nil
}

func (s *QuizSession) Progress() model.UnlockProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.Clone()
}

func (s *QuizSession) SelectRole(ctx context.Context, role model.Role) error {
	s.mu.Lock()
	level := s.level
	s.mu.Unlock()
	return s.Select(ctx, role, level)
}

func (s *QuizSession) SelectLevel(ctx context.Context, level int) error {
	s.mu.Lock()
	role := s.role
	s.mu.Unlock()
	return s.Select(ctx, role, level)
}

// Select 切换岗位/关卡：硬重置答案、成绩与计时器，然后拉取题目。
// 拉取期间若有更新的选择，本次结果被丢弃并返回 ErrSuperseded。
func (s *QuizSession) Select(ctx context.Context, role model.Role, level int) error {
	if !role.Valid() {
		return util.ErrInvalidRole
	}
	if !model.ValidLevel(level) {
		return util.ErrInvalidLevel
	}

	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return util.ErrSessionBusy
	}
	if !s.progress.CanAccess(role, level) {
		s.mu.Unlock()
		return util.ErrLevelLocked
	}
	s.generation++
	gen := s.generation
	s.selection.Store(gen)
	s.role = role
	s.level = level
	s.questions = nil
	s.answers = make(map[string]string)
	s.result = nil
	s.errKind = nil
	s.submitted.Store(false)
	s.setStateLocked(StateLoading)
	s.lastActive = s.now()
	s.mu.Unlock()

	s.timer.Reset()

	fetchCtx, span := tracing.StartSpan(ctx, "quiz.fetch_questions", string(role), level)
	questions, err := s.source.FetchQuestions(fetchCtx, role, level)
	tracing.End(span, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return util.ErrSuperseded
	}

	switch {
	case err != nil:
		kind := util.ErrSourceUnavailable
		if errors.Is(err, util.ErrInvalidRole) || errors.Is(err, util.ErrInvalidLevel) {
			kind = err
		}
		s.errKind = kind
		s.setStateLocked(StateError)
		monitoring.QuestionFetches.WithLabelValues(string(role), "error").Inc()
		logger.Log.Warn("Question fetch failed",
			zap.String("userId", s.userID),
			zap.String("role", string(role)),
			zap.Int("level", level),
			zap.Error(err),
		)
		return err
	case len(questions) == 0:
		s.errKind = util.ErrNoContent
		s.setStateLocked(StateError)
		monitoring.QuestionFetches.WithLabelValues(string(role), "empty").Inc()
		return util.ErrNoContent
	}

	s.questions = questions
	s.setStateLocked(StateReady)
	monitoring.QuestionFetches.WithLabelValues(string(role), "ok").Inc()
	return nil
}

// ChooseAnswer 记录选项，同一题后选覆盖先选
func (s *QuizSession) ChooseAnswer(questionID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateSubmitting, StateSubmitted:
		return util.ErrAlreadySubmitted
	case StateReady, StateAnswering:
	default:
		return util.ErrNoActiveQuiz
	}
	if s.submitted.Load() {
		return util.ErrAlreadySubmitted
	}
	if !model.ValidOption(optionID) || !s.hasQuestionLocked(questionID) {
		return util.ErrInvalidAnswer
	}

	s.answers[questionID] = optionID
	s.setStateLocked(StateAnswering)
	s.lastActive = s.now()
	return nil
}

// Submit 手动提交
func (s *QuizSession) Submit(ctx context.Context) (*QuizResult, error) {
	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	return s.submit(ctx, gen, TriggerManual)
}

// onTimerExpired 只提交计时器启动时的那次选择；之后换过选择则忽略
func (s *QuizSession) onTimerExpired(gen uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), expireSaveTimeout)
	defer cancel()
	_, err := s.submit(ctx, gen, TriggerTimer)
	switch {
	case err == nil, errors.Is(err, util.ErrAlreadySubmitted):
	case errors.Is(err, util.ErrSuperseded):
		logger.Log.Debug("Stale timer expiry ignored", zap.String("userId", s.userID), zap.Uint64("selection", gen))
	default:
		logger.Log.Warn("Timer submit skipped", zap.String("userId", s.userID), zap.Error(err))
	}
}

// submit 计分、解锁并持久化。持久化失败只记录日志，状态照常进入 submitted。
func (s *QuizSession) submit(ctx context.Context, gen uint64, trigger string) (*QuizResult, error) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil, util.ErrSuperseded
	}
	switch s.state {
	case StateSubmitting, StateSubmitted:
		r := s.resultCopyLocked()
		s.mu.Unlock()
		return r, util.ErrAlreadySubmitted
	case StateReady, StateAnswering:
	default:
		s.mu.Unlock()
		return nil, util.ErrSubmitNotAllowed
	}
	if !s.submitted.CompareAndSwap(false, true) {
		r := s.resultCopyLocked()
		s.mu.Unlock()
		return r, util.ErrAlreadySubmitted
	}

	correct := 0
	for _, q := range s.questions {
		if ans, ok := s.answers[q.ID]; ok && ans == q.CorrectAns {
			correct++
		}
	}
	total := len(s.questions)
	score := model.ScorePercent(correct, total)
	passed := model.Passed(score)

	role, level := s.role, s.level
	current := s.progress.Level(role)
	progress := s.progress.Clone()
	if passed && level < model.MaxLevel && level+1 > current {
		progress[role] = level + 1
	}
	s.progress = progress

	now := s.now()
	result := &QuizResult{
		Role:          role,
		Level:         level,
		Correct:       correct,
		Total:         total,
		Score:         score,
		Passed:        passed,
		UnlockedLevel: progress.Level(role),
		NewlyUnlocked: progress.Level(role) > current,
		Trigger:       trigger,
		SubmittedAt:   now,
	}
	s.result = result
	s.setStateLocked(StateSubmitting)
	s.lastActive = now
	cred := s.cred
	s.mu.Unlock()

	s.timer.halt()

	attempt := model.NewQuizAttempt(role, level, score, now)
	saveCtx, span := tracing.StartSpan(ctx, "quiz.save_progress", string(role), level)
	err := s.store.SaveProgress(saveCtx, cred, s.userID, progress.Clone(), attempt)
	tracing.End(span, err)
	if err != nil {
		logger.Log.Error("Failed to save quiz progress",
			zap.String("userId", s.userID),
			zap.String("role", string(role)),
			zap.Int("level", level),
			zap.Int("score", score),
			zap.Error(err),
		)
	}

	monitoring.QuizSubmissions.WithLabelValues(string(role), boolLabel(passed), trigger).Inc()
	monitoring.QuizScores.WithLabelValues(string(role)).Observe(float64(score))

	s.mu.Lock()
	defer s.mu.Unlock()
	result.Persisted = err == nil
	s.setStateLocked(StateSubmitted)
	return s.resultCopyLocked(), nil
}

// Close 销毁会话，取消计时协程
func (s *QuizSession) Close() {
	s.timer.close()
}

func (s *QuizSession) EnableTimer() {
	s.timer.Enable()
}

func (s *QuizSession) DisableTimer() {
	s.timer.Disable()
}

func (s *QuizSession) StartTimer() error {
	return s.timer.Start()
}

func (s *QuizSession) PauseTimer() error {
	return s.timer.Pause()
}

func (s *QuizSession) ResetTimer() error {
	if s.submitted.Load() {
		return util.ErrAlreadySubmitted
	}
	s.timer.Reset()
	return nil
}

func (s *QuizSession) timerCanRun() bool {
	return s.ready.Load() && !s.submitted.Load()
}

func (s *QuizSession) setStateLocked(state SessionState) {
	s.state = state
	s.ready.Store(state == StateReady || state == StateAnswering)
}

func (s *QuizSession) hasQuestionLocked(id string) bool {
	for _, q := range s.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

func (s *QuizSession) resultCopyLocked() *QuizResult {
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
