package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStartedSession(t *testing.T, src *fakeSource, store *fakeStore) *QuizSession {
	t.Helper()
	s := NewQuizSession("u1", nil, src, store)
	// 测试中由 tick 手动驱动计时器
	s.timer.interval = time.Hour
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return s
}

// answerFirst 前 correct 题选正确答案，其余选错误答案
func answerFirst(t *testing.T, s *QuizSession, qs []model.Question, correct int) {
	t.Helper()
	for i, q := range qs {
		opt := model.OptionB
		if i < correct {
			opt = model.OptionA
		}
		require.NoError(t, s.ChooseAnswer(q.ID, opt))
	}
}

func currentRunGen(s *QuizSession) uint64 {
	s.timer.mu.Lock()
	defer s.timer.mu.Unlock()
	return s.timer.runGen
}

func TestPassingQuizUnlocksNextLevel(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	assert.Equal(t, StateReady, s.State())

	answerFirst(t, s, qs, 5)
	assert.Equal(t, StateAnswering, s.State())

	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Correct)
	assert.Equal(t, 10, result.Total)
	assert.Equal(t, 50, result.Score)
	assert.True(t, result.Passed)
	assert.Equal(t, 2, result.UnlockedLevel)
	assert.True(t, result.NewlyUnlocked)
	assert.True(t, result.Persisted)
	assert.Equal(t, TriggerManual, result.Trigger)

	assert.Equal(t, StateSubmitted, s.State())
	assert.Equal(t, 2, s.Progress()[model.RoleSDE])

	require.Equal(t, 1, store.saveCount())
	saved := store.lastSave()
	assert.Equal(t, 2, saved.progress[model.RoleSDE])
	assert.Equal(t, model.RoleSDE, saved.attempt.Role)
	assert.Equal(t, 1, saved.attempt.Level)
	assert.Equal(t, 50, saved.attempt.Score)
	assert.True(t, saved.attempt.Passed)

	// 新关卡可以选择
	src.set(model.RoleSDE, 2, makeQuestions("sde2", 10))
	assert.NoError(t, s.SelectLevel(context.Background(), 2))
}

func TestScoreOfExactlyFortyDoesNotUnlock(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("fd1", 10)
	src.set(model.RoleFD, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleFD, 1))
	answerFirst(t, s, qs, 4)

	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 40, result.Score)
	assert.False(t, result.Passed)
	assert.False(t, result.NewlyUnlocked)
	assert.Equal(t, 1, result.UnlockedLevel)
	assert.Equal(t, 1, s.Progress()[model.RoleFD])

	require.Equal(t, 1, store.saveCount())
	assert.False(t, store.lastSave().attempt.Passed)
}

func TestEmptyQuestionBatchEntersErrorWithoutRecord(t *testing.T) {
	src := newFakeSource()
	store := newFakeStore()
	store.progress["u1"] = model.UnlockProgress{model.RoleDA: 7}
	s := newStartedSession(t, src, store)

	err := s.Select(context.Background(), model.RoleDA, 7)
	assert.ErrorIs(t, err, util.ErrNoContent)
	assert.Equal(t, StateError, s.State())

	view := s.Snapshot()
	assert.Empty(t, view.Questions)
	assert.Equal(t, util.ErrNoContent.Error(), view.Error)

	_, err = s.Submit(context.Background())
	assert.ErrorIs(t, err, util.ErrSubmitNotAllowed)
	assert.Equal(t, 0, store.saveCount())
	assert.Equal(t, 7, s.Progress()[model.RoleDA])
}

func TestSourceFailureEntersErrorState(t *testing.T) {
	src := newFakeSource()
	src.fail(model.RoleBD, 1, util.ErrSourceUnavailable)
	s := newStartedSession(t, src, newFakeStore())

	err := s.Select(context.Background(), model.RoleBD, 1)
	assert.ErrorIs(t, err, util.ErrSourceUnavailable)
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, util.ErrSourceUnavailable.Error(), s.Snapshot().Error)
}

func TestDoubleSubmitPersistsOnce(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	answerFirst(t, s, qs, 7)

	first, err := s.Submit(context.Background())
	require.NoError(t, err)

	second, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
	require.NotNil(t, second)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 1, store.saveCount())
}

func TestConcurrentSubmitPersistsOnce(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	answerFirst(t, s, qs, 6)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Submit(context.Background()); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, store.saveCount())
}

func TestTimerExpiryAutoSubmits(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	for _, q := range qs[:3] {
		require.NoError(t, s.ChooseAnswer(q.ID, model.OptionA))
	}

	s.EnableTimer()
	require.NoError(t, s.StartTimer())
	gen := currentRunGen(s)
	for i := 0; i < QuizDurationSeconds; i++ {
		if s.timer.tick(gen) {
			break
		}
	}

	assert.Equal(t, StateSubmitted, s.State())
	view := s.Snapshot()
	require.NotNil(t, view.Result)
	assert.Equal(t, 30, view.Result.Score)
	assert.False(t, view.Result.Passed)
	assert.Equal(t, TriggerTimer, view.Result.Trigger)
	assert.Equal(t, TimerExpired, view.Timer.State)
	assert.Equal(t, 0, view.Timer.RemainingSeconds)
	require.Equal(t, 1, store.saveCount())

	// 计时器提交后手动提交不再写入
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
	assert.Equal(t, 1, store.saveCount())
}

func TestLateTimerExpiryDoesNotSubmitNewSelection(t *testing.T) {
	src := newFakeSource()
	src.set(model.RoleSDE, 1, makeQuestions("sde1", 10))
	src.set(model.RoleDA, 1, makeQuestions("da1", 10))
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	// 计时器释放锁之后、回调执行之前，用户切换到新的选择并加载完成
	expire := s.timer.onExpire
	s.timer.onExpire = func(sel uint64) {
		require.NoError(t, s.Select(context.Background(), model.RoleDA, 1))
		expire(sel)
	}

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	s.EnableTimer()
	require.NoError(t, s.StartTimer())

	gen := currentRunGen(s)
	for !s.timer.tick(gen) {
	}

	view := s.Snapshot()
	assert.Equal(t, model.RoleDA, view.Role)
	assert.Equal(t, StateReady, view.State)
	assert.Nil(t, view.Result)
	assert.Equal(t, 0, store.saveCount())

	// 新选择仍可正常提交
	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RoleDA, result.Role)
	assert.Equal(t, TriggerManual, result.Trigger)
	assert.Equal(t, 1, store.saveCount())
}

func TestManualSubmitStopsTimer(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	s.EnableTimer()
	require.NoError(t, s.StartTimer())
	gen := currentRunGen(s)
	require.False(t, s.timer.tick(gen))

	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	view := s.Timer().View()
	assert.Equal(t, TimerStopped, view.State)
	assert.Equal(t, QuizDurationSeconds-1, view.RemainingSeconds)
	// 旧协程的 tick 不再生效
	assert.True(t, s.timer.tick(gen))
	assert.Equal(t, 1, store.saveCount())

	assert.ErrorIs(t, s.StartTimer(), util.ErrTimerUnavailable)
	assert.ErrorIs(t, s.ResetTimer(), util.ErrAlreadySubmitted)
}

func TestSelectionChangeClearsAnswersAndResetsTimer(t *testing.T) {
	src := newFakeSource()
	sde := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, sde)
	src.set(model.RoleFD, 1, makeQuestions("fd1", 10))
	s := newStartedSession(t, src, newFakeStore())

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	require.NoError(t, s.ChooseAnswer(sde[0].ID, model.OptionC))
	s.EnableTimer()
	require.NoError(t, s.StartTimer())
	gen := currentRunGen(s)
	s.timer.tick(gen)

	require.NoError(t, s.SelectRole(context.Background(), model.RoleFD))

	view := s.Snapshot()
	assert.Equal(t, model.RoleFD, view.Role)
	assert.Equal(t, StateReady, view.State)
	assert.Empty(t, view.Answers)
	assert.Equal(t, 0, view.Answered)
	assert.Nil(t, view.Result)
	assert.Equal(t, TimerStopped, view.Timer.State)
	assert.Equal(t, QuizDurationSeconds, view.Timer.RemainingSeconds)
	assert.True(t, s.timer.tick(gen), "stale ticker must stop")

	// 旧题目的答案无效
	assert.ErrorIs(t, s.ChooseAnswer(sde[0].ID, model.OptionA), util.ErrInvalidAnswer)
}

func TestSelectingAfterSubmitStartsFreshAttempt(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	answerFirst(t, s, qs, 2)
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	assert.Equal(t, StateReady, s.State())
	assert.Nil(t, s.Snapshot().Result)

	answerFirst(t, s, qs, 9)
	result, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90, result.Score)
	assert.Equal(t, 2, store.saveCount())
}

func TestUnlockIsMonotonic(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde2", 10)
	src.set(model.RoleSDE, 2, qs)
	store := newFakeStore()
	store.progress["u1"] = model.UnlockProgress{model.RoleSDE: 5}
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 2))
	answerFirst(t, s, qs, 10)
	result, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Passed)
	assert.False(t, result.NewlyUnlocked)
	assert.Equal(t, 5, result.UnlockedLevel)
	assert.Equal(t, 5, s.Progress()[model.RoleSDE])
	assert.Equal(t, 5, store.lastSave().progress[model.RoleSDE])
}

func TestPassingFinalLevelDoesNotExceedMax(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("bd10", 10)
	src.set(model.RoleBD, model.MaxLevel, qs)
	store := newFakeStore()
	store.progress["u1"] = model.UnlockProgress{model.RoleBD: model.MaxLevel}
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleBD, model.MaxLevel))
	answerFirst(t, s, qs, 10)
	result, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, model.MaxLevel, result.UnlockedLevel)
	assert.False(t, result.NewlyUnlocked)
}

func TestLockedOrInvalidSelectionLeavesStateUnchanged(t *testing.T) {
	src := newFakeSource()
	src.set(model.RoleSDE, 1, makeQuestions("sde1", 10))
	s := newStartedSession(t, src, newFakeStore())
	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))

	assert.ErrorIs(t, s.SelectLevel(context.Background(), 2), util.ErrLevelLocked)
	assert.ErrorIs(t, s.SelectRole(context.Background(), model.Role("pm")), util.ErrInvalidRole)
	assert.ErrorIs(t, s.Select(context.Background(), model.RoleSDE, 11), util.ErrInvalidLevel)

	view := s.Snapshot()
	assert.Equal(t, model.RoleSDE, view.Role)
	assert.Equal(t, 1, view.Level)
	assert.Equal(t, StateReady, view.State)
	assert.Len(t, view.Questions, 10)
}

func TestStaleFetchIsDiscarded(t *testing.T) {
	src := newFakeSource()
	src.set(model.RoleSDE, 1, makeQuestions("sde1", 10))
	src.set(model.RoleDA, 1, makeQuestions("da1", 10))
	gate := src.block(model.RoleSDE, 1)
	s := newStartedSession(t, src, newFakeStore())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Select(context.Background(), model.RoleSDE, 1)
	}()
	<-src.started

	require.NoError(t, s.Select(context.Background(), model.RoleDA, 1))
	close(gate)
	assert.ErrorIs(t, <-errCh, util.ErrSuperseded)

	view := s.Snapshot()
	assert.Equal(t, model.RoleDA, view.Role)
	assert.Equal(t, StateReady, view.State)
	require.Len(t, view.Questions, 10)
	assert.Equal(t, "da1-q1", view.Questions[0].ID)
}

func TestChooseAnswerRules(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	s := newStartedSession(t, src, newFakeStore())

	assert.ErrorIs(t, s.ChooseAnswer(qs[0].ID, model.OptionA), util.ErrNoActiveQuiz)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	assert.ErrorIs(t, s.ChooseAnswer(qs[0].ID, "option_z"), util.ErrInvalidAnswer)
	assert.ErrorIs(t, s.ChooseAnswer("missing", model.OptionA), util.ErrInvalidAnswer)

	require.NoError(t, s.ChooseAnswer(qs[0].ID, model.OptionB))
	require.NoError(t, s.ChooseAnswer(qs[0].ID, model.OptionA))
	view := s.Snapshot()
	assert.Equal(t, model.OptionA, view.Answers[qs[0].ID])
	assert.Equal(t, 1, view.Answered)

	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, s.ChooseAnswer(qs[1].ID, model.OptionA), util.ErrAlreadySubmitted)
}

func TestPersistenceFailureStillCompletesSubmission(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 10)
	src.set(model.RoleSDE, 1, qs)
	store := newFakeStore()
	store.saveErr = errors.New("write refused")
	s := newStartedSession(t, src, store)

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	answerFirst(t, s, qs, 8)
	result, err := s.Submit(context.Background())
	require.NoError(t, err)

	assert.False(t, result.Persisted)
	assert.True(t, result.Passed)
	assert.Equal(t, StateSubmitted, s.State())
	// 本地进度仍然前进
	assert.Equal(t, 2, s.Progress()[model.RoleSDE])
}

func TestSnapshotRevealsAnswersOnlyAfterSubmit(t *testing.T) {
	src := newFakeSource()
	qs := makeQuestions("sde1", 3)
	src.set(model.RoleSDE, 1, qs)
	s := newStartedSession(t, src, newFakeStore())

	require.NoError(t, s.Select(context.Background(), model.RoleSDE, 1))
	before := s.Snapshot()
	require.Len(t, before.Questions, 3)
	for _, q := range before.Questions {
		assert.Empty(t, q.CorrectAns)
		assert.Len(t, q.Options, 4)
	}
	assert.Equal(t, "Software Engineer", before.RoleName)

	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	after := s.Snapshot()
	for _, q := range after.Questions {
		assert.Equal(t, model.OptionA, q.CorrectAns)
	}
	assert.Equal(t, 0, after.Result.Score)
}

func TestStartFailsWhenStoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.loadErr = util.ErrSourceUnavailable
	s := NewQuizSession("u1", nil, newFakeSource(), store)
	defer s.Close()

	assert.ErrorIs(t, s.Start(context.Background()), util.ErrSourceUnavailable)
}
