package service

import (
	"context"
	"sync"
	"time"

	"smartprep_backend/internal/util"
)

type TimerState string

const (
	TimerDisabled TimerState = "disabled"
	TimerStopped  TimerState = "stopped"
	TimerRunning  TimerState = "running"
	TimerExpired  TimerState = "expired"
)

// QuizDurationSeconds 每次测验的倒计时长度
const QuizDurationSeconds = 600

// swagger:model TimerView
type TimerView struct {
	State            TimerState `json:"state"`
	RemainingSeconds int        `json:"remainingSeconds"`
}

// QuizTimer 每秒递减一次，归零时只触发一次 onExpire。
// onExpire 在锁外调用，参数为 Start 时记下的选择代号，会话据此拒绝过期的提交。
type QuizTimer struct {
	interval time.Duration
	onExpire func(selection uint64)
	// canRun 会话处于 ready/answering 且未提交
	canRun func() bool
	// selection 会话当前的选择代号
	selection func() uint64
	// submitted 会话已提交（启用/禁用在提交后为 no-op）
	submitted func() bool

	mu        sync.Mutex
	state     TimerState
	remaining int
	fired     bool
	runGen    uint64
	owner     uint64
	cancel    context.CancelFunc
}

func newQuizTimer(onExpire func(uint64), canRun func() bool, selection func() uint64, submitted func() bool) *QuizTimer {
	return &QuizTimer{
		interval:  time.Second,
		onExpire:  onExpire,
		canRun:    canRun,
		selection: selection,
		submitted: submitted,
		state:     TimerDisabled,
		remaining: QuizDurationSeconds,
	}
}

func (t *QuizTimer) View() TimerView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return TimerView{State: t.state, RemainingSeconds: t.remaining}
}

func (t *QuizTimer) Enable() {
	if t.submitted() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != TimerDisabled {
		return
	}
	t.state = TimerStopped
	t.remaining = QuizDurationSeconds
	t.fired = false
}

func (t *QuizTimer) Disable() {
	if t.submitted() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickingLocked()
	t.state = TimerDisabled
}

// Start 从 stopped 开始或恢复计时
func (t *QuizTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canRun() {
		return util.ErrTimerUnavailable
	}
	switch t.state {
	case TimerRunning:
		return nil
	case TimerStopped:
	default:
		return util.ErrTimerUnavailable
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.runGen++
	t.owner = t.selection()
	t.cancel = cancel
	t.state = TimerRunning
	go t.run(ctx, t.runGen)
	return nil
}

func (t *QuizTimer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canRun() {
		return util.ErrTimerUnavailable
	}
	if t.state != TimerRunning {
		return util.ErrTimerUnavailable
	}
	t.stopTickingLocked()
	t.state = TimerStopped
	return nil
}

// Reset 重新装填完整时长并停在 stopped，需要调用方再次 Start
func (t *QuizTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickingLocked()
	if t.state == TimerDisabled {
		t.remaining = QuizDurationSeconds
		return
	}
	t.state = TimerStopped
	t.remaining = QuizDurationSeconds
	t.fired = false
}

// halt 提交时停止计时，保留剩余秒数
func (t *QuizTimer) halt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickingLocked()
	if t.state == TimerRunning {
		t.state = TimerStopped
	}
}

// close 会话销毁时取消计时协程
func (t *QuizTimer) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTickingLocked()
}

func (t *QuizTimer) stopTickingLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.runGen++
}

func (t *QuizTimer) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if done := t.tick(gen); done {
				return
			}
		}
	}
}

// tick 递减一秒；归零时转为 expired 并触发一次 onExpire。返回 true 表示计时结束
func (t *QuizTimer) tick(gen uint64) bool {
	t.mu.Lock()
	if gen != t.runGen || t.state != TimerRunning {
		t.mu.Unlock()
		return true
	}
	t.remaining--
	if t.remaining > 0 {
		t.mu.Unlock()
		return false
	}

	t.remaining = 0
	t.state = TimerExpired
	t.stopTickingLocked()
	fire := !t.fired
	t.fired = true
	owner := t.owner
	t.mu.Unlock()

	if fire && t.onExpire != nil {
		t.onExpire(owner)
	}
	return true
}
