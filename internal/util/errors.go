package util

import "errors"

// 适配器边界统一翻译成以下错误，会话状态机只通过 errors.Is 判断
var (
	ErrSourceUnavailable      = errors.New("source unavailable")
	ErrNoContent              = errors.New("no content for this selection")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrPersistenceFailed      = errors.New("persistence failed")
)

var (
	ErrInvalidRole      = errors.New("invalid role")
	ErrInvalidLevel     = errors.New("invalid level")
	ErrInvalidAnswer    = errors.New("invalid answer")
	ErrLevelLocked      = errors.New("level not unlocked")
	ErrSessionBusy      = errors.New("session busy")
	ErrSessionNotFound  = errors.New("quiz session not found")
	ErrSubmitNotAllowed = errors.New("submit not allowed in current state")
	ErrAlreadySubmitted = errors.New("quiz already submitted")
	ErrTimerUnavailable = errors.New("timer not available in current state")
	ErrNoActiveQuiz     = errors.New("no active quiz")
	ErrSuperseded       = errors.New("selection superseded by a newer one")
	ErrEmptyResume      = errors.New("could not extract text from file")
	ErrUnsupportedFile  = errors.New("unsupported file")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidPoints    = errors.New("invalid points")
)

// ErrMatcherUnavailable 简历岗位匹配服务未配置或调用失败
var ErrMatcherUnavailable = errors.New("role matcher unavailable")
