package model

import "time"

// PassThreshold 严格大于该分数才算通过，展示与解锁共用
const PassThreshold = 40

// swagger:model QuizAttempt
type QuizAttempt struct {
	Role      Role      `json:"role"`
	Level     int       `json:"level"`
	Score     int       `json:"score"`
	Passed    bool      `json:"passed"`
	Timestamp time.Time `json:"timestamp"`
}

func Passed(score int) bool {
	return score > PassThreshold
}

// ScorePercent round-half-up(100 * correct / total)，total 为 0 时返回 0
func ScorePercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

func NewQuizAttempt(role Role, level, score int, at time.Time) QuizAttempt {
	return QuizAttempt{
		Role:      role,
		Level:     level,
		Score:     score,
		Passed:    Passed(score),
		Timestamp: at.UTC(),
	}
}
