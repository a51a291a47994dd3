package service

import (
	"fmt"

	"smartprep_backend/internal/model"
	"smartprep_backend/pkg/logger"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

// swagger:model QuestionView
type QuestionView struct {
	ID         string                 `json:"id"`
	Question   string                 `json:"question"`
	Options    []model.QuestionOption `json:"options"`
	CorrectAns string                 `json:"correctAns,omitempty"`
}

// swagger:model SessionView
type SessionView struct {
	ID             string               `json:"id"`
	State          SessionState         `json:"state"`
	Role           model.Role           `json:"role"`
	RoleName       string               `json:"roleName"`
	Level          int                  `json:"level"`
	Questions      []QuestionView       `json:"questions"`
	Answers        map[string]string    `json:"answers"`
	Answered       int                  `json:"answered"`
	Result         *QuizResult          `json:"result,omitempty"`
	Error          string               `json:"error,omitempty"`
	UnlockedLevels model.UnlockProgress `json:"unlockedLevels"`
	Timer          TimerView            `json:"timer"`
}

// Snapshot 只读视图；提交前不返回正确答案
func (s *QuizSession) Snapshot() SessionView {
	timer := s.timer.View()

	s.mu.Lock()
	defer s.mu.Unlock()

	questions, err := questionViews(s.questions, s.state == StateSubmitted)
	if err != nil {
		logger.Log.Error("Failed to build question view", zap.String("userId", s.userID), zap.Error(err))
	}

	answers := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}

	view := SessionView{
		ID:             s.ID,
		State:          s.state,
		Role:           s.role,
		RoleName:       s.role.DisplayName(),
		Level:          s.level,
		Questions:      questions,
		Answers:        answers,
		Answered:       len(answers),
		Result:         s.resultCopyLocked(),
		UnlockedLevels: s.progress.Clone(),
		Timer:          timer,
	}
	if s.errKind != nil {
		view.Error = s.errKind.Error()
	}
	return view
}

// questionViews 提交前 reveal 为 false，清空正确答案
func questionViews(qs []model.Question, reveal bool) ([]QuestionView, error) {
	views := make([]QuestionView, 0, len(qs))
	if len(qs) == 0 {
		return views, nil
	}
	if err := copier.Copy(&views, &qs); err != nil {
		return []QuestionView{}, fmt.Errorf("map questions: %w", err)
	}
	for i := range views {
		views[i].Options = qs[i].Options()
		if !reveal {
			views[i].CorrectAns = ""
		}
	}
	return views, nil
}
