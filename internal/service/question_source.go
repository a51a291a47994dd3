package service

import (
	"context"
	"fmt"

	"smartprep_backend/internal/model"
	"smartprep_backend/internal/util"
)

// QuestionSource 按 (role, level) 获取一批题目；无题目时返回空切片而非错误
type QuestionSource interface {
	FetchQuestions(ctx context.Context, role model.Role, level int) ([]model.Question, error)
}

type questionFinder interface {
	FindByRoleLevel(ctx context.Context, role model.Role, level int) ([]model.Question, error)
}

// QuestionSourceAdapter 把题库读取错误统一翻译为 ErrSourceUnavailable
type QuestionSourceAdapter struct {
	repo questionFinder
}

func NewQuestionSourceAdapter(repo questionFinder) *QuestionSourceAdapter {
	return &QuestionSourceAdapter{repo: repo}
}

func (a *QuestionSourceAdapter) FetchQuestions(ctx context.Context, role model.Role, level int) ([]model.Question, error) {
	if !role.Valid() {
		return nil, util.ErrInvalidRole
	}
	if !model.ValidLevel(level) {
		return nil, util.ErrInvalidLevel
	}

	questions, err := a.repo.FindByRoleLevel(ctx, role, level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	if len(questions) > model.QuestionBatchSize {
		questions = questions[:model.QuestionBatchSize]
	}
	return questions, nil
}
