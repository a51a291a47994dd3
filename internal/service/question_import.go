package service

import (
	"context"
	"fmt"

	"smartprep_backend/internal/model"

	"gopkg.in/yaml.v3"
)

// QuestionBank 一个 (role, level) 的题目集合，对应一张 <role><level> 表
type QuestionBank struct {
	Role      model.Role       `yaml:"role"`
	Level     int              `yaml:"level"`
	Questions []BankedQuestion `yaml:"questions"`
}

type BankedQuestion struct {
	ID         string `yaml:"id"`
	Question   string `yaml:"question"`
	OptionA    string `yaml:"option_a"`
	OptionB    string `yaml:"option_b"`
	OptionC    string `yaml:"option_c"`
	OptionD    string `yaml:"option_d"`
	CorrectAns string `yaml:"correct_ans"`
}

type questionWriter interface {
	CreateBatch(ctx context.Context, role model.Role, level int, questions []model.Question) error
}

// ParseQuestionBanks 解析 YAML 题库文件并逐题校验
func ParseQuestionBanks(data []byte) ([]QuestionBank, error) {
	var banks []QuestionBank
	if err := yaml.Unmarshal(data, &banks); err != nil {
		return nil, fmt.Errorf("parse question banks: %w", err)
	}
	for i, b := range banks {
		if !b.Role.Valid() {
			return nil, fmt.Errorf("bank %d: unknown role %q", i, b.Role)
		}
		if !model.ValidLevel(b.Level) {
			return nil, fmt.Errorf("bank %d: level %d out of range", i, b.Level)
		}
		seen := make(map[string]bool, len(b.Questions))
		for j, q := range b.Questions {
			if q.ID == "" || q.Question == "" {
				return nil, fmt.Errorf("%s question %d: id and question are required", model.QuestionTable(b.Role, b.Level), j)
			}
			if seen[q.ID] {
				return nil, fmt.Errorf("%s: duplicate question id %q", model.QuestionTable(b.Role, b.Level), q.ID)
			}
			seen[q.ID] = true
			if !model.ValidOption(q.CorrectAns) {
				return nil, fmt.Errorf("%s question %s: correct_ans must be one of option_a..option_d", model.QuestionTable(b.Role, b.Level), q.ID)
			}
		}
	}
	return banks, nil
}

// ImportQuestionBanks 写入题库，返回导入的题目总数
func ImportQuestionBanks(ctx context.Context, w questionWriter, banks []QuestionBank) (int, error) {
	total := 0
	for _, b := range banks {
		questions := make([]model.Question, 0, len(b.Questions))
		for _, q := range b.Questions {
			questions = append(questions, model.Question{
				ID:         q.ID,
				Question:   q.Question,
				OptionA:    q.OptionA,
				OptionB:    q.OptionB,
				OptionC:    q.OptionC,
				OptionD:    q.OptionD,
				CorrectAns: q.CorrectAns,
			})
		}
		if err := w.CreateBatch(ctx, b.Role, b.Level, questions); err != nil {
			return total, fmt.Errorf("import %s: %w", model.QuestionTable(b.Role, b.Level), err)
		}
		total += len(questions)
	}
	return total, nil
}
