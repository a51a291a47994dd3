package model

import "fmt"

// 选项标识即题库表中的列名
const (
	OptionA = "option_a"
	OptionB = "option_b"
	OptionC = "option_c"
	OptionD = "option_d"
)

var OptionIDs = []string{OptionA, OptionB, OptionC, OptionD}

// QuestionBatchSize 每个 (role, level) 最多拉取的题目数
const QuestionBatchSize = 10

// swagger:model Question
type Question struct {
	ID         string `gorm:"column:id;primaryKey" json:"id"`
	Question   string `gorm:"column:question;type:text" json:"question"`
	OptionA    string `gorm:"column:option_a;type:text" json:"option_a"`
	OptionB    string `gorm:"column:option_b;type:text" json:"option_b"`
	OptionC    string `gorm:"column:option_c;type:text" json:"option_c"`
	OptionD    string `gorm:"column:option_d;type:text" json:"option_d"`
	CorrectAns string `gorm:"column:correct_ans;size:20" json:"correct_ans"`
}

// QuestionTable 题库按 <role><level> 分表，例如 sde1、da7
func QuestionTable(role Role, level int) string {
	return fmt.Sprintf("%s%d", role, level)
}

type QuestionOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (q *Question) Options() []QuestionOption {
	return []QuestionOption{
		{Key: OptionA, Value: q.OptionA},
		{Key: OptionB, Value: q.OptionB},
		{Key: OptionC, Value: q.OptionC},
		{Key: OptionD, Value: q.OptionD},
	}
}

func ValidOption(optionID string) bool {
	for _, id := range OptionIDs {
		if id == optionID {
			return true
		}
	}
	return false
}
