package repository

import (
	"context"

	"smartprep_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// FindByRoleLevel 读取 <role><level> 表的前 10 道题；表不存在视为无题目
func (r *QuestionRepository) FindByRoleLevel(ctx context.Context, role model.Role, level int) ([]model.Question, error) {
	table := model.QuestionTable(role, level)
	db := r.DB.WithContext(ctx)
	if !db.Migrator().HasTable(table) {
		return nil, nil
	}

	var questions []model.Question
	err := db.Table(table).Limit(model.QuestionBatchSize).Find(&questions).Error
	return questions, err
}

// CreateBatch 写入题目，表不存在时先建表（导入脚本与测试使用）
func (r *QuestionRepository) CreateBatch(ctx context.Context, role model.Role, level int, questions []model.Question) error {
	table := model.QuestionTable(role, level)
	db := r.DB.WithContext(ctx)
	if !db.Migrator().HasTable(table) {
		if err := db.Table(table).Migrator().CreateTable(&model.Question{}); err != nil {
			return err
		}
	}
	if len(questions) == 0 {
		return nil
	}
	return db.Table(table).Create(&questions).Error
}
