package repository

import (
	"context"
	"errors"
	"time"

	"smartprep_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository database 后端的进度存储，每个岗位一行，upsert 不会删除其他行
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) LoadUnlocked(ctx context.Context, userID string) (model.UnlockProgress, error) {
	var rows []model.UserUnlockedLevel
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	progress := make(model.UnlockProgress, len(rows))
	for _, row := range rows {
		progress[model.Role(row.Role)] = row.Level
	}
	return progress, nil
}

func (r *ProgressRepository) LoadLastAttempt(ctx context.Context, userID string) (*model.QuizAttempt, error) {
	var row model.UserLastAttempt
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	attempt := row.Attempt()
	return &attempt, nil
}

// SaveProgress 在事务中按岗位取 max 后 upsert，并覆盖最近一次测验记录
func (r *ProgressRepository) SaveProgress(ctx context.Context, userID string, progress model.UnlockProgress, attempt *model.QuizAttempt) error {
	now := time.Now()
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(progress) > 0 {
			var existing []model.UserUnlockedLevel
			if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
				return err
			}
			current := make(map[string]int, len(existing))
			for _, row := range existing {
				current[row.Role] = row.Level
			}

			var rows []model.UserUnlockedLevel
			for role, level := range progress {
				if cur, ok := current[string(role)]; ok && cur >= level {
					continue
				}
				rows = append(rows, model.UserUnlockedLevel{
					UserID:    userID,
					Role:      string(role),
					Level:     level,
					UpdatedAt: now,
				})
			}
			if len(rows) > 0 {
				err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_id"}, {Name: "role"}},
					DoUpdates: clause.AssignmentColumns([]string{"level", "updated_at"}),
				}).Create(&rows).Error
				if err != nil {
					return err
				}
			}
		}

		if attempt != nil {
			row := model.UserLastAttempt{
				UserID:      userID,
				Role:        string(attempt.Role),
				Level:       attempt.Level,
				Score:       attempt.Score,
				Passed:      attempt.Passed,
				CompletedAt: attempt.Timestamp,
				UpdatedAt:   now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"role", "level", "score", "passed", "completed_at", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveProfile 合并用户资料，保留首次创建时间
func (r *ProgressRepository) SaveProfile(ctx context.Context, profile model.UserProfile) error {
	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "name", "updated_at"}),
	}).Create(&profile).Error
}

func (r *ProgressRepository) LoadProfile(ctx context.Context, userID string) (*model.UserProfile, error) {
	var profile model.UserProfile
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// AddPoints 原子累加积分，资料行不存在时先补建
func (r *ProgressRepository) AddPoints(ctx context.Context, userID string, delta int64) (int64, error) {
	var total int64
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		seed := model.UserProfile{UserID: userID, CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}
		err := tx.Model(&model.UserProfile{}).
			Where("user_id = ?", userID).
			UpdateColumns(map[string]interface{}{
				"points":     gorm.Expr("points + ?", delta),
				"updated_at": now,
			}).Error
		if err != nil {
			return err
		}
		var row model.UserProfile
		if err := tx.Select("points").Where("user_id = ?", userID).Take(&row).Error; err != nil {
			return err
		}
		total = row.Points
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
