package repository

import (
	"errors"
	"scorm_lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Upsert 读-改-写 学习者+课程 的进度记录，不存在则惰性创建（进度记录的
// 生命周期约定：首次写入时出现）。
func (r *ProgressRepository) Upsert(userID, courseID uint, mutate func(*model.CourseProgress)) (*model.CourseProgress, error) {
	var result *model.CourseProgress
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var progress model.CourseProgress
		err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).
			First(&progress).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			progress = model.CourseProgress{UserID: userID, CourseID: courseID}
		} else if err != nil {
			return err
		}

		mutate(&progress)
		progress.LastAccessedAt = time.Now()

		if err := tx.Save(&progress).Error; err != nil {
			return err
		}
		result = &progress
		return nil
	})
	return result, err
}

func (r *ProgressRepository) FindByUserAndCourse(userID, courseID uint) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.CourseProgress, error) {
	var records []model.CourseProgress
	err := r.DB.Where("user_id = ?", userID).
		Order("last_accessed_at DESC").
		Find(&records).Error
	return records, err
}
