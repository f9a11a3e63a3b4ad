package repository

import (
	"context"
	"scorm_lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.ScormAttempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.ScormAttempt, error) {
	var attempt model.ScormAttempt
	if err := r.DB.First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

// FindLatest 取学习者在某包上次号最大的 Attempt，没有历史返回 gorm.ErrRecordNotFound
func (r *AttemptRepository) FindLatest(userID, packageID uint) (*model.ScormAttempt, error) {
	var attempt model.ScormAttempt
	err := r.DB.Where("user_id = ? AND package_id = ?", userID, packageID).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) ListByUser(userID uint, page, limit int) ([]model.ScormAttempt, int64, error) {
	var attempts []model.ScormAttempt
	var total int64

	query := r.DB.Model(&model.ScormAttempt{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&attempts).Error
	return attempts, total, err
}

// SaveWithLock 在事务里以行锁读-改-写 Attempt。两个浏览器标签并发 Commit 时，
// 后到者在锁上排队并基于前者的落库结果重读，最终状态只会是某一方的完整快照，
// 不会出现两边字段混写。
func (r *AttemptRepository) SaveWithLock(ctx context.Context, id uint, mutate func(*model.ScormAttempt) error) (*model.ScormAttempt, error) {
	var result *model.ScormAttempt
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempt model.ScormAttempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&attempt, id).Error; err != nil {
			return err
		}
		if err := mutate(&attempt); err != nil {
			return err
		}
		if err := tx.Save(&attempt).Error; err != nil {
			return err
		}
		result = &attempt
		return nil
	})
	return result, err
}

// ListIncompleteWithSuspendData 批量修复扫描：未完成、未终判且带挂起数据的 Attempt，
// 按 ID 升序分页（afterID 游标），已完成的天然被排除，重复跑幂等。
func (r *AttemptRepository) ListIncompleteWithSuspendData(ctx context.Context, afterID uint, limit int) ([]model.ScormAttempt, error) {
	var attempts []model.ScormAttempt
	err := r.DB.WithContext(ctx).
		Where("id > ?", afterID).
		Where("suspend_data <> ''").
		Where("completed_at IS NULL").
		Where("lesson_status NOT IN ?", []string{"completed", "passed"}).
		Where("completion_status <> ?", "completed").
		Order("id ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// CountByPackage 某包的历史总尝试数（报表用）
func (r *AttemptRepository) CountByPackage(packageID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ScormAttempt{}).
		Where("package_id = ?", packageID).
		Count(&count).Error
	return count, err
}
