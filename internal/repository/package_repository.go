package repository

import (
	"scorm_lms_backend/internal/model"

	"gorm.io/gorm"
)

type PackageRepository struct {
	DB *gorm.DB
}

func NewPackageRepository(db *gorm.DB) *PackageRepository {
	return &PackageRepository{DB: db}
}

func (r *PackageRepository) Create(pkg *model.ScormPackage) error {
	return r.DB.Create(pkg).Error
}

func (r *PackageRepository) FindByID(id uint) (*model.ScormPackage, error) {
	var pkg model.ScormPackage
	if err := r.DB.First(&pkg, id).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *PackageRepository) ListByCourse(courseID uint) ([]model.ScormPackage, error) {
	var pkgs []model.ScormPackage
	err := r.DB.Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&pkgs).Error
	return pkgs, err
}

func (r *PackageRepository) List(page, limit int) ([]model.ScormPackage, int64, error) {
	var pkgs []model.ScormPackage
	var total int64

	if err := r.DB.Model(&model.ScormPackage{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.DB.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&pkgs).Error
	return pkgs, total, err
}

// UpdateLaunchURL 管理员修正入口文件（包记录除此之外不可变）
func (r *PackageRepository) UpdateLaunchURL(id uint, launchURL string) error {
	return r.DB.Model(&model.ScormPackage{}).
		Where("id = ?", id).
		Update("launch_url", launchURL).Error
}

func (r *PackageRepository) Delete(id uint) error {
	return r.DB.Delete(&model.ScormPackage{}, id).Error
}
