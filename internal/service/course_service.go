package service

import (
	"errors"

	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/internal/repository"
	"scorm_lms_backend/internal/util"

	"gorm.io/gorm"
)

type CourseService struct {
	CourseRepo   *repository.CourseRepository
	ProgressRepo *repository.ProgressRepository
}

func NewCourseService(courseRepo *repository.CourseRepository, progressRepo *repository.ProgressRepository) *CourseService {
	return &CourseService{
		CourseRepo:   courseRepo,
		ProgressRepo: progressRepo,
	}
}

func (s *CourseService) Create(course *model.Course) error {
	return s.CourseRepo.Create(course)
}

func (s *CourseService) Get(id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCourseNotFound
	}
	return course, err
}

func (s *CourseService) List(page, limit int, publishedOnly bool) ([]model.Course, int64, error) {
	return s.CourseRepo.List(page, limit, publishedOnly)
}

func (s *CourseService) Update(course *model.Course) error {
	return s.CourseRepo.Update(course)
}

// Progress 学习者在某课程上的进度；没有记录视为从未学过
func (s *CourseService) Progress(userID, courseID uint) (*model.CourseProgress, error) {
	progress, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CourseProgress{UserID: userID, CourseID: courseID}, nil
	}
	return progress, err
}

func (s *CourseService) ProgressList(userID uint) ([]model.CourseProgress, error) {
	return s.ProgressRepo.ListByUser(userID)
}
