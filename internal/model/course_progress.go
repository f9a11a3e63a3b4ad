package model

import "time"

// 完成方式
const (
	CompletionMethodScorm     = "scorm"
	CompletionMethodInference = "inference"
)

// CourseProgress 学习者+课程 维度的进度汇总。RTE 的 Commit 和完成度推断都会
// 写它；记录在首次写入时惰性创建，生命周期不归 SCORM 运行时管。
// swagger:model CourseProgress
type CourseProgress struct {
	BaseModel
	UserID   uint `gorm:"index;uniqueIndex:idx_user_course" json:"userId"`
	CourseID uint `gorm:"uniqueIndex:idx_user_course" json:"courseId"`

	LastScore float64 `json:"lastScore"`
	BestScore float64 `json:"bestScore"`
	Completed bool    `gorm:"default:false" json:"completed"`
	// CompletionMethod scorm | inference
	CompletionMethod string `gorm:"size:20" json:"completionMethod"`

	TotalTimeSeconds int        `json:"totalTimeSeconds"`
	AttemptCount     int        `json:"attemptCount"`
	LastAccessedAt   time.Time  `json:"lastAccessedAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}
