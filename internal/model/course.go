package model

// Course 课程（SCORM 包的归属单元，进度记录按 学习者+课程 维度聚合）
// swagger:model Course
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	TeacherID   uint   `gorm:"index" json:"teacherId"`
	Published   bool   `gorm:"default:false" json:"published"`
}

func (Course) TableName() string {
	return "courses"
}
