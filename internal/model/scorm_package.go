package model

// ScormPackage 一个已上传的 SCORM/xAPI 课件包。上传时由解析器创建，此后除管理员
// 修正外不可变。ExtractedPath 是对象存储里的前缀，LaunchURL 是前缀下的相对路径。
// swagger:model ScormPackage
type ScormPackage struct {
	BaseModel
	CourseID    uint   `gorm:"index" json:"courseId"`
	UploaderID  uint   `gorm:"index" json:"uploaderId"`
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	// Version 1.2 | 2004 | xapi | storyline | captivate | lectora | html5 | legacy
	Version       string   `gorm:"size:20;not null" json:"version"`
	LaunchURL     string   `gorm:"size:512" json:"launchUrl"`
	ExtractedPath string   `gorm:"size:255;not null" json:"extractedPath"`
	MasteryScore  *float64 `gorm:"type:decimal(5,2)" json:"masteryScore,omitempty"`
	ManifestXML   string   `gorm:"type:longtext" json:"-"`
	FileCount     int      `json:"fileCount"`
	// ItemCount 清单里的 <item> 数，完成度推断用它折算访问阈值
	ItemCount int `json:"itemCount"`
}

func (ScormPackage) TableName() string {
	return "scorm_packages"
}
