package model

import (
	"encoding/json"
	"time"
)

// ScormAttempt 一个学习者对一个包的一次完整学习（含多次续学会话）。
// 学习者+包+次号 唯一；RTE 每次 SetValue/Commit 修改它，完成度推断可事后改判。
// swagger:model ScormAttempt
type ScormAttempt struct {
	BaseModel
	PackageID     uint `gorm:"index;uniqueIndex:idx_user_package_attempt" json:"packageId"`
	UserID        uint `gorm:"index;uniqueIndex:idx_user_package_attempt" json:"userId"`
	AttemptNumber int  `gorm:"uniqueIndex:idx_user_package_attempt" json:"attemptNumber"`

	// Version 冗余自包记录，决定 CMI 数据模型与时长格式
	Version string `gorm:"size:20" json:"version"`

	LessonStatus     string `gorm:"size:20;default:'not attempted'" json:"lessonStatus"`
	CompletionStatus string `gorm:"size:20;default:'unknown'" json:"completionStatus"`
	SuccessStatus    string `gorm:"size:20;default:'unknown'" json:"successStatus"`

	// 分数按十进制字符串存，避免浮点漂移
	ScoreRaw    string `gorm:"size:32" json:"scoreRaw"`
	ScoreMin    string `gorm:"size:32" json:"scoreMin"`
	ScoreMax    string `gorm:"size:32" json:"scoreMax"`
	ScoreScaled string `gorm:"size:32" json:"scoreScaled"`

	// TotalTime 版本原生格式（1.2: hhhh:mm:ss.ss；2004: PTnHnMnS），跨会话累加
	TotalTime      string `gorm:"size:32" json:"totalTime"`
	LessonLocation string `gorm:"size:255" json:"lessonLocation"`
	SuspendData    string `gorm:"type:mediumtext" json:"-"`
	Entry          string `gorm:"size:20" json:"entry"`
	ExitMode       string `gorm:"size:20" json:"exitMode"`

	// CMIData 完整 CMI 映射的 JSON 快照，和上面的类型化字段同步写入
	CMIData string `gorm:"type:json" json:"-"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Terminated  bool       `gorm:"default:false" json:"terminated"`

	// CompletedByInference 标记该次完成来自启发式改判而非协议上报
	CompletedByInference bool `gorm:"default:false" json:"completedByInference"`
	// InferenceAudit 改判依据的 JSON（命中规则、Visited 数、指示词、时间戳）
	InferenceAudit string `gorm:"type:json" json:"-"`
}

func (ScormAttempt) TableName() string {
	return "scorm_attempts"
}

// CMIMap 反序列化 CMI 快照，空值返回空映射
func (a *ScormAttempt) CMIMap() map[string]string {
	out := make(map[string]string)
	if a.CMIData != "" {
		_ = json.Unmarshal([]byte(a.CMIData), &out)
	}
	return out
}

// SetCMIMap 序列化并写回 CMI 快照
func (a *ScormAttempt) SetCMIMap(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	a.CMIData = string(raw)
	return nil
}
