package model

import "encoding/json"

// ExamQuestion 试卷内的单个题目
// swagger:model ExamQuestion
type ExamQuestion struct {
	BaseModel
	ExamID       string          `gorm:"index;type:varchar(36);not null" json:"examId"`
	Ordinal      int             `gorm:"not null" json:"ordinal"`              // 卷内序号，从1开始
	QuestionType string          `gorm:"size:50;not null" json:"questionType"` // multiple_choice, true_false
	Content      string          `gorm:"type:text;not null" json:"content"`    // 题干
	Options      json.RawMessage `gorm:"type:json" json:"options"`             // JSON: []string
	Answer       string          `gorm:"type:text" json:"answer"`
	Explanation  string          `gorm:"type:text" json:"explanation"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}
