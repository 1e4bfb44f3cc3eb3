package model

import "time"

type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusPublished ExamStatus = "published"
)

// Exam 一份生成的试卷。Degraded 标记降级占位内容，
// 这类试卷只能以草稿形式存在，发布接口必须拒绝
// swagger:model Exam
type Exam struct {
	UUIDBase
	UserID        uint       `gorm:"index;not null" json:"userId"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Subject       string     `gorm:"size:100;not null" json:"subject"`
	GradeLevel    string     `gorm:"size:50" json:"gradeLevel"`
	Language      string     `gorm:"size:10;default:'zh'" json:"language"`
	Status        ExamStatus `gorm:"type:enum('draft','scheduled','published');default:'draft';index" json:"status"`
	PublishAt     *time.Time `gorm:"index" json:"publishAt"`
	QuestionCount int        `gorm:"default:0" json:"questionCount"`
	Score         int        `gorm:"default:0" json:"score"` // 内容校验得分
	Degraded      bool       `gorm:"default:false" json:"degraded"`
	Temperature   float64    `json:"temperature"`          // 胜出尝试使用的温度
	SourceHash    string     `gorm:"size:64;index" json:"-"` // 源资料 SHA-256，结果缓存键

	Questions []ExamQuestion `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// Publishable 只有非降级的草稿或定时试卷可以发布
func (e *Exam) Publishable() bool {
	return !e.Degraded && e.Status != ExamStatusPublished
}
