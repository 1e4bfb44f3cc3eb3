package model

// GenerationLog 每次生成调用的用量审计，成功失败都落一条。
// 成本以美元计，失败的尝试同样计费
// swagger:model GenerationLog
type GenerationLog struct {
	BaseModel
	UserID           uint    `gorm:"index" json:"userId"`
	ExamID           string  `gorm:"index;type:varchar(36)" json:"examId"` // 失败时为空
	RequestID        string  `gorm:"size:64;index" json:"requestId"`
	Model            string  `gorm:"size:100" json:"model"`
	PromptTokens     int     `gorm:"default:0" json:"promptTokens"`
	CompletionTokens int     `gorm:"default:0" json:"completionTokens"`
	TotalTokens      int     `gorm:"default:0" json:"totalTokens"`
	InputCost        float64 `gorm:"type:decimal(12,8);default:0" json:"inputCost"`
	OutputCost       float64 `gorm:"type:decimal(12,8);default:0" json:"outputCost"`
	TotalCost        float64 `gorm:"type:decimal(12,8);default:0" json:"totalCost"`
	Attempts         int     `gorm:"default:0" json:"attempts"`
	Estimated        bool    `gorm:"default:false" json:"estimated"` // 用量为估算值
	DurationMs       int64   `gorm:"default:0" json:"durationMs"`
	Success          bool    `gorm:"default:false" json:"success"`
	FailurePhase     string  `gorm:"size:20" json:"failurePhase"` // transport/degeneracy/parse/validation
	Score            int     `gorm:"default:0" json:"score"`
	CacheHit         bool    `gorm:"default:false" json:"cacheHit"`
}

func (GenerationLog) TableName() string {
	return "generation_logs"
}
