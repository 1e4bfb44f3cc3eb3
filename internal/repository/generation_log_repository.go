package repository

import (
	"time"

	"smart_exam_backend/internal/model"

	"gorm.io/gorm"
)

type GenerationLogRepository struct {
	DB *gorm.DB
}

func NewGenerationLogRepository(db *gorm.DB) *GenerationLogRepository {
	return &GenerationLogRepository{DB: db}
}

func (r *GenerationLogRepository) Create(log *model.GenerationLog) error {
	return r.DB.Create(log).Error
}

func (r *GenerationLogRepository) ListByUser(userID uint, page, limit int) ([]model.GenerationLog, int64, error) {
	var logs []model.GenerationLog
	var total int64
	query := r.DB.Model(&model.GenerationLog{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&logs).Error
	return logs, total, err
}

// UsageSummary 一段时间内的累计用量
type UsageSummary struct {
	TotalTokens int64   `json:"totalTokens"`
	TotalCost   float64 `json:"totalCost"`
	Calls       int64   `json:"calls"`
	Failures    int64   `json:"failures"`
}

func (r *GenerationLogRepository) Summarize(userID uint, since time.Time) (*UsageSummary, error) {
	var s UsageSummary
	err := r.DB.Model(&model.GenerationLog{}).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Select("COALESCE(SUM(total_tokens),0) AS total_tokens, COALESCE(SUM(total_cost),0) AS total_cost, COUNT(*) AS calls, SUM(CASE WHEN success = false THEN 1 ELSE 0 END) AS failures").
		Scan(&s).Error
	return &s, err
}
