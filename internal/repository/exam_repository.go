package repository

import (
	"time"

	"smart_exam_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

// Create 试卷与题目在同一事务内落库
func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return tx.Create(exam).Error
	})
}

func (r *ExamRepository) FindByID(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("ordinal asc")
	}).First(&exam, "id = ?", id).Error
	return &exam, err
}

func (r *ExamRepository) FindBySourceHash(userID uint, hash string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("ordinal asc")
	}).Where("user_id = ? AND source_hash = ?", userID, hash).
		Order("created_at desc").First(&exam).Error
	return &exam, err
}

func (r *ExamRepository) ListByUser(userID uint, status string, page, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64
	query := r.DB.Model(&model.Exam{}).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&exams).Error
	return exams, total, err
}

func (r *ExamRepository) Update(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

func (r *ExamRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exam_id = ?", id).Delete(&model.ExamQuestion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Exam{}, "id = ?", id).Error
	})
}

// FindDuePublishes 找出到点待发布的定时试卷
func (r *ExamRepository) FindDuePublishes(now time.Time, limit int) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("status = ? AND publish_at IS NOT NULL AND publish_at <= ?",
		model.ExamStatusScheduled, now).
		Limit(limit).Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) MarkPublished(id string) error {
	return r.DB.Model(&model.Exam{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": model.ExamStatusPublished}).
		Error
}
