package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"smart_exam_backend/internal/config"
	"smart_exam_backend/internal/examgen"
	"smart_exam_backend/internal/model"
	"smart_exam_backend/internal/repository"
	"smart_exam_backend/internal/util"
	"smart_exam_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

var (
	ErrExamNotFound      = errors.New("试卷不存在")
	ErrNotOwner          = errors.New("无权操作该试卷")
	ErrDegradedPublish   = errors.New("降级占位试卷不能发布")
	ErrAlreadyPublished  = errors.New("试卷已发布")
	ErrNoSourceMaterial  = errors.New("缺少出题资料")
	ErrGenerationFailed  = errors.New("出题失败")
	ErrValidationBlocked = errors.New("生成内容未通过质量校验")
)

const sourceCacheKeyPrefix = "examgen:src:"

// UploadedMaterial 用户上传的一份出题资料
type UploadedMaterial struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GenerateExamInput 一次出题请求的全部输入
type GenerateExamInput struct {
	Title         string
	Subject       string
	GradeLevel    string
	Language      string
	QuestionCount int
	SourceText    string
	Materials     []UploadedMaterial
}

// ExamService 串起完整的出题链路：资料提取、结果缓存、
// 生成管道调用、落库与用量审计
type ExamService struct {
	ExamRepo *repository.ExamRepository
	LogRepo  *repository.GenerationLogRepository
	Storage  *StorageService
	Redis    *redis.Client
	Cfg      *config.Config
	ai       *AIService
	log      *zap.Logger

	// mu 保护下面两项，配置热更新时会整体替换
	mu        sync.RWMutex
	generator *examgen.Generator
	cacheTTL  time.Duration
}

func NewExamService(
	examRepo *repository.ExamRepository,
	logRepo *repository.GenerationLogRepository,
	storage *StorageService,
	rdb *redis.Client,
	ai *AIService,
	cfg *config.Config,
	log *zap.Logger,
) *ExamService {
	genCfg := buildGenerationConfig(cfg.Generation)
	ttl := 24 * time.Hour
	if cfg.Generation.CacheTTLMinutes > 0 {
		ttl = time.Duration(cfg.Generation.CacheTTLMinutes) * time.Minute
	}
	return &ExamService{
		ExamRepo:  examRepo,
		LogRepo:   logRepo,
		Storage:   storage,
		Redis:     rdb,
		Cfg:       cfg,
		ai:        ai,
		log:       log,
		generator: examgen.NewGenerator(ai, genCfg, log),
		cacheTTL:  ttl,
	}
}

// Reconfigure 配置文件热更新后重建生成管道，不中断在途请求
func (s *ExamService) Reconfigure(cfg *config.Config) {
	genCfg := buildGenerationConfig(cfg.Generation)
	ttl := 24 * time.Hour
	if cfg.Generation.CacheTTLMinutes > 0 {
		ttl = time.Duration(cfg.Generation.CacheTTLMinutes) * time.Minute
	}

	s.mu.Lock()
	s.generator = examgen.NewGenerator(s.ai, genCfg, s.log)
	s.cacheTTL = ttl
	s.mu.Unlock()

	s.log.Info("出题参数已热更新",
		zap.Int("score_threshold", genCfg.ScoreThreshold),
		zap.Float64s("temperature_schedule", genCfg.TemperatureSchedule))
}

// buildGenerationConfig 在缺省值之上套用配置文件的覆盖项
func buildGenerationConfig(gc config.GenerationConfig) examgen.Config {
	cfg := examgen.DefaultConfig()
	if len(gc.TemperatureSchedule) > 0 {
		cfg.TemperatureSchedule = gc.TemperatureSchedule
	}
	if gc.ScoreThreshold > 0 {
		cfg.ScoreThreshold = gc.ScoreThreshold
	}
	if gc.MaxOutputChars > 0 {
		cfg.MaxOutputChars = gc.MaxOutputChars
	}
	if gc.InputPerMillion > 0 {
		cfg.Price.InputPerMillion = gc.InputPerMillion
	}
	if gc.OutputPerMillion > 0 {
		cfg.Price.OutputPerMillion = gc.OutputPerMillion
	}
	if gc.CallTimeoutSeconds > 0 {
		cfg.CallTimeout = time.Duration(gc.CallTimeoutSeconds) * time.Second
	}
	return cfg
}

// Generate 执行一次完整出题。同样的资料在缓存有效期内直接复用
// 上一次的结果，不再烧一遍 token
func (s *ExamService) Generate(ctx context.Context, userID uint, in GenerateExamInput) (*model.Exam, error) {
	if strings.TrimSpace(in.SourceText) == "" && len(in.Materials) == 0 {
		return nil, ErrNoSourceMaterial
	}
	if in.QuestionCount <= 0 {
		in.QuestionCount = 5
	}
	if in.Language == "" {
		in.Language = "zh"
	}

	sourceText, attachments, err := s.extractMaterials(in)
	if err != nil {
		return nil, err
	}

	hash := sourceHash(in, sourceText)
	if exam := s.lookupCache(ctx, userID, hash); exam != nil {
		monitoring.GenerationCounter.WithLabelValues("cache_hit").Inc()
		s.auditLogFull(userID, exam.ID, "", examgen.UsageRecord{}, 0, true, "", exam.Score, true)
		return exam, nil
	}

	s.archiveMaterials(ctx, userID, in.Materials)

	requestID := uuid.New().String()
	req := examgen.GenerationRequest{
		Subject:       in.Subject,
		GradeLevel:    in.GradeLevel,
		Language:      in.Language,
		QuestionCount: in.QuestionCount,
		SourceText:    sourceText,
		Attachments:   attachments,
		Prompt:        buildPrompt(in, sourceText),
		RequestID:     requestID,
	}

	s.mu.RLock()
	gen := s.generator
	s.mu.RUnlock()

	start := time.Now()
	res, err := gen.Generate(ctx, req)
	duration := time.Since(start)
	monitoring.GenerationDuration.Observe(duration.Seconds())

	if err != nil {
		return s.handleGenerationFailure(ctx, userID, in, hash, requestID, duration, err)
	}

	monitoring.GenerationCounter.WithLabelValues("success").Inc()
	monitoring.GenerationScore.Observe(float64(res.Score))
	monitoring.GenerationTokens.WithLabelValues("prompt").Add(float64(res.Usage.PromptTokens))
	monitoring.GenerationTokens.WithLabelValues("completion").Add(float64(res.Usage.CompletionTokens))

	exam, err := s.persistExam(userID, in, hash, res.Questions, res.Score, res.Temperature, false)
	if err != nil {
		return nil, err
	}

	s.auditLogFull(userID, exam.ID, requestID, res.Usage, duration, true, "", res.Score, false)
	s.storeCache(ctx, userID, hash, exam.ID)

	s.log.Info("出题成功",
		zap.String("exam_id", exam.ID),
		zap.Int("score", res.Score),
		zap.Int("attempts", res.Usage.Attempts),
		zap.Float64("cost", res.Usage.TotalCost))
	return exam, nil
}

// handleGenerationFailure 失败分流。解析与退化类失败走降级占位
// 试卷，保证调用方拿到可渲染的草稿；传输与校验失败原样上抛。
// 无论哪条路径，已经产生的消耗都要落审计
func (s *ExamService) handleGenerationFailure(
	ctx context.Context,
	userID uint,
	in GenerateExamInput,
	hash, requestID string,
	duration time.Duration,
	err error,
) (*model.Exam, error) {
	var ge *examgen.GenerationError
	if !errors.As(err, &ge) {
		monitoring.GenerationCounter.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	monitoring.GenerationCounter.WithLabelValues(string(ge.Phase)).Inc()
	s.auditLogFull(userID, "", requestID, ge.Usage, duration, false, string(ge.Phase), ge.Score, false)

	s.log.Warn("出题失败",
		zap.String("request_id", requestID),
		zap.String("phase", string(ge.Phase)),
		zap.Int("attempts", ge.Attempts),
		zap.Float64("cost", ge.Usage.TotalCost),
		zap.Error(err))

	switch ge.Phase {
	case examgen.PhaseDegeneracy, examgen.PhaseParse:
		// 保底：持久化降级占位卷。这类试卷永远停留在草稿态
		doc := examgen.FallbackDocument()
		exam, perr := s.persistExam(userID, in, hash, doc.Questions, 0, 0, true)
		if perr != nil {
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		return exam, nil
	case examgen.PhaseValidation:
		return nil, fmt.Errorf("%w: 得分%d，共%d处问题", ErrValidationBlocked, ge.Score, len(ge.Errors))
	default:
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
}

// extractMaterials 从上传资料里分离出文本与图片附件。
// PDF 提取纯文本，图片原样作为附件随提示词发送
func (s *ExamService) extractMaterials(in GenerateExamInput) (string, []examgen.Attachment, error) {
	var text strings.Builder
	text.WriteString(in.SourceText)

	var attachments []examgen.Attachment
	for _, m := range in.Materials {
		switch {
		case strings.EqualFold(filepath.Ext(m.Filename), ".pdf") || m.ContentType == util.MimePDF:
			extracted, err := extractPDFText(m.Data)
			if err != nil {
				s.log.Warn("PDF 文本提取失败，跳过该文件",
					zap.String("filename", m.Filename), zap.Error(err))
				continue
			}
			text.WriteString("\n")
			text.WriteString(extracted)
		case util.IsImage(m.ContentType):
			attachments = append(attachments, examgen.Attachment{
				MIMEType: m.ContentType,
				Data:     m.Data,
			})
		case strings.HasPrefix(m.ContentType, util.MimeText):
			text.WriteString("\n")
			text.Write(m.Data)
		default:
			s.log.Warn("不支持的资料类型", zap.String("filename", m.Filename),
				zap.String("content_type", m.ContentType))
		}
	}
	return text.String(), attachments, nil
}

func extractPDFText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// archiveMaterials 上传资料归档到对象存储，失败只记日志不阻断出题
func (s *ExamService) archiveMaterials(ctx context.Context, userID uint, materials []UploadedMaterial) {
	for _, m := range materials {
		name := fmt.Sprintf("materials/%d/%s_%s", userID, uuid.New().String(), filepath.Base(m.Filename))
		if _, err := s.Storage.Save(ctx, name, bytes.NewReader(m.Data), int64(len(m.Data)), m.ContentType); err != nil {
			s.log.Warn("资料归档失败", zap.String("filename", m.Filename), zap.Error(err))
		}
	}
}

// sourceHash 出题输入的指纹，作为结果缓存键
func sourceHash(in GenerateExamInput, sourceText string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|", in.Subject, in.GradeLevel, in.Language, in.QuestionCount)
	h.Write([]byte(sourceText))
	for _, m := range in.Materials {
		h.Write(m.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (s *ExamService) lookupCache(ctx context.Context, userID uint, hash string) *model.Exam {
	s.mu.RLock()
	ttl := s.cacheTTL
	s.mu.RUnlock()

	if s.Redis == nil {
		// Redis 不可用时退回数据库指纹查询，时效窗口与缓存一致。
		// 降级占位卷不算可复用的结果
		exam, err := s.ExamRepo.FindBySourceHash(userID, hash)
		if err != nil || exam.Degraded || time.Since(exam.CreatedAt) > ttl {
			return nil
		}
		return exam
	}

	examID, err := s.Redis.Get(ctx, sourceCacheKeyPrefix+hash).Result()
	if err != nil {
		return nil
	}
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil || exam.UserID != userID {
		return nil
	}
	return exam
}

func (s *ExamService) storeCache(ctx context.Context, userID uint, hash, examID string) {
	if s.Redis == nil {
		return
	}
	s.mu.RLock()
	ttl := s.cacheTTL
	s.mu.RUnlock()
	if err := s.Redis.Set(ctx, sourceCacheKeyPrefix+hash, examID, ttl).Err(); err != nil {
		s.log.Warn("结果缓存写入失败", zap.Error(err))
	}
}

// persistExam 试卷与题目落库
func (s *ExamService) persistExam(
	userID uint,
	in GenerateExamInput,
	hash string,
	questions []examgen.Question,
	score int,
	temperature float64,
	degraded bool,
) (*model.Exam, error) {
	title := in.Title
	if title == "" {
		title = fmt.Sprintf("%s测验 %s", in.Subject, time.Now().Format(util.DateFormat))
	}

	exam := &model.Exam{
		UserID:        userID,
		Title:         title,
		Subject:       in.Subject,
		GradeLevel:    in.GradeLevel,
		Language:      in.Language,
		Status:        model.ExamStatusDraft,
		QuestionCount: len(questions),
		Score:         score,
		Degraded:      degraded,
		Temperature:   temperature,
		SourceHash:    hash,
	}
	for _, q := range questions {
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return nil, err
		}
		exam.Questions = append(exam.Questions, model.ExamQuestion{
			Ordinal:      q.ID,
			QuestionType: q.Type,
			Content:      q.Question,
			Options:      opts,
			Answer:       q.CorrectAnswer,
			Explanation:  q.Explanation,
		})
	}

	if err := s.ExamRepo.Create(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *ExamService) auditLogFull(
	userID uint,
	examID, requestID string,
	usage examgen.UsageRecord,
	duration time.Duration,
	success bool,
	phase string,
	score int,
	cacheHit bool,
) {
	entry := &model.GenerationLog{
		UserID:           userID,
		ExamID:           examID,
		RequestID:        requestID,
		Model:            s.Cfg.AI.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		InputCost:        usage.InputCost,
		OutputCost:       usage.OutputCost,
		TotalCost:        usage.TotalCost,
		Attempts:         usage.Attempts,
		Estimated:        usage.Estimated,
		DurationMs:       duration.Milliseconds(),
		Success:          success,
		FailurePhase:     phase,
		Score:            score,
		CacheHit:         cacheHit,
	}
	if err := s.LogRepo.Create(entry); err != nil {
		s.log.Error("用量审计写入失败", zap.Error(err))
	}
}

// buildPrompt 组装中文出题提示词，输出形状写死在提示里
func buildPrompt(in GenerateExamInput, sourceText string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "请根据以下资料，为%s年级的%s课程出%d道题目。\n",
		in.GradeLevel, in.Subject, in.QuestionCount)
	b.WriteString("要求：\n")
	b.WriteString("1. 题型为单项选择题（4个选项）或判断题。\n")
	b.WriteString("2. 题干不得引用图片、图表、表格或页面等视觉材料。\n")
	b.WriteString("3. 每道题必须给出正确答案和解析，正确答案必须逐字等于某个选项。\n")
	b.WriteString("4. 只输出 JSON，格式如下：\n")
	b.WriteString(`{"questions":[{"id":1,"type":"multiple_choice","question":"题干","options":["A","B","C","D"],"correct_answer":"A","explanation":"解析"}]}`)
	b.WriteString("\n")
	if strings.TrimSpace(sourceText) != "" {
		b.WriteString("\n资料内容：\n")
		b.WriteString(sourceText)
	}
	return b.String()
}

// GetExam 按 ID 取卷并做归属校验
func (s *ExamService) GetExam(id string, userID uint) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindByID(id)
	if err != nil {
		return nil, ErrExamNotFound
	}
	if exam.UserID != userID {
		return nil, ErrNotOwner
	}
	return exam, nil
}

func (s *ExamService) ListExams(userID uint, status string, page, limit int) ([]model.Exam, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.ExamRepo.ListByUser(userID, status, page, limit)
}

// Publish 立即发布或定时发布。降级占位卷一律拒绝
func (s *ExamService) Publish(id string, userID uint, at *time.Time) (*model.Exam, error) {
	exam, err := s.GetExam(id, userID)
	if err != nil {
		return nil, err
	}
	if !exam.Publishable() {
		if exam.Degraded {
			return nil, ErrDegradedPublish
		}
		return nil, ErrAlreadyPublished
	}

	if at != nil && at.After(time.Now()) {
		exam.Status = model.ExamStatusScheduled
		exam.PublishAt = at
	} else {
		now := time.Now()
		exam.Status = model.ExamStatusPublished
		exam.PublishAt = &now
	}
	if err := s.ExamRepo.Update(exam); err != nil {
		return nil, err
	}
	return exam, nil
}

func (s *ExamService) Delete(id string, userID uint) error {
	exam, err := s.GetExam(id, userID)
	if err != nil {
		return err
	}
	return s.ExamRepo.Delete(exam.ID)
}

// UsageLogs 按时间倒序分页返回用户的出题用量明细
func (s *ExamService) UsageLogs(userID uint, page, limit int) ([]model.GenerationLog, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.LogRepo.ListByUser(userID, page, limit)
}

func (s *ExamService) UsageSummary(userID uint, days int) (*repository.UsageSummary, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().AddDate(0, 0, -days)
	return s.LogRepo.Summarize(userID, since)
}

// ProcessScheduledPublishes 定时发布扫描，由后台 ticker 周期调用
func (s *ExamService) ProcessScheduledPublishes(ctx context.Context) {
	exams, err := s.ExamRepo.FindDuePublishes(time.Now(), 100)
	if err != nil {
		s.log.Error("定时发布扫描失败", zap.Error(err))
		return
	}
	for _, exam := range exams {
		if err := s.ExamRepo.MarkPublished(exam.ID); err != nil {
			s.log.Error("定时发布失败", zap.String("exam_id", exam.ID), zap.Error(err))
			continue
		}
		s.log.Info("定时发布完成", zap.String("exam_id", exam.ID))
	}
}
