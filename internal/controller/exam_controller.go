package controller

import (
	"errors"
	"io"
	"strconv"
	"time"

	"smart_exam_backend/internal/service"
	"smart_exam_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// 单个资料文件的大小上限
const maxMaterialSize = 20 << 20

type ExamController struct {
	ExamService *service.ExamService
}

func NewExamController(examService *service.ExamService) *ExamController {
	return &ExamController{ExamService: examService}
}

// Generate godoc
// @Summary 生成试卷
// @Description 根据上传资料或文本生成一份试卷
// @Tags 试卷
// @Accept  multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param title formData string false "试卷标题"
// @Param subject formData string true "学科"
// @Param gradeLevel formData string false "年级"
// @Param questionCount formData int false "题目数量"
// @Param sourceText formData string false "出题文本资料"
// @Param files formData file false "出题文件资料（PDF/图片/文本）"
// @Success 201 {object} util.Response{data=model.Exam}
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 422 {object} util.Response "生成内容未通过质量校验"
// @Router /api/exams/generate [post]
func (c *ExamController) Generate(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	subject := ctx.PostForm("subject")
	if subject == "" {
		util.BadRequest(ctx, "subject is required")
		return
	}

	count := 5
	if v := ctx.PostForm("questionCount"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			count = n
		}
	}

	in := service.GenerateExamInput{
		Title:         ctx.PostForm("title"),
		Subject:       subject,
		GradeLevel:    ctx.PostForm("gradeLevel"),
		Language:      ctx.PostForm("language"),
		QuestionCount: count,
		SourceText:    ctx.PostForm("sourceText"),
	}

	form, err := ctx.MultipartForm()
	if err == nil && form != nil {
		for _, fh := range form.File["files"] {
			if fh.Size > maxMaterialSize {
				util.BadRequest(ctx, "文件过大: "+fh.Filename)
				return
			}
			if !util.IsAllowedMaterialExt(fh.Filename) {
				util.BadRequest(ctx, "不支持的文件扩展名: "+fh.Filename)
				return
			}
			f, err := fh.Open()
			if err != nil {
				util.LogInternalError(ctx, err)
				return
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				util.LogInternalError(ctx, err)
				return
			}
			mimeType, err := util.SniffMaterial(data)
			if err != nil {
				util.BadRequest(ctx, "不支持的文件类型: "+fh.Filename)
				return
			}
			in.Materials = append(in.Materials, service.UploadedMaterial{
				Filename:    fh.Filename,
				ContentType: mimeType,
				Data:        data,
			})
		}
	}

	exam, err := c.ExamService.Generate(ctx.Request.Context(), claims.UserID, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoSourceMaterial):
			util.BadRequest(ctx, err.Error())
		case errors.Is(err, service.ErrValidationBlocked):
			util.Error(ctx, 422, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Created(ctx, exam)
}

// Get godoc
// @Summary 获取试卷详情
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response{data=model.Exam}
// @Failure 404 {object} util.Response "试卷不存在"
// @Router /api/exams/{id} [get]
func (c *ExamController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	exam, err := c.ExamService.GetExam(ctx.Param("id"), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) {
			util.Forbidden(ctx)
		} else {
			util.NotFound(ctx)
		}
		return
	}
	util.Success(ctx, exam)
}

// List godoc
// @Summary 试卷列表
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "状态过滤: draft/scheduled/published"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/exams [get]
func (c *ExamController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page := int(util.MustParseUint(ctx.DefaultQuery("page", "1")))
	limit := int(util.MustParseUint(ctx.DefaultQuery("limit", "20")))

	exams, total, err := c.ExamService.ListExams(claims.UserID, ctx.Query("status"), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  exams,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// PublishRequest 发布请求，publishAt 为空表示立即发布
// swagger:model PublishRequest
type PublishRequest struct {
	PublishAt *time.Time `json:"publishAt"`
}

// Publish godoc
// @Summary 发布试卷
// @Description 立即发布或定时发布，降级占位卷不允许发布
// @Tags 试卷
// @Accept  json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Param body body PublishRequest false "发布时间"
// @Success 200 {object} util.Response{data=model.Exam}
// @Failure 409 {object} util.Response "试卷状态不允许发布"
// @Router /api/exams/{id}/publish [post]
func (c *ExamController) Publish(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam, err := c.ExamService.Publish(ctx.Param("id"), claims.UserID, req.PublishAt)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			util.NotFound(ctx)
		case errors.Is(err, service.ErrNotOwner):
			util.Forbidden(ctx)
		case errors.Is(err, service.ErrDegradedPublish), errors.Is(err, service.ErrAlreadyPublished):
			util.Error(ctx, 409, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, exam)
}

// Delete godoc
// @Summary 删除试卷
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "试卷ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{id} [delete]
func (c *ExamController) Delete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.ExamService.Delete(ctx.Param("id"), claims.UserID); err != nil {
		switch {
		case errors.Is(err, service.ErrExamNotFound):
			util.NotFound(ctx)
		case errors.Is(err, service.ErrNotOwner):
			util.Forbidden(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}

// Usage godoc
// @Summary 用量汇总
// @Description 查询当前用户近期的出题用量与成本
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param days query int false "统计天数，默认30"
// @Success 200 {object} util.Response{data=repository.UsageSummary}
// @Router /api/exams/usage [get]
func (c *ExamController) Usage(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	summary, err := c.ExamService.UsageSummary(claims.UserID, days)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// UsageLogs godoc
// @Summary 用量明细
// @Description 按时间倒序分页查询当前用户每次出题的 token 与成本记录
// @Tags 试卷
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/exams/usage/logs [get]
func (c *ExamController) UsageLogs(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page := int(util.MustParseUint(ctx.DefaultQuery("page", "1")))
	limit := int(util.MustParseUint(ctx.DefaultQuery("limit", "20")))

	logs, total, err := c.ExamService.UsageLogs(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:  logs,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
