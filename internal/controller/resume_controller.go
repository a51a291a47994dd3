package controller

import (
	"fmt"
	"io"

	"smartprep_backend/internal/service"
	"smartprep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResumeController struct {
	ResumeService *service.ResumeService
}

func NewResumeController(resumeService *service.ResumeService) *ResumeController {
	return &ResumeController{ResumeService: resumeService}
}

// GenerateQuestions godoc
// @Summary 根据简历生成面试题
// @Description 上传 PDF 或文本简历，返回 10 道带意图与难度标签的面试题
// @Tags 简历
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param resume formData file true "简历文件 (.pdf/.txt/.md)"
// @Success 200 {object} util.Response{data=[]model.GeneratedQuestion} "成功"
// @Failure 400 {object} util.Response "文件无效或无法抽取文本"
// @Failure 503 {object} util.Response "生成服务不可用"
// @Router /api/resume/questions [post]
func (c *ResumeController) GenerateQuestions(ctx *gin.Context) {
	upload, ok := c.readUpload(ctx)
	if !ok {
		return
	}

	questions, err := c.ResumeService.InterviewQuestions(ctx.Request.Context(), upload)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"questions": questions})
}

// Review godoc
// @Summary 简历点评
// @Description 返回摘要、优势、待改进项与建议
// @Tags 简历
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param resume formData file true "简历文件 (.pdf/.txt/.md)"
// @Success 200 {object} util.Response{data=model.ResumeReview} "成功"
// @Failure 400 {object} util.Response "文件无效或无法抽取文本"
// @Failure 503 {object} util.Response "生成服务不可用"
// @Router /api/resume/review [post]
func (c *ResumeController) Review(ctx *gin.Context) {
	upload, ok := c.readUpload(ctx)
	if !ok {
		return
	}

	review, err := c.ResumeService.Review(ctx.Request.Context(), upload)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, review)
}

// Match godoc
// @Summary 简历岗位匹配
// @Description 返回最匹配的岗位、两项建议补充的技能与两个备选岗位
// @Tags 简历
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param resume formData file true "简历文件 (.pdf/.txt/.md)"
// @Success 200 {object} util.Response{data=model.ResumeMatch} "成功"
// @Failure 400 {object} util.Response "文件无效或无法抽取文本"
// @Failure 503 {object} util.Response "匹配服务不可用"
// @Router /api/resume/match [post]
func (c *ResumeController) Match(ctx *gin.Context) {
	upload, ok := c.readUpload(ctx)
	if !ok {
		return
	}

	match, err := c.ResumeService.Match(ctx.Request.Context(), upload)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, match)
}

func (c *ResumeController) readUpload(ctx *gin.Context) (service.ResumeUpload, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return service.ResumeUpload{}, false
	}

	file, err := ctx.FormFile("resume")
	if err != nil {
		util.BadRequest(ctx, "No file uploaded")
		return service.ResumeUpload{}, false
	}
	if file.Size > util.MaxResumeBytes {
		util.BadRequest(ctx, fmt.Sprintf("File too large, max %d MB", util.MaxResumeBytes>>20))
		return service.ResumeUpload{}, false
	}

	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return service.ResumeUpload{}, false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, util.MaxResumeBytes))
	if err != nil {
		util.LogInternalError(ctx, err)
		return service.ResumeUpload{}, false
	}

	return service.ResumeUpload{
		UserID:   claims.UserID(),
		Filename: file.Filename,
		Data:     data,
	}, true
}
