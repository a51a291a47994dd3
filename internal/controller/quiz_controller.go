package controller

import (
	"smartprep_backend/internal/model"
	"smartprep_backend/internal/service"
	"smartprep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Sessions *service.QuizSessionManager
	Progress *service.ProgressService
}

func NewQuizController(sessions *service.QuizSessionManager, progress *service.ProgressService) *QuizController {
	return &QuizController{
		Sessions: sessions,
		Progress: progress,
	}
}

// SelectionRequest 切换岗位或关卡，未填写的字段保持当前值
// swagger:model SelectionRequest
type SelectionRequest struct {
	Role  string `json:"role"`
	Level int    `json:"level"`
}

// AnswerRequest 记录单题选项
// swagger:model AnswerRequest
type AnswerRequest struct {
	QuestionID string `json:"questionId" binding:"required"`
	OptionID   string `json:"optionId" binding:"required"`
}

// GetRoles godoc
// @Summary 岗位列表
// @Description 返回可选岗位及关卡范围
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.RoleInfo} "成功"
// @Router /api/quiz/roles [get]
func (c *QuizController) GetRoles(ctx *gin.Context) {
	util.Success(ctx, gin.H{
		"roles":    model.Roles,
		"minLevel": model.MinLevel,
		"maxLevel": model.MaxLevel,
	})
}

// GetProgress godoc
// @Summary 解锁进度
// @Description 返回各岗位已解锁的最高关卡和最近一次测验
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.ProgressView} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 503 {object} util.Response "进度存储不可用"
// @Router /api/quiz/progress [get]
func (c *QuizController) GetProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Progress.Progress(ctx.Request.Context(), claims)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// OpenSession godoc
// @Summary 打开测验会话
// @Description 加载进度并返回当前会话；已有会话时直接返回
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 503 {object} util.Response "进度存储不可用"
// @Router /api/quiz/session [post]
func (c *QuizController) OpenSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	session, err := c.Sessions.Open(ctx.Request.Context(), claims)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, session.Snapshot())
}

// GetSession godoc
// @Summary 当前测验会话
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/quiz/session [get]
func (c *QuizController) GetSession(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}
	util.Success(ctx, session.Snapshot())
}

// CloseSession godoc
// @Summary 关闭测验会话
// @Description 停止计时器并丢弃未提交的答案
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "会话不存在"
// @Router /api/quiz/session [delete]
func (c *QuizController) CloseSession(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	if !c.Sessions.Close(claims.UserID()) {
		util.HandleError(ctx, util.ErrSessionNotFound)
		return
	}
	util.Success(ctx, nil)
}

// Select godoc
// @Summary 选择岗位/关卡
// @Description 清空答案与成绩、重置计时器并加载该关卡的题目
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body SelectionRequest true "岗位与关卡"
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 400 {object} util.Response "岗位或关卡无效"
// @Failure 403 {object} util.Response "关卡未解锁"
// @Failure 404 {object} util.Response "该关卡暂无题目"
// @Failure 503 {object} util.Response "题库不可用"
// @Router /api/quiz/session/selection [put]
func (c *QuizController) Select(ctx *gin.Context) {
	var req SelectionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	reqCtx := ctx.Request.Context()
	var err error
	switch {
	case req.Role != "" && req.Level != 0:
		err = session.Select(reqCtx, model.Role(req.Role), req.Level)
	case req.Role != "":
		err = session.SelectRole(reqCtx, model.Role(req.Role))
	case req.Level != 0:
		err = session.SelectLevel(reqCtx, req.Level)
	default:
		util.BadRequest(ctx, "role or level is required")
		return
	}
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, session.Snapshot())
}

// ChooseAnswer godoc
// @Summary 选择答案
// @Description 同一题再次选择时覆盖之前的选项
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body AnswerRequest true "题目与选项"
// @Success 200 {object} util.Response{data=service.SessionView} "成功"
// @Failure 400 {object} util.Response "题目或选项无效"
// @Failure 409 {object} util.Response "已提交或无进行中的测验"
// @Router /api/quiz/session/answers [put]
func (c *QuizController) ChooseAnswer(ctx *gin.Context) {
	var req AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	if err := session.ChooseAnswer(req.QuestionID, req.OptionID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, session.Snapshot())
}

// Submit godoc
// @Summary 提交测验
// @Description 计分并在通过时解锁下一关；重复提交返回已有成绩
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.QuizResult} "成功"
// @Failure 409 {object} util.Response "已提交或当前不可提交"
// @Router /api/quiz/session/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	result, err := session.Submit(ctx.Request.Context())
	if err != nil {
		if result != nil {
			util.ErrorWithData(ctx, util.StatusFor(err), err.Error(), result)
			return
		}
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// TimerAction godoc
// @Summary 计时器操作
// @Description enable/disable/start/pause/reset
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param action path string true "操作" Enums(enable, disable, start, pause, reset)
// @Success 200 {object} util.Response{data=service.TimerView} "成功"
// @Failure 400 {object} util.Response "未知操作"
// @Failure 409 {object} util.Response "当前状态不允许该操作"
// @Router /api/quiz/session/timer/{action} [post]
func (c *QuizController) TimerAction(ctx *gin.Context) {
	session, ok := c.session(ctx)
	if !ok {
		return
	}

	var err error
	switch ctx.Param("action") {
	case "enable":
		session.EnableTimer()
	case "disable":
		session.DisableTimer()
	case "start":
		err = session.StartTimer()
	case "pause":
		err = session.PauseTimer()
	case "reset":
		err = session.ResetTimer()
	default:
		util.BadRequest(ctx, "unknown timer action")
		return
	}
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, session.Timer().View())
}

func (c *QuizController) session(ctx *gin.Context) (*service.QuizSession, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	session, err := c.Sessions.Get(claims)
	if err != nil {
		util.HandleError(ctx, err)
		return nil, false
	}
	return session, true
}
