package controller

import (
	"smartprep_backend/internal/service"
	"smartprep_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// PointsRequest 积分变动，可为负
type PointsRequest struct {
	Points int64 `json:"points" binding:"required"`
}

// PointsResponse 累加后的积分
type PointsResponse struct {
	Points int64 `json:"points"`
}

// UserController 凭证交换与用户资料同步
type UserController struct {
	Credentials *service.CredentialService
	Progress    *service.ProgressService
}

func NewUserController(credentials *service.CredentialService, progress *service.ProgressService) *UserController {
	return &UserController{
		Credentials: credentials,
		Progress:    progress,
	}
}

// StoreToken godoc
// @Summary 换取进度存储凭证
// @Description 用身份令牌换取访问进度存储的短期凭证，有效期内重复调用返回同一凭证
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.StoreCredential} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/store-token [get]
func (c *UserController) StoreToken(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	cred, err := c.Credentials.Obtain(claims)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, cred)
}

// SyncUser godoc
// @Summary 同步用户资料
// @Description 将身份令牌中的邮箱与姓名合并写入用户文档，不影响解锁进度
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.UserProfile} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 500 {object} util.Response "服务器内部错误"
// @Router /api/users/sync [post]
func (c *UserController) SyncUser(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	profile, err := c.Progress.SyncUser(ctx.Request.Context(), claims)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// Me godoc
// @Summary 读取当前用户文档
// @Tags 用户
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.UserProfile} "成功"
// @Failure 401 {object} util.Response "未授权"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/me [get]
func (c *UserController) Me(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	profile, err := c.Progress.Profile(ctx.Request.Context(), claims)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, profile)
}

// AddPoints godoc
// @Summary 累加积分
// @Description 原子累加当前用户积分，用户文档不存在时自动创建
// @Tags 用户
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body PointsRequest true "积分变动"
// @Success 200 {object} util.Response{data=PointsResponse} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 401 {object} util.Response "未授权"
// @Router /api/users/points [post]
func (c *UserController) AddPoints(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	var req PointsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	total, err := c.Progress.AddPoints(ctx.Request.Context(), claims, req.Points)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, PointsResponse{Points: total})
}
