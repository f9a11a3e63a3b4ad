package controller

import (
	"errors"
	"strconv"

	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/internal/service"
	"scorm_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	RuntimeService   *service.RuntimeService
	InferenceService *service.InferenceService
}

func NewAttemptController(runtimeService *service.RuntimeService, inferenceService *service.InferenceService) *AttemptController {
	return &AttemptController{
		RuntimeService:   runtimeService,
		InferenceService: inferenceService,
	}
}

// List godoc
// @Summary 当前用户的 Attempt 列表
// @Tags Attempt
// @Produce  json
// @Security BearerAuth
// @Param   page  query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/attempts [get]
func (c *AttemptController) List(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}

	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	attempts, total, err := c.RuntimeService.AttemptRepo.ListByUser(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}

// Get godoc
// @Summary Attempt 详情
// @Description 学生只能看自己的；teacher/admin 可以看任何人的
// @Tags Attempt
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "Attempt ID"
// @Success 200 {object} util.Response{data=model.ScormAttempt}
// @Failure 404 {object} util.Response "不存在"
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	attempt, err := c.RuntimeService.AttemptRepo.FindByID(uint(id))
	if err != nil {
		util.NotFound(ctx)
		return
	}
	if attempt.UserID != claims.UserID && claims.Role == model.Student {
		util.Forbidden(ctx)
		return
	}
	util.Success(ctx, attempt)
}

// Repair godoc
// @Summary 单条完成度改判
// @Description 管理员对单个 Attempt 评估启发式证据并改判完成，证据不足时只返回评估结果
// @Tags 完成度推断
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "Attempt ID"
// @Success 200 {object} util.Response{data=service.RepairResult}
// @Failure 404 {object} util.Response "不存在"
// @Failure 409 {object} util.Response "推断已被配置停用"
// @Router /api/attempts/{id}/repair [post]
func (c *AttemptController) Repair(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	result, err := c.InferenceService.RepairAttempt(ctx.Request.Context(), uint(id))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrInferenceDisabled):
			util.Error(ctx, 409, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// RunInference godoc
// @Summary 批量完成度修复
// @Description 管理员触发全量扫描，受配置超时约束，幂等可重跑
// @Tags 完成度推断
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.BatchSummary}
// @Failure 409 {object} util.Response "推断已被配置停用"
// @Router /api/admin/inference/run [post]
func (c *AttemptController) RunInference(ctx *gin.Context) {
	summary, err := c.InferenceService.Run(ctx.Request.Context())
	if err != nil {
		if errors.Is(err, util.ErrInferenceDisabled) {
			util.Error(ctx, 409, err.Error())
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, summary)
}
