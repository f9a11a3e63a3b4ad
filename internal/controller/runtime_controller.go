package controller

import (
	"errors"
	"strconv"

	"scorm_lms_backend/internal/service"
	"scorm_lms_backend/internal/util"
	"scorm_lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

// RuntimeController SCORM RTE 的 HTTP 面。协议约定：状态机层面的失败
// （未初始化、只读元素、词汇表不合法……）一律 HTTP 200 + errorCode，
// 课件里的播放器靠 GetLastError 拿码；只有归属/基础设施问题才走 4xx/5xx。
type RuntimeController struct {
	RuntimeService *service.RuntimeService
}

func NewRuntimeController(runtimeService *service.RuntimeService) *RuntimeController {
	return &RuntimeController{RuntimeService: runtimeService}
}

func (c *RuntimeController) attemptID(ctx *gin.Context) (uint, uint, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return 0, 0, false
	}
	id, err := strconv.ParseUint(ctx.Param("attemptId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid attempt id")
		return 0, 0, false
	}
	return uint(id), claims.UserID, true
}

func (c *RuntimeController) fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrAttemptNotOwned):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// Initialize godoc
// @Summary RTE Initialize
// @Description 开始一次运行时会话。重复初始化按协议返回 errorCode。
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Success 200 {object} service.RTEResult
// @Failure 403 {object} util.Response "不是本人的 Attempt"
// @Failure 404 {object} util.Response "Attempt 不存在"
// @Router /api/scorm/{attemptId}/initialize [post]
func (c *RuntimeController) Initialize(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}

	result, err := c.RuntimeService.Initialize(ctx.Request.Context(), attemptID, userID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	monitoring.ObserveRTECall("Initialize", result.Result, result.ErrorCode)
	ctx.JSON(200, result)
}

// GetValueResponse GetValue 的响应体
type GetValueResponse struct {
	Result    string `json:"result"`
	Value     string `json:"value"`
	ErrorCode int    `json:"errorCode"`
}

// GetValue godoc
// @Summary RTE GetValue
// @Description 读 CMI 元素。未知元素返回空值和协议错误码，永不 5xx。
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Param   element query string true "CMI 元素名"
// @Success 200 {object} GetValueResponse
// @Router /api/scorm/{attemptId}/value [get]
func (c *RuntimeController) GetValue(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}
	element := ctx.Query("element")

	value, result, err := c.RuntimeService.GetValue(ctx.Request.Context(), attemptID, userID, element)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	monitoring.ObserveRTECall("GetValue", result.Result, result.ErrorCode)
	ctx.JSON(200, GetValueResponse{Result: result.Result, Value: value, ErrorCode: result.ErrorCode})
}

// SetValueRequest SetValue 的请求体
type SetValueRequest struct {
	Element string `json:"element" binding:"required"`
	Value   string `json:"value"`
}

// SetValue godoc
// @Summary RTE SetValue
// @Description 写 CMI 元素，经过只读/类型/词汇表校验后落库
// @Tags RTE
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Param   body body SetValueRequest true "元素与值"
// @Success 200 {object} service.RTEResult
// @Router /api/scorm/{attemptId}/value [post]
func (c *RuntimeController) SetValue(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}
	var req SetValueRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.RuntimeService.SetValue(ctx.Request.Context(), attemptID, userID, req.Element, req.Value)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	monitoring.ObserveRTECall("SetValue", result.Result, result.ErrorCode)
	ctx.JSON(200, result)
}

// Commit godoc
// @Summary RTE Commit
// @Description 持久化当前 CMI 状态并联动课程进度；无变更时幂等
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Success 200 {object} service.RTEResult
// @Router /api/scorm/{attemptId}/commit [post]
func (c *RuntimeController) Commit(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}

	result, err := c.RuntimeService.Commit(ctx.Request.Context(), attemptID, userID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	monitoring.ObserveRTECall("Commit", result.Result, result.ErrorCode)
	ctx.JSON(200, result)
}

// Terminate godoc
// @Summary RTE Terminate
// @Description 隐式 Commit 后结束会话；之后的调用按协议报错
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Success 200 {object} service.RTEResult
// @Router /api/scorm/{attemptId}/terminate [post]
func (c *RuntimeController) Terminate(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}

	result, err := c.RuntimeService.Terminate(ctx.Request.Context(), attemptID, userID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	monitoring.ObserveRTECall("Terminate", result.Result, result.ErrorCode)
	ctx.JSON(200, result)
}

// LastError godoc
// @Summary RTE GetLastError
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Success 200 {object} object "errorCode"
// @Router /api/scorm/{attemptId}/last-error [get]
func (c *RuntimeController) LastError(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}

	code, err := c.RuntimeService.LastError(ctx.Request.Context(), attemptID, userID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"errorCode": code})
}

// ErrorText godoc
// @Summary RTE GetErrorString
// @Description 错误码的协议描述文本；未知码返回空串而不是报错
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Param   code query int true "错误码"
// @Success 200 {object} object "errorString"
// @Router /api/scorm/{attemptId}/error-string [get]
func (c *RuntimeController) ErrorText(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}
	code, err := strconv.Atoi(ctx.DefaultQuery("code", "0"))
	if err != nil {
		util.BadRequest(ctx, "invalid error code")
		return
	}

	text, err := c.RuntimeService.ErrorText(ctx.Request.Context(), attemptID, userID, code)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"errorString": text})
}

// Diagnostic godoc
// @Summary RTE GetDiagnostic
// @Description 最近一次调用的诊断详情（比错误描述更具体的定位信息）
// @Tags RTE
// @Produce  json
// @Security BearerAuth
// @Param   attemptId path int true "Attempt ID"
// @Success 200 {object} object "diagnostic"
// @Router /api/scorm/{attemptId}/diagnostic [get]
func (c *RuntimeController) Diagnostic(ctx *gin.Context) {
	attemptID, userID, ok := c.attemptID(ctx)
	if !ok {
		return
	}

	diag, err := c.RuntimeService.Diagnostic(ctx.Request.Context(), attemptID, userID)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	ctx.JSON(200, gin.H{"diagnostic": diag})
}
