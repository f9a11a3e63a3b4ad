package controller

import (
	"errors"
	"strconv"

	"scorm_lms_backend/internal/scorm"
	"scorm_lms_backend/internal/service"
	"scorm_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PackageController struct {
	PackageService *service.PackageService
}

func NewPackageController(packageService *service.PackageService) *PackageController {
	return &PackageController{PackageService: packageService}
}

// Upload godoc
// @Summary 上传课件包
// @Description 接收 SCORM/xAPI zip 包，解析清单并解压入库。解析失败整体拒绝。
// @Tags 课件包
// @Accept  multipart/form-data
// @Produce  json
// @Security BearerAuth
// @Param   id path int  true "课程ID"
// @Param   file formData file true "zip 课件包"
// @Success 201 {object} util.Response{data=model.ScormPackage}
// @Failure 400 {object} util.Response "不是合法的课件包"
// @Failure 413 {object} util.Response "超出大小限制"
// @Router /api/courses/{id}/packages [post]
func (c *PackageController) Upload(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "missing file field")
		return
	}

	pkg, err := c.PackageService.Upload(ctx.Request.Context(), uint(courseID), claims.UserID, fileHeader)
	if err != nil {
		var vErr *scorm.ValidationError
		switch {
		case errors.Is(err, util.ErrPackageTooLarge):
			util.Error(ctx, 413, err.Error())
		case errors.Is(err, util.ErrCourseNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrUnsupportedArchive):
			util.BadRequest(ctx, err.Error())
		case errors.As(err, &vErr):
			util.BadRequest(ctx, vErr.Error())
		default:
			util.BadRequest(ctx, err.Error())
		}
		return
	}

	util.Created(ctx, pkg)
}

// List godoc
// @Summary 课程下的课件包列表
// @Tags 课件包
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "课程ID"
// @Success 200 {object} util.Response{data=[]model.ScormPackage}
// @Router /api/courses/{id}/packages [get]
func (c *PackageController) ListByCourse(ctx *gin.Context) {
	courseID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	pkgs, err := c.PackageService.ListByCourse(uint(courseID))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, pkgs)
}

// Get godoc
// @Summary 课件包详情
// @Tags 课件包
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "包ID"
// @Success 200 {object} util.Response{data=model.ScormPackage}
// @Failure 404 {object} util.Response "包不存在"
// @Router /api/packages/{id} [get]
func (c *PackageController) Get(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid package id")
		return
	}

	pkg, err := c.PackageService.Get(uint(id))
	if err != nil {
		if errors.Is(err, util.ErrPackageNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, pkg)
}

// Launch godoc
// @Summary 启动课件
// @Description 返回播放地址和本次 Attempt；上次已完成并终判则自动开新 Attempt
// @Tags 课件包
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "包ID"
// @Success 200 {object} util.Response{data=service.LaunchResult}
// @Failure 404 {object} util.Response "包不存在"
// @Router /api/packages/{id}/launch [post]
func (c *PackageController) Launch(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid package id")
		return
	}

	result, err := c.PackageService.Launch(ctx.Request.Context(), claims.UserID, uint(id))
	if err != nil {
		if errors.Is(err, util.ErrPackageNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// UpdateLaunchURLRequest 入口修正请求
type UpdateLaunchURLRequest struct {
	LaunchURL string `json:"launchUrl" binding:"required"`
}

// UpdateLaunchURL godoc
// @Summary 修正课件入口文件
// @Description 管理员接口，解析兜底选错入口时手动指定
// @Tags 课件包
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param   id path int true "包ID"
// @Param   body body UpdateLaunchURLRequest true "新入口路径"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response "包不存在"
// @Router /api/packages/{id}/launch-url [put]
func (c *PackageController) UpdateLaunchURL(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid package id")
		return
	}
	var req UpdateLaunchURLRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.PackageService.UpdateLaunchURL(uint(id), req.LaunchURL); err != nil {
		if errors.Is(err, util.ErrPackageNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, nil)
}
