package middleware

import (
	"scorm_lms_backend/internal/repository"
	"scorm_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ActivityMiddleware 登录用户的每次请求都刷新 last_seen，异步写不阻塞响应
func ActivityMiddleware(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := util.GetUserFromContext(c); claims != nil {
			go func(id uint) {
				_ = userRepo.UpdateLastSeen(id)
			}(claims.UserID)
		}
		c.Next()
	}
}
