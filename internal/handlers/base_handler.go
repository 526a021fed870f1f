package handlers

import (
	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/logger"
	"stitchhub_backend/internal/validator"

	"github.com/gin-gonic/gin"
)

type BaseHandler struct {
	validator *validator.Validator
}

func NewBaseHandler(v *validator.Validator) *BaseHandler {
	return &BaseHandler{validator: v}
}

// BindAndValidateJSON привязывает тело запроса и прогоняет через валидатор.
// При ошибке сам пишет ответ и возвращает false.
func (h *BaseHandler) BindAndValidateJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		logger.Warn("Failed to bind JSON body", "error", err.Error(), "path", c.Request.URL.Path)
		appErrors.HandleError(c, appErrors.NewBadRequestError("Invalid request body: "+err.Error()))
		return false
	}

	if err := h.validator.Validate(obj); err != nil {
		if vErr, ok := err.(*validator.ValidationError); ok {
			logger.Warn("Validation failed", "errors", vErr.Errors, "path", c.Request.URL.Path)
			appErrors.HandleError(c, appErrors.ValidationError(vErr.Errors))
		} else {
			logger.Error("Internal validator error", "error", err.Error(), "path", c.Request.URL.Path)
			appErrors.HandleError(c, appErrors.InternalError(err))
		}
		return false
	}
	return true
}

func (h *BaseHandler) HandleServiceError(c *gin.Context, err error) {
	var appErr *appErrors.AppError
	if appErrors.As(err, &appErr) {
		logger.Warn("Service error",
			"code", appErr.Code,
			"error", appErr.Message,
			"path", c.Request.URL.Path,
		)
		appErrors.HandleError(c, appErr)
		return
	}
	logger.Error("Internal server error", "error", err.Error(), "path", c.Request.URL.Path)
	appErrors.HandleError(c, appErrors.InternalError(err))
}

// CurrentUserID достает id пользователя, положенный AuthMiddleware.
func (h *BaseHandler) CurrentUserID(c *gin.Context) (string, bool) {
	val, exists := c.Get("userID")
	if !exists {
		appErrors.HandleError(c, appErrors.ErrUnauthorized)
		return "", false
	}
	id, ok := val.(string)
	if !ok || id == "" {
		appErrors.HandleError(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return id, true
}
