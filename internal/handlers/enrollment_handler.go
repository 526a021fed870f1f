package handlers

import (
	"net/http"

	"stitchhub_backend/internal/middleware"
	"stitchhub_backend/internal/repositories"

	"github.com/gin-gonic/gin"
)

type EnrollmentHandler struct {
	*BaseHandler
	enrollmentRepo repositories.EnrollmentRepository
}

func NewEnrollmentHandler(base *BaseHandler, enrollmentRepo repositories.EnrollmentRepository) *EnrollmentHandler {
	return &EnrollmentHandler{BaseHandler: base, enrollmentRepo: enrollmentRepo}
}

func (h *EnrollmentHandler) RegisterRoutes(r *gin.RouterGroup) {
	enrollments := r.Group("/enrollments")
	enrollments.Use(middleware.AuthMiddleware())
	{
		enrollments.GET("/me", h.MyEnrollments)
	}
}

func (h *EnrollmentHandler) MyEnrollments(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	enrollments, err := h.enrollmentRepo.FindByUser(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}
