package handlers

import (
	"net/http"

	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/middleware"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/repositories"

	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	*BaseHandler
	courseRepo repositories.CourseRepository
}

func NewCourseHandler(base *BaseHandler, courseRepo repositories.CourseRepository) *CourseHandler {
	return &CourseHandler{BaseHandler: base, courseRepo: courseRepo}
}

func (h *CourseHandler) RegisterRoutes(r *gin.RouterGroup) {
	courses := r.Group("/courses")
	{
		courses.GET("", h.ListCourses)
		courses.GET("/:courseId", h.GetCourse)
		courses.POST("", middleware.AuthMiddleware(), middleware.RequireRoles(models.UserRoleAdmin), h.CreateCourse)
	}
}

func (h *CourseHandler) ListCourses(c *gin.Context) {
	courses, err := h.courseRepo.FindActive()
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"courses": courses})
}

func (h *CourseHandler) GetCourse(c *gin.Context) {
	course, err := h.courseRepo.FindByID(c.Param("courseId"))
	if err != nil {
		h.HandleServiceError(c, appErrors.ErrCourseNotFound.WithError(err))
		return
	}
	c.JSON(http.StatusOK, course)
}

type createCourseRequest struct {
	Title             string  `json:"title" validate:"required"`
	Description       string  `json:"description"`
	Price             float64 `json:"price" validate:"required,gt=0"`
	AllowInstallments bool    `json:"allow_installments"`
}

func (h *CourseHandler) CreateCourse(c *gin.Context) {
	var req createCourseRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	course := &models.Course{
		Title:             req.Title,
		Description:       req.Description,
		Price:             req.Price,
		AllowInstallments: req.AllowInstallments,
		IsActive:          true,
	}
	if err := h.courseRepo.Create(course); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, course)
}
