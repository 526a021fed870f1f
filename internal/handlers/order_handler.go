package handlers

import (
	"net/http"

	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/middleware"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/repositories"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	*BaseHandler
	orderRepo repositories.OrderRepository
}

func NewOrderHandler(base *BaseHandler, orderRepo repositories.OrderRepository) *OrderHandler {
	return &OrderHandler{BaseHandler: base, orderRepo: orderRepo}
}

func (h *OrderHandler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware())
	{
		orders.POST("", h.CreateOrder)
		orders.GET("/:orderId", h.GetOrder)
	}
}

type createOrderRequest struct {
	Description string  `json:"description" validate:"required"`
	TotalPrice  float64 `json:"total_price" validate:"required,gt=0"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req createOrderRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	order := &models.Order{
		UserID:      userID,
		Description: req.Description,
		TotalPrice:  req.TotalPrice,
		Status:      models.OrderStatusPendingPayment,
	}
	if err := h.orderRepo.Create(order); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	order, err := h.orderRepo.FindByID(c.Param("orderId"))
	if err != nil {
		h.HandleServiceError(c, appErrors.NewNotFoundError("Order not found"))
		return
	}
	if order.UserID != userID {
		appErrors.HandleError(c, appErrors.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, order)
}
