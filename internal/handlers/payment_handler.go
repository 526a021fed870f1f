package handlers

import (
	"io"
	"net/http"
	"strconv"

	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/gateways"
	"stitchhub_backend/internal/middleware"
	"stitchhub_backend/internal/repositories"
	"stitchhub_backend/internal/services"
	"stitchhub_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	*BaseHandler
	checkoutService   services.CheckoutService
	settlementService services.SettlementService
	txRepo            repositories.TransactionRepository
}

func NewPaymentHandler(
	base *BaseHandler,
	checkoutService services.CheckoutService,
	settlementService services.SettlementService,
	txRepo repositories.TransactionRepository,
) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:       base,
		checkoutService:   checkoutService,
		settlementService: settlementService,
		txRepo:            txRepo,
	}
}

func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		// Вебхуки без аутентификации: их защищает подпись шлюза.
		payments.POST("/webhook/paystack", h.PaystackWebhook)
		payments.POST("/webhook/flutterwave", h.FlutterwaveWebhook)
		// Pull-верификация тоже открыта: клиент возвращается с redirect
		// страницы шлюза еще до логина, сам запрос лишь просит нас
		// переспросить шлюз по reference.
		payments.POST("/verify", h.VerifyPayment)

		authed := payments.Group("")
		authed.Use(middleware.AuthMiddleware())
		{
			authed.POST("/checkout", h.Checkout)
			authed.GET("/history", h.History)
			authed.GET("/:transactionId/installments", h.Installments)
		}
	}
}

func (h *PaymentHandler) Checkout(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	resp, err := h.checkoutService.InitiateCheckout(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *PaymentHandler) PaystackWebhook(c *gin.Context) {
	h.handleWebhook(c, gateways.GatewayPaystack, c.GetHeader("x-paystack-signature"))
}

func (h *PaymentHandler) FlutterwaveWebhook(c *gin.Context) {
	h.handleWebhook(c, gateways.GatewayFlutterwave, c.GetHeader("verif-hash"))
}

// handleWebhook читает тело до какого-либо парсинга: подпись считается
// от сырых байт, а не от перемаршаленного JSON.
func (h *PaymentHandler) handleWebhook(c *gin.Context, gateway, signature string) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		appErrors.HandleError(c, appErrors.NewBadRequestError("Failed to read request body"))
		return
	}

	if err := h.settlementService.HandlePush(c.Request.Context(), gateway, payload, signature); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	// Шлюзам достаточно 200, тело они не читают.
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	var req dto.PullVerifyRequest
	if !h.BindAndValidateJSON(c, &req) {
		return
	}

	confirmed, err := h.settlementService.HandlePullVerify(c.Request.Context(), req.Gateway, req.Reference)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PullVerifyResponse{Success: confirmed})
}

func (h *PaymentHandler) History(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	transactions, total, err := h.txRepo.ListByUser(userID, limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *PaymentHandler) Installments(c *gin.Context) {
	userID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	transactionID := c.Param("transactionId")

	plan, err := h.txRepo.FindByID(transactionID)
	if err != nil {
		h.HandleServiceError(c, appErrors.ErrPlanNotFound.WithError(err))
		return
	}
	if plan.UserID != userID {
		appErrors.HandleError(c, appErrors.ErrForbidden)
		return
	}

	installments, err := h.txRepo.ListInstallments(transactionID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	resp := make([]dto.InstallmentResponse, 0, len(installments))
	for _, inst := range installments {
		resp = append(resp, dto.InstallmentResponse{
			Number:  inst.InstallmentNumber,
			Amount:  inst.Amount,
			DueDate: inst.DueDate,
			Status:  string(inst.Status),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transaction_id": transactionID, "installments": resp})
}
