package public

import (
	"strings"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CapturePaymentRequest 登录用户扣款请求
type CapturePaymentRequest struct {
	TokenID string `json:"token_id" binding:"required"`
}

// CaptureGuestPaymentRequest 游客扣款请求
type CaptureGuestPaymentRequest struct {
	TokenID string `json:"token_id" binding:"required"`
	Email   string `json:"email" binding:"required"`
}

// CapturePayment 登录用户对自己的订单发起扣款
func (h *Handler) CapturePayment(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CapturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	payment, err := h.SettlementService.Capture(service.CaptureInput{
		OrderNo:          orderNo,
		TokenID:          req.TokenID,
		RequestingUserID: userID,
		Context:          c.Request.Context(),
	})
	if err != nil {
		respondCaptureError(c, err)
		return
	}
	response.Success(c, gin.H{
		"payment_id": payment.ID,
		"status":     payment.Status,
		"paid_at":    payment.PaidAt,
	})
}

// CaptureGuestPayment 游客对自己的订单发起扣款
func (h *Handler) CaptureGuestPayment(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	if orderNo == "" {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	var req CaptureGuestPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	// 游客订单以订单号+邮箱双因子定位
	order, err := h.OrderService.GetGuestOrder(orderNo, req.Email)
	if err != nil {
		respondCaptureError(c, err)
		return
	}

	payment, err := h.SettlementService.Capture(service.CaptureInput{
		OrderNo: order.OrderNo,
		TokenID: req.TokenID,
		Email:   req.Email,
		Context: c.Request.Context(),
	})
	if err != nil {
		respondCaptureError(c, err)
		return
	}
	response.Success(c, gin.H{
		"payment_id": payment.ID,
		"status":     payment.Status,
		"paid_at":    payment.PaidAt,
	})
}
