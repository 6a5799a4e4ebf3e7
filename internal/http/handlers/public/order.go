package public

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/repository"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

var orderLookupErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderFetchFailed, code: response.CodeInternal, key: "error.order_fetch_failed"},
}

// ListOrders 用户订单列表
func (h *Handler) ListOrders(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	orders, total, err := h.OrderService.ListUserOrders(repository.OrderListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Status:   strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, orders, pagination)
}

// GetOrder 用户订单详情
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetUserOrder(c.Param("order_no"), userID)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, order)
}

// CancelOrder 买家取消未支付订单
func (h *Handler) CancelOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetUserOrder(c.Param("order_no"), userID)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	cancelled, err := h.OrderService.CancelByBuyer(order)
	if err != nil {
		if errors.Is(err, service.ErrOrderStatusInvalid) {
			respondError(c, response.CodeBadRequest, "error.order_status_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_cancel_failed", err)
		return
	}
	response.Success(c, cancelled)
}

// GetOrderInvoice 查询订单的电子凭证
func (h *Handler) GetOrderInvoice(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	order, err := h.OrderService.GetUserOrder(c.Param("order_no"), userID)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	invoice, err := h.InvoiceService.GetByOrderID(order.ID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.invoice_fetch_failed", err)
		return
	}
	if invoice == nil {
		respondError(c, response.CodeNotFound, "error.invoice_not_found", nil)
		return
	}
	response.Success(c, invoice)
}

// GetGuestOrder 游客订单详情（订单号 + 下单邮箱）
func (h *Handler) GetGuestOrder(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		respondError(c, response.CodeBadRequest, "error.guest_email_required", nil)
		return
	}
	order, err := h.OrderService.GetGuestOrder(c.Param("order_no"), email)
	if err != nil {
		respondWithMappedError(c, err, orderLookupErrorRules, response.CodeInternal, "error.order_fetch_failed")
		return
	}
	response.Success(c, order)
}
