package admin

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/tienda-next/internal/constants"
	handlershared "github.com/tienda-next/internal/http/handlers/shared"
	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/repository"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

const adminDateLayout = "2006-01-02"

// AdminListOrders 管理端订单列表
func (h *Handler) AdminListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = handlershared.NormalizePagination(page, pageSize)

	filter := repository.OrderListFilter{
		Page:       page,
		PageSize:   pageSize,
		Status:     strings.TrimSpace(c.Query("status")),
		OrderNo:    strings.TrimSpace(c.Query("order_no")),
		GuestEmail: strings.ToLower(strings.TrimSpace(c.Query("guest_email"))),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		if userID, err := strconv.ParseUint(raw, 10, 64); err == nil {
			filter.UserID = uint(userID)
		}
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		if from, err := time.Parse(adminDateLayout, raw); err == nil {
			filter.CreatedFrom = &from
		}
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		if to, err := time.Parse(adminDateLayout, raw); err == nil {
			end := to.AddDate(0, 0, 1)
			filter.CreatedTo = &end
		}
	}

	orders, total, err := h.OrderService.ListAdminOrders(filter)
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

// AdminGetOrder 管理端订单详情
func (h *Handler) AdminGetOrder(c *gin.Context) {
	order, err := h.OrderService.GetAdminOrder(c.Param("order_no"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}
	response.Success(c, order)
}

// AdminUpdateOrderStatusRequest 管理端订单状态变更请求
type AdminUpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

// AdminUpdateOrderStatus 管理端变更订单状态
func (h *Handler) AdminUpdateOrderStatus(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req AdminUpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	order, err := h.OrderService.GetAdminOrder(c.Param("order_no"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.order_fetch_failed", err)
		return
	}

	updated, err := h.OrderService.TransitionOrder(order.ID, req.Status, constants.StatusActorAdmin, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			respondError(c, response.CodeNotFound, "error.order_not_found", nil)
		case errors.Is(err, service.ErrOrderStatusInvalid):
			respondError(c, response.CodeBadRequest, "error.order_status_invalid", nil)
		default:
			respondError(c, response.CodeInternal, "error.order_update_failed", err)
		}
		return
	}
	requestLog(c).Infow("admin_order_status_updated",
		"admin_id", adminID,
		"order_no", updated.OrderNo,
		"status", updated.Status,
	)
	response.Success(c, updated)
}
