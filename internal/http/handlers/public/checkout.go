package public

import (
	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CheckoutRequest 下单请求
// 已登录用户可传 address_id 引用地址簿，或传 address 随单地址；
// lines 为空时使用当前购物车。
type CheckoutRequest struct {
	AddressID      uint                        `json:"address_id"`
	Address        *service.InlineAddressInput `json:"address"`
	DeliveryDate   string                      `json:"delivery_date" binding:"required"`
	DeliveryWindow string                      `json:"delivery_window" binding:"required"`
	Lines          []service.CheckoutLineInput `json:"lines"`
	Notes          string                      `json:"notes"`
	PromoCode      string                      `json:"promo_code"`
}

// GuestCheckoutRequest 游客下单请求
type GuestCheckoutRequest struct {
	CheckoutRequest
	Email string `json:"email" binding:"required"`
	Phone string `json:"phone"`
}

func (h *Handler) doCheckout(c *gin.Context, input service.CheckoutInput) {
	input.ClientIP = c.ClientIP()
	input.Context = c.Request.Context()

	result, err := h.CheckoutService.Checkout(input)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) doValidateCheckout(c *gin.Context, input service.CheckoutInput) {
	validated, err := h.CheckoutService.Validate(input)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}
	response.Success(c, validated)
}

// ValidateCheckout 登录用户下单前校验
func (h *Handler) ValidateCheckout(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	h.doValidateCheckout(c, service.CheckoutInput{
		UserID:         userID,
		DeliveryDate:   req.DeliveryDate,
		DeliveryWindow: req.DeliveryWindow,
		Lines:          req.Lines,
	})
}

// ValidateGuestCheckout 游客下单前校验
func (h *Handler) ValidateGuestCheckout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	h.doValidateCheckout(c, service.CheckoutInput{
		DeliveryDate:   req.DeliveryDate,
		DeliveryWindow: req.DeliveryWindow,
		Lines:          req.Lines,
	})
}

// CreateOrder 登录用户下单
func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	h.doCheckout(c, service.CheckoutInput{
		UserID:         userID,
		AddressID:      req.AddressID,
		InlineAddress:  req.Address,
		DeliveryDate:   req.DeliveryDate,
		DeliveryWindow: req.DeliveryWindow,
		Lines:          req.Lines,
		Notes:          req.Notes,
		PromoCode:      req.PromoCode,
	})
}

// CreateGuestOrder 游客下单
func (h *Handler) CreateGuestOrder(c *gin.Context) {
	var req GuestCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	h.doCheckout(c, service.CheckoutInput{
		GuestEmail:     req.Email,
		GuestPhone:     req.Phone,
		InlineAddress:  req.Address,
		DeliveryDate:   req.DeliveryDate,
		DeliveryWindow: req.DeliveryWindow,
		Lines:          req.Lines,
		Notes:          req.Notes,
		PromoCode:      req.PromoCode,
	})
}
