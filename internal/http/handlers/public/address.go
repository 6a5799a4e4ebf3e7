package public

import (
	"errors"
	"strconv"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListAddresses 获取地址簿
func (h *Handler) ListAddresses(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	addresses, err := h.AddressService.List(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.address_fetch_failed", err)
		return
	}
	response.Success(c, addresses)
}

// CreateAddress 新增收货地址
func (h *Handler) CreateAddress(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req service.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}
	address, err := h.AddressService.Create(userID, req)
	if err != nil {
		if errors.Is(err, service.ErrAddressInvalid) {
			respondError(c, response.CodeBadRequest, "error.address_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.address_create_failed", err)
		return
	}
	response.Success(c, address)
}

// GetAddress 获取地址详情
func (h *Handler) GetAddress(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	addressID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || addressID == 0 {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	address, err := h.AddressService.Get(uint(addressID), userID)
	if err != nil {
		if errors.Is(err, service.ErrAddressNotFound) {
			respondError(c, response.CodeNotFound, "error.address_not_found", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.address_fetch_failed", err)
		return
	}
	response.Success(c, address)
}
