package admin

import (
	"errors"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// AdminListSlots 管理端查询时段可用性
func (h *Handler) AdminListSlots(c *gin.Context) {
	slots, err := h.SlotService.ListAvailability(c.Query("from"), c.Query("to"))
	if err != nil {
		if errors.Is(err, service.ErrSlotInvalid) {
			respondError(c, response.CodeBadRequest, "error.slot_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.slot_fetch_failed", err)
		return
	}
	response.Success(c, slots)
}

// ConfigureSlotRequest 时段容量配置请求
type ConfigureSlotRequest struct {
	Date        string `json:"date" binding:"required"`
	Window      string `json:"window" binding:"required"`
	MaxCapacity int    `json:"max_capacity"`
	IsBlocked   bool   `json:"is_blocked"`
}

// ConfigureSlot 配置配送时段容量或封禁状态
func (h *Handler) ConfigureSlot(c *gin.Context) {
	var req ConfigureSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	availability, err := h.SlotService.Configure(req.Date, req.Window, req.MaxCapacity, req.IsBlocked)
	if err != nil {
		if errors.Is(err, service.ErrSlotInvalid) {
			respondError(c, response.CodeBadRequest, "error.slot_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.slot_config_failed", err)
		return
	}
	response.Success(c, availability)
}
