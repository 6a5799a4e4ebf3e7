package public

import (
	"errors"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetSlotAvailability 查询配送时段可用性
func (h *Handler) GetSlotAvailability(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")

	slots, err := h.SlotService.ListAvailability(from, to)
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
