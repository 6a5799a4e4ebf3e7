package public

import (
	"errors"
	"io"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

const culqiSignatureHeader = "X-Culqi-Signature"

// CulqiWebhook 网关异步回调入口
// 签名不合法返回 400；其余处理结果一律返回 200，避免网关无意义重试。
func (h *Handler) CulqiWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", err)
		return
	}

	signature := c.GetHeader(culqiSignatureHeader)
	if err := h.SettlementService.Reconcile(body, signature); err != nil {
		if errors.Is(err, service.ErrWebhookSignatureInvalid) {
			respondError(c, response.CodeBadRequest, "error.webhook_signature_invalid", nil)
			return
		}
		respondError(c, response.CodeInternal, "error.webhook_process_failed", err)
		return
	}
	response.Success(c, gin.H{"received": true})
}
