package public

import (
	"errors"

	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	key    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackKey string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.key, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackKey, err)
}

var checkoutErrorRules = []mappedHandlerError{
	{target: service.ErrGuestContactRequired, code: response.CodeBadRequest, key: "error.guest_email_required"},
	{target: service.ErrEmptyCart, code: response.CodeBadRequest, key: "error.cart_empty"},
	{target: service.ErrCartAmountInvalid, code: response.CodeBadRequest, key: "error.cart_item_invalid"},
	{target: service.ErrOrderAmountInvalid, code: response.CodeBadRequest, key: "error.order_amount_invalid"},
	{target: service.ErrAddressInvalid, code: response.CodeBadRequest, key: "error.address_invalid"},
	{target: service.ErrAddressNotFound, code: response.CodeNotFound, key: "error.address_not_found"},
	{target: service.ErrSlotInvalid, code: response.CodeBadRequest, key: "error.slot_invalid"},
	{target: service.ErrSlotUnavailable, code: response.CodeBadRequest, key: "error.slot_unavailable"},
}

var captureErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, key: "error.order_not_found"},
	{target: service.ErrOrderOwnershipMismatch, code: response.CodeForbidden, key: "error.order_forbidden"},
	{target: service.ErrOrderAlreadySettled, code: response.CodeBadRequest, key: "error.order_already_settled"},
	{target: service.ErrNoPendingPayment, code: response.CodeBadRequest, key: "error.payment_pending_missing"},
	{target: service.ErrPaymentDeclined, code: response.CodeBadRequest, key: "error.payment_declined"},
	{target: service.ErrGatewayConfigInvalid, code: response.CodeInternal, key: "error.gateway_config_invalid"},
	{target: service.ErrGatewayResponseInvalid, code: response.CodeInternal, key: "error.gateway_response_invalid"},
	{target: service.ErrGatewayUnavailable, code: response.CodeInternal, key: "error.gateway_unavailable"},
}

func respondCheckoutError(c *gin.Context, err error) {
	respondWithMappedError(c, err, checkoutErrorRules, response.CodeInternal, "error.order_create_failed")
}

func respondCaptureError(c *gin.Context, err error) {
	respondWithMappedError(c, err, captureErrorRules, response.CodeInternal, "error.payment_capture_failed")
}
