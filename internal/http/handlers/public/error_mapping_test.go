package public

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/http/response"
	"github.com/tienda-next/internal/provider"
	"github.com/tienda-next/internal/service"

	"github.com/gin-gonic/gin"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var envelope response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	return envelope
}

func TestCaptureErrorMappingDistinguishesOwnershipFromNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondCaptureError(c, service.ErrOrderOwnershipMismatch)
	if envelope := decodeEnvelope(t, w); envelope.StatusCode != response.CodeForbidden {
		t.Fatalf("ownership mismatch status code want %d got %d", response.CodeForbidden, envelope.StatusCode)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondCaptureError(c, service.ErrOrderNotFound)
	if envelope := decodeEnvelope(t, w); envelope.StatusCode != response.CodeNotFound {
		t.Fatalf("not found status code want %d got %d", response.CodeNotFound, envelope.StatusCode)
	}
}

func TestCulqiWebhookBadSignatureIsBadRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Gateway.BaseURL = "http://gateway.invalid"
	cfg.Gateway.SecretKey = "sk_test_secret"
	cfg.Gateway.WebhookSecret = "whsec_handler_test"
	handler := &Handler{Container: &provider.Container{
		SettlementService: service.NewSettlementService(cfg, nil, nil, nil, nil),
	}}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/payments/webhook/culqi",
		strings.NewReader(`{"type":"charge.succeeded","data":{"id":"chr_1"}}`))
	c.Request.Header.Set("X-Culqi-Signature", "deadbeef")

	handler.CulqiWebhook(c)

	if envelope := decodeEnvelope(t, w); envelope.StatusCode != response.CodeBadRequest {
		t.Fatalf("bad signature status code want %d got %d", response.CodeBadRequest, envelope.StatusCode)
	}
}
