package culqi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrConfigInvalid    = errors.New("culqi config invalid")
	ErrRequestFailed    = errors.New("culqi request failed")
	ErrResponseInvalid  = errors.New("culqi response invalid")
	ErrSignatureInvalid = errors.New("culqi signature invalid")
)

// 回调事件类型常量
const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
	EventChargeRefunded  = "charge.refunded"
)

// 扣款结果类型常量
const (
	OutcomeSuccess = "venta_exitosa"
)

// Config 网关配置
type Config struct {
	BaseURL        string `json:"base_url"`        // API 地址，如 https://api.culqi.com
	SecretKey      string `json:"secret_key"`      // 商户私钥
	WebhookSecret  string `json:"webhook_secret"`  // 回调签名共享密钥
	TimeoutSeconds int    `json:"timeout_seconds"` // 请求超时（秒），默认 15
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.WebhookSecret = strings.TrimSpace(c.WebhookSecret)
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ParseConfig 解析配置
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig 校验配置
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return fmt.Errorf("%w: base_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return fmt.Errorf("%w: webhook_secret is required", ErrConfigInvalid)
	}
	return nil
}

// PreOrderInput 预下单输入
type PreOrderInput struct {
	OrderNo        string
	AmountCentimos int64
	Currency       string
	Description    string
	Email          string
}

// PreOrderResult 预下单结果
type PreOrderResult struct {
	PreOrderID string                 // 网关预下单ID
	Raw        map[string]interface{} // 原始响应
}

// ChargeInput 扣款输入
type ChargeInput struct {
	OrderNo        string
	AmountCentimos int64
	Currency       string
	TokenID        string
	Email          string
}

// ChargeResult 扣款结果
// Declined=true 表示网关明确拒绝（卡被拒等），不是通信失败。
type ChargeResult struct {
	ChargeID string                 // 网关扣款流水号
	Declined bool                   // 是否被拒绝
	Reason   string                 // 拒绝原因（人类可读）
	Raw      map[string]interface{} // 原始响应
}

// WebhookEvent 回调事件
type WebhookEvent struct {
	Type          string                 // 事件类型（charge.succeeded 等）
	ChargeID      string                 // 网关扣款流水号
	OrderNo       string                 // 商户订单号（来自 metadata，可能为空）
	FailureReason string                 // 失败原因（charge.failed 时）
	Raw           map[string]interface{} // 原始事件
}

// CreatePreOrder 创建预下单（预授权意向）
func CreatePreOrder(ctx context.Context, cfg *Config, input PreOrderInput) (*PreOrderResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.OrderNo == "" || input.AmountCentimos <= 0 {
		return nil, fmt.Errorf("%w: invalid pre-order input", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"amount":        input.AmountCentimos,
		"currency_code": input.Currency,
		"order_number":  input.OrderNo,
		"description":   input.Description,
	}
	if input.Email != "" {
		params["client_details"] = map[string]interface{}{"email": input.Email}
	}

	respBytes, status, err := postJSON(ctx, cfg, cfg.BaseURL+"/v2/orders", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: http status %d", ErrResponseInvalid, status)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: missing pre-order id", ErrResponseInvalid)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)

	return &PreOrderResult{PreOrderID: resp.ID, Raw: raw}, nil
}

// CreateCharge 发起扣款
// 返回值三分：成功（ChargeID 且非 Declined）、明确拒绝（Declined=true）、
// 通信失败（ErrRequestFailed，调用方不得变更任何状态）。
func CreateCharge(ctx context.Context, cfg *Config, input ChargeInput) (*ChargeResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.TokenID == "" || input.AmountCentimos <= 0 {
		return nil, fmt.Errorf("%w: invalid charge input", ErrConfigInvalid)
	}

	params := map[string]interface{}{
		"amount":        input.AmountCentimos,
		"currency_code": input.Currency,
		"source_id":     input.TokenID,
		"email":         input.Email,
		"capture":       true,
		"metadata":      map[string]interface{}{"order_number": input.OrderNo},
	}

	respBytes, status, err := postJSON(ctx, cfg, cfg.BaseURL+"/v2/charges", params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)

	if status >= 200 && status < 300 {
		var resp struct {
			ID      string `json:"id"`
			Outcome struct {
				Type string `json:"type"`
			} `json:"outcome"`
		}
		if err := json.Unmarshal(respBytes, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
		}
		if resp.ID == "" {
			return nil, fmt.Errorf("%w: missing charge id", ErrResponseInvalid)
		}
		if resp.Outcome.Type != "" && resp.Outcome.Type != OutcomeSuccess {
			return &ChargeResult{ChargeID: resp.ID, Declined: true, Reason: resp.Outcome.Type, Raw: raw}, nil
		}
		return &ChargeResult{ChargeID: resp.ID, Raw: raw}, nil
	}

	// 4xx：网关明确拒绝，返回拒绝结果而不是错误
	if status >= 400 && status < 500 {
		var resp struct {
			ChargeID        string `json:"charge_id"`
			DeclineCode     string `json:"decline_code"`
			UserMessage     string `json:"user_message"`
			MerchantMessage string `json:"merchant_message"`
		}
		if err := json.Unmarshal(respBytes, &resp); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
		}
		reason := resp.UserMessage
		if reason == "" {
			reason = resp.MerchantMessage
		}
		if reason == "" {
			reason = resp.DeclineCode
		}
		if reason == "" {
			reason = fmt.Sprintf("declined with http status %d", status)
		}
		return &ChargeResult{ChargeID: resp.ChargeID, Declined: true, Reason: reason, Raw: raw}, nil
	}

	return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, status)
}

// ComputeSignature 计算回调签名（HMAC-SHA256，对原始请求体字节取摘要）
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook 验证回调签名
// 必须对原始、未解析的请求体做校验；不匹配时只返回签名无效，不泄露细节。
func VerifyWebhook(cfg *Config, body []byte, signature string) error {
	if cfg == nil || strings.TrimSpace(cfg.WebhookSecret) == "" {
		return ErrConfigInvalid
	}
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return ErrSignatureInvalid
	}
	expected := ComputeSignature(cfg.WebhookSecret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}

// ParseWebhookEvent 解析回调事件
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	if len(body) == 0 {
		return nil, ErrResponseInvalid
	}
	var payload struct {
		Type string `json:"type"`
		Data struct {
			ID             string `json:"id"`
			FailureMessage string `json:"failure_message"`
			Outcome        struct {
				UserMessage string `json:"user_message"`
			} `json:"outcome"`
			Metadata struct {
				OrderNumber string `json:"order_number"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)

	reason := payload.Data.FailureMessage
	if reason == "" {
		reason = payload.Data.Outcome.UserMessage
	}

	return &WebhookEvent{
		Type:          payload.Type,
		ChargeID:      payload.Data.ID,
		OrderNo:       payload.Data.Metadata.OrderNumber,
		FailureReason: reason,
		Raw:           raw,
	}, nil
}

func postJSON(ctx context.Context, cfg *Config, endpoint string, params map[string]interface{}) ([]byte, int, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.SecretKey)

	client := &http.Client{Timeout: cfg.timeout()}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBytes, resp.StatusCode, nil
}
