package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/payment/culqi"
	"github.com/tienda-next/internal/queue"
	"github.com/tienda-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const orderNoDayLayout = "20060102"

// CheckoutService 下单编排服务
// 订单号、时段占用、订单与待支付记录在同一事务内落库，任一失败整体回滚。
type CheckoutService struct {
	cfg         *config.Config
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	slotRepo    repository.DeliverySlotRepository
	counterRepo repository.OrderCounterRepository
	cartRepo    repository.CartRepository
	addressRepo repository.AddressRepository
	queueClient *queue.Client
}

// NewCheckoutService 创建下单服务实例
func NewCheckoutService(
	cfg *config.Config,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	slotRepo repository.DeliverySlotRepository,
	counterRepo repository.OrderCounterRepository,
	cartRepo repository.CartRepository,
	addressRepo repository.AddressRepository,
	queueClient *queue.Client,
) *CheckoutService {
	return &CheckoutService{
		cfg:         cfg,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		slotRepo:    slotRepo,
		counterRepo: counterRepo,
		cartRepo:    cartRepo,
		addressRepo: addressRepo,
		queueClient: queueClient,
	}
}

// CheckoutLineInput 下单商品行参数
type CheckoutLineInput struct {
	ProductID uint   `json:"product_id" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	UnitPrice string `json:"unit_price" binding:"required"`
	TaxRate   string `json:"tax_rate"`
}

// InlineAddressInput 随单地址参数
type InlineAddressInput struct {
	ContactName  string `json:"contact_name" binding:"required"`
	ContactPhone string `json:"contact_phone" binding:"required"`
	Line1        string `json:"line1" binding:"required"`
	District     string `json:"district"`
	City         string `json:"city"`
	Reference    string `json:"reference"`
}

// CheckoutInput 下单参数
// 已登录用户可传 AddressID 引用地址簿，或传 InlineAddress；游客只能传 InlineAddress。
// Lines 为空时取当前用户购物车。
type CheckoutInput struct {
	UserID         uint
	GuestEmail     string
	GuestPhone     string
	AddressID      uint
	InlineAddress  *InlineAddressInput
	DeliveryDate   string
	DeliveryWindow string
	Lines          []CheckoutLineInput
	Notes          string
	PromoCode      string
	ClientIP       string
	Context        context.Context
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	Order      *models.Order   `json:"order"`
	Payment    *models.Payment `json:"payment"`
	PreOrderID string          `json:"pre_order_id,omitempty"`
}

type pricedLine struct {
	line      models.OrderLine
	netAmount decimal.Decimal
	taxAmount decimal.Decimal
}

// ValidatedCart 下单前校验结果
type ValidatedCart struct {
	Lines          []models.OrderLine `json:"lines"`
	Subtotal       models.Money       `json:"subtotal"`
	TaxAmount      models.Money       `json:"tax_amount"`
	TotalAmount    models.Money       `json:"total_amount"`
	Currency       string             `json:"currency"`
	DeliveryDate   string             `json:"delivery_date"`
	DeliveryWindow string             `json:"delivery_window"`
}

func sumPricedLines(priced []pricedLine) ([]models.OrderLine, models.Money, models.Money, models.Money) {
	subtotalRaw := decimal.Zero
	taxRaw := decimal.Zero
	lines := make([]models.OrderLine, 0, len(priced))
	for _, item := range priced {
		subtotalRaw = subtotalRaw.Add(item.netAmount)
		taxRaw = taxRaw.Add(item.taxAmount)
		lines = append(lines, item.line)
	}
	subtotal := models.NewMoneyFromDecimal(subtotalRaw)
	taxAmount := models.NewMoneyFromDecimal(taxRaw)
	return lines, subtotal, taxAmount, subtotal.Add(taxAmount)
}

// Validate 下单前校验（只读，不占用容量也不消耗订单号）
// 时段容量在这里只做快照检查，最终判定仍在下单事务内完成。
func (s *CheckoutService) Validate(input CheckoutInput) (*ValidatedCart, error) {
	deliveryDate, ok := normalizeSlotDate(input.DeliveryDate)
	if !ok {
		return nil, fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrSlotInvalid)
	}
	deliveryWindow, ok := normalizeWindow(input.DeliveryWindow)
	if !ok {
		return nil, fmt.Errorf("%w: 未知时段 %s", ErrSlotInvalid, input.DeliveryWindow)
	}

	priced, err := s.resolveLines(input)
	if err != nil {
		return nil, err
	}
	if len(priced) == 0 {
		return nil, ErrEmptyCart
	}
	lines, subtotal, taxAmount, totalAmount := sumPricedLines(priced)
	if !totalAmount.IsPositive() {
		return nil, ErrOrderAmountInvalid
	}

	slot, err := s.slotRepo.Get(deliveryDate, deliveryWindow)
	if err != nil {
		return nil, err
	}
	if slot == nil {
		if s.cfg == nil || s.cfg.Delivery.DefaultSlotCapacity <= 0 {
			return nil, ErrSlotUnavailable
		}
	} else if slot.IsBlocked || slot.Remaining() <= 0 {
		return nil, ErrSlotUnavailable
	}

	return &ValidatedCart{
		Lines:          lines,
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		TotalAmount:    totalAmount,
		Currency:       constants.SiteCurrencyDefault,
		DeliveryDate:   deliveryDate,
		DeliveryWindow: deliveryWindow,
	}, nil
}

// Checkout 创建订单
func (s *CheckoutService) Checkout(input CheckoutInput) (*CheckoutResult, error) {
	guestEmail := strings.ToLower(strings.TrimSpace(input.GuestEmail))
	if input.UserID == 0 {
		if guestEmail == "" || !strings.Contains(guestEmail, "@") {
			return nil, ErrGuestContactRequired
		}
	}

	deliveryDate, ok := normalizeSlotDate(input.DeliveryDate)
	if !ok {
		return nil, fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrSlotInvalid)
	}
	deliveryWindow, ok := normalizeWindow(input.DeliveryWindow)
	if !ok {
		return nil, fmt.Errorf("%w: 未知时段 %s", ErrSlotInvalid, input.DeliveryWindow)
	}

	snapshot, err := s.resolveAddressSnapshot(input)
	if err != nil {
		return nil, err
	}

	priced, err := s.resolveLines(input)
	if err != nil {
		return nil, err
	}
	if len(priced) == 0 {
		return nil, ErrEmptyCart
	}

	lines, subtotal, taxAmount, totalAmount := sumPricedLines(priced)
	if !totalAmount.IsPositive() {
		return nil, ErrOrderAmountInvalid
	}

	now := time.Now()
	day := now.UTC().Format(orderNoDayLayout)
	defaultCapacity := 0
	if s.cfg != nil {
		defaultCapacity = s.cfg.Delivery.DefaultSlotCapacity
	}

	order := &models.Order{
		UserID:          input.UserID,
		GuestEmail:      guestEmail,
		GuestPhone:      strings.TrimSpace(input.GuestPhone),
		Status:          constants.OrderStatusPendingPayment,
		Currency:        constants.SiteCurrencyDefault,
		DeliveryDate:    deliveryDate,
		DeliveryWindow:  deliveryWindow,
		AddressSnapshot: snapshot,
		Subtotal:        subtotal,
		TaxAmount:       taxAmount,
		TotalAmount:     totalAmount,
		Notes:           strings.TrimSpace(input.Notes),
		PromoCode:       strings.TrimSpace(input.PromoCode),
		ClientIP:        strings.TrimSpace(input.ClientIP),
	}
	var payment *models.Payment

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		// 先占时段，占不到立即回滚，不消耗订单号
		affected, reserveErr := s.slotRepo.WithTx(tx).Reserve(deliveryDate, deliveryWindow, defaultCapacity)
		if reserveErr != nil {
			return reserveErr
		}
		if affected == 0 {
			return ErrSlotUnavailable
		}

		seq, seqErr := s.counterRepo.WithTx(tx).Next(day)
		if seqErr != nil {
			return seqErr
		}
		order.OrderNo = fmt.Sprintf("%s-%s-%04d", constants.OrderNumberPrefix, day, seq)

		orderRepo := s.orderRepo.WithTx(tx)
		if createErr := orderRepo.Create(order, lines); createErr != nil {
			return createErr
		}
		if historyErr := orderRepo.AppendStatusHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    constants.OrderStatusPendingPayment,
			ChangedBy: constants.StatusActorBuyer,
			Note:      "订单创建",
		}); historyErr != nil {
			return historyErr
		}

		payment = &models.Payment{
			OrderID:        order.ID,
			AmountCentimos: totalAmount.Centimos(),
			Currency:       order.Currency,
			Status:         constants.PaymentStatusPending,
		}
		return s.paymentRepo.WithTx(tx).Create(payment)
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			logger.Infow("checkout_slot_unavailable",
				"user_id", input.UserID,
				"date", deliveryDate,
				"window", deliveryWindow,
			)
			return nil, ErrSlotUnavailable
		}
		logger.Errorw("checkout_failed", "user_id", input.UserID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	order.Lines = lines
	result := &CheckoutResult{Order: order, Payment: payment}

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"user_id", order.UserID,
		"total", order.TotalAmount.String(),
		"delivery_date", deliveryDate,
		"delivery_window", deliveryWindow,
	)

	s.enqueueTimeoutCancel(order.ID)
	result.PreOrderID = s.tryCreatePreOrder(input.Context, order, payment)

	return result, nil
}

// resolveAddressSnapshot 生成订单地址快照
func (s *CheckoutService) resolveAddressSnapshot(input CheckoutInput) (models.JSON, error) {
	if input.UserID != 0 && input.AddressID != 0 {
		address, err := s.addressRepo.GetByIDAndUser(input.AddressID, input.UserID)
		if err != nil {
			return nil, err
		}
		if address == nil {
			return nil, ErrAddressNotFound
		}
		return address.Snapshot(), nil
	}

	inline := input.InlineAddress
	if inline == nil {
		return nil, ErrAddressInvalid
	}
	contactName := strings.TrimSpace(inline.ContactName)
	contactPhone := strings.TrimSpace(inline.ContactPhone)
	line1 := strings.TrimSpace(inline.Line1)
	if contactName == "" || contactPhone == "" || line1 == "" {
		return nil, fmt.Errorf("%w: 收货人、电话与街道地址必填", ErrAddressInvalid)
	}
	return models.JSON{
		"contact_name":  contactName,
		"contact_phone": contactPhone,
		"line1":         line1,
		"district":      strings.TrimSpace(inline.District),
		"city":          strings.TrimSpace(inline.City),
		"reference":     strings.TrimSpace(inline.Reference),
	}, nil
}

// resolveLines 解析商品行并计价
// 行小计 = 单价 ×(1+税率)× 数量，保留 4 位小数；小计与税额各自取整到 2 位。
func (s *CheckoutService) resolveLines(input CheckoutInput) ([]pricedLine, error) {
	if len(input.Lines) > 0 {
		priced := make([]pricedLine, 0, len(input.Lines))
		for _, raw := range input.Lines {
			if raw.Quantity < 1 {
				return nil, fmt.Errorf("%w: 数量至少为 1", ErrCartAmountInvalid)
			}
			unitPrice, err := models.NewMoneyFromString(strings.TrimSpace(raw.UnitPrice))
			if err != nil || unitPrice.IsNegative() {
				return nil, fmt.Errorf("%w: 单价不合法", ErrCartAmountInvalid)
			}
			taxRate := decimal.Zero
			if strings.TrimSpace(raw.TaxRate) != "" {
				rate, parseErr := decimal.NewFromString(strings.TrimSpace(raw.TaxRate))
				if parseErr != nil || rate.IsNegative() {
					return nil, fmt.Errorf("%w: 税率不合法", ErrCartAmountInvalid)
				}
				taxRate = rate
			}
			priced = append(priced, buildPricedLine(raw.ProductID, raw.SKU, raw.Name, raw.Quantity, unitPrice, taxRate))
		}
		return priced, nil
	}

	if input.UserID == 0 {
		return nil, ErrEmptyCart
	}
	items, err := s.cartRepo.ListByUser(input.UserID)
	if err != nil {
		return nil, err
	}
	priced := make([]pricedLine, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 || item.UnitPrice.IsNegative() || item.TaxRate.IsNegative() {
			return nil, ErrCartAmountInvalid
		}
		priced = append(priced, buildPricedLine(item.ProductID, item.SKU, item.Name, item.Quantity, item.UnitPrice, item.TaxRate.Decimal))
	}
	return priced, nil
}

func buildPricedLine(productID uint, sku, name string, quantity int, unitPrice models.Money, taxRate decimal.Decimal) pricedLine {
	qty := decimal.NewFromInt(int64(quantity))
	netAmount := unitPrice.Decimal.Mul(qty)
	lineTotal := unitPrice.Decimal.Mul(decimal.NewFromInt(1).Add(taxRate)).Mul(qty)
	return pricedLine{
		line: models.OrderLine{
			ProductID: productID,
			SKU:       strings.TrimSpace(sku),
			Name:      strings.TrimSpace(name),
			Quantity:  quantity,
			UnitPrice: unitPrice,
			TaxRate:   models.Money{Decimal: taxRate},
			LineTotal: models.NewLineAmount(lineTotal),
		},
		netAmount: netAmount,
		taxAmount: netAmount.Mul(taxRate),
	}
}

// enqueueTimeoutCancel 推送超时取消任务，失败只记日志不影响下单
func (s *CheckoutService) enqueueTimeoutCancel(orderID uint) {
	if s.queueClient == nil || !s.queueClient.Enabled() || s.cfg == nil {
		return
	}
	expireMinutes := s.cfg.Order.PaymentExpireMinutes
	if expireMinutes <= 0 {
		return
	}
	delay := time.Duration(expireMinutes) * time.Minute
	if err := s.queueClient.EnqueueOrderTimeoutCancel(queue.OrderTimeoutCancelPayload{OrderID: orderID}, delay); err != nil {
		logger.Warnw("order_timeout_cancel_enqueue_failed", "order_id", orderID, "error", err)
	}
}

// tryCreatePreOrder 下单后尝试网关预下单，失败不影响订单
func (s *CheckoutService) tryCreatePreOrder(ctx context.Context, order *models.Order, payment *models.Payment) string {
	if s.cfg == nil || !s.cfg.Gateway.PreOrder {
		return ""
	}
	cfg, err := culqi.ParseConfig(s.cfg.Gateway.ToCulqiConfigMap())
	if err != nil {
		return ""
	}
	if err := culqi.ValidateConfig(cfg); err != nil {
		return ""
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := culqi.CreatePreOrder(ctx, cfg, culqi.PreOrderInput{
		OrderNo:        order.OrderNo,
		AmountCentimos: payment.AmountCentimos,
		Currency:       order.Currency,
		Description:    fmt.Sprintf("order %s", order.OrderNo),
		Email:          order.GuestEmail,
	})
	if err != nil {
		logger.Warnw("gateway_pre_order_failed", "order_no", order.OrderNo, "error", err)
		return ""
	}

	payment.GatewayPreOrderID = result.PreOrderID
	if result.Raw != nil {
		payment.ProviderPayload = models.JSON(result.Raw)
	}
	if err := s.paymentRepo.Update(payment); err != nil {
		logger.Warnw("gateway_pre_order_persist_failed", "order_no", order.OrderNo, "error", err)
	}
	return result.PreOrderID
}
