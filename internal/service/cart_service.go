package service

import (
	"fmt"
	"strings"

	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/repository"

	"github.com/shopspring/decimal"
)

// CartService 购物车服务
// 价格与税率由上游计价服务写入，这里只做快照保管与合计。
type CartService struct {
	cartRepo repository.CartRepository
}

// NewCartService 创建购物车服务实例
func NewCartService(cartRepo repository.CartRepository) *CartService {
	return &CartService{cartRepo: cartRepo}
}

// CartItemInput 购物车写入参数
type CartItemInput struct {
	ProductID uint   `json:"product_id" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Name      string `json:"name" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
	UnitPrice string `json:"unit_price" binding:"required"`
	TaxRate   string `json:"tax_rate"`
}

// CartView 购物车视图（含合计）
type CartView struct {
	Items    []models.CartItem `json:"items"`
	Subtotal models.Money      `json:"subtotal"`
	Tax      models.Money      `json:"tax"`
	Total    models.Money      `json:"total"`
}

// PutItem 写入或覆盖购物车项
func (s *CartService) PutItem(userID uint, input CartItemInput) (*models.CartItem, error) {
	if userID == 0 || input.ProductID == 0 {
		return nil, ErrCartAmountInvalid
	}
	if input.Quantity < 1 {
		return nil, fmt.Errorf("%w: 数量至少为 1", ErrCartAmountInvalid)
	}
	unitPrice, err := models.NewMoneyFromString(strings.TrimSpace(input.UnitPrice))
	if err != nil || unitPrice.IsNegative() {
		return nil, fmt.Errorf("%w: 单价不合法", ErrCartAmountInvalid)
	}
	taxRate := models.Money{Decimal: decimal.Zero}
	if strings.TrimSpace(input.TaxRate) != "" {
		rate, parseErr := decimal.NewFromString(strings.TrimSpace(input.TaxRate))
		if parseErr != nil || rate.IsNegative() {
			return nil, fmt.Errorf("%w: 税率不合法", ErrCartAmountInvalid)
		}
		taxRate = models.Money{Decimal: rate}
	}

	item := &models.CartItem{
		UserID:    userID,
		ProductID: input.ProductID,
		SKU:       strings.TrimSpace(input.SKU),
		Name:      strings.TrimSpace(input.Name),
		Quantity:  input.Quantity,
		UnitPrice: unitPrice,
		TaxRate:   taxRate,
	}
	if err := s.cartRepo.Upsert(item); err != nil {
		logger.Errorw("cart_item_upsert_failed", "user_id", userID, "product_id", input.ProductID, "error", err)
		return nil, err
	}
	return item, nil
}

// RemoveItem 移除购物车项
func (s *CartService) RemoveItem(userID, productID uint) error {
	if userID == 0 || productID == 0 {
		return nil
	}
	return s.cartRepo.RemoveItem(userID, productID)
}

// Clear 清空购物车
func (s *CartService) Clear(userID uint) error {
	return s.cartRepo.ClearByUser(userID)
}

// GetCart 获取购物车及合计
func (s *CartService) GetCart(userID uint) (*CartView, error) {
	items, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	subtotal, tax := sumCartAmounts(items)
	return &CartView{
		Items:    items,
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}, nil
}

// sumCartAmounts 计算小计与税额（各自保留 2 位小数）
func sumCartAmounts(items []models.CartItem) (models.Money, models.Money) {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, item := range items {
		quantity := decimal.NewFromInt(int64(item.Quantity))
		lineNet := item.UnitPrice.Decimal.Mul(quantity)
		subtotal = subtotal.Add(lineNet)
		tax = tax.Add(lineNet.Mul(item.TaxRate.Decimal))
	}
	return models.NewMoneyFromDecimal(subtotal), models.NewMoneyFromDecimal(tax)
}
