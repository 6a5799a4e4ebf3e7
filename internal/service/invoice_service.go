package service

import (
	"fmt"
	"time"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/repository"
)

// InvoiceService 发票服务
type InvoiceService struct {
	invoiceRepo repository.InvoiceRepository
	paymentRepo repository.PaymentRepository
}

// NewInvoiceService 创建发票服务实例
func NewInvoiceService(invoiceRepo repository.InvoiceRepository, paymentRepo repository.PaymentRepository) *InvoiceService {
	return &InvoiceService{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
	}
}

// GenerateForOrder 为已结算订单生成发票（幂等，每单至多一张）
func (s *InvoiceService) GenerateForOrder(orderID, paymentID uint) (*models.Invoice, error) {
	existing, err := s.invoiceRepo.GetByOrderID(orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	payment, err := s.paymentRepo.GetByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.OrderID != orderID {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != constants.PaymentStatusSucceeded {
		return nil, fmt.Errorf("%w: 支付未成功，不能开票", ErrOrderStatusInvalid)
	}

	issuedAt := time.Now()
	invoice := &models.Invoice{
		InvoiceNo:      fmt.Sprintf("INV-%s-%06d", issuedAt.UTC().Format("20060102"), orderID),
		OrderID:        orderID,
		PaymentID:      payment.ID,
		AmountCentimos: payment.AmountCentimos,
		Currency:       payment.Currency,
		IssuedAt:       issuedAt,
	}
	if err := s.invoiceRepo.Create(invoice); err != nil {
		// 与重复投递并发时唯一索引兜底
		replay, lookupErr := s.invoiceRepo.GetByOrderID(orderID)
		if lookupErr == nil && replay != nil {
			return replay, nil
		}
		return nil, err
	}

	logger.Infow("invoice_issued",
		"invoice_no", invoice.InvoiceNo,
		"order_id", orderID,
		"payment_id", payment.ID,
		"amount_centimos", invoice.AmountCentimos,
	)
	return invoice, nil
}

// GetByOrderID 查询订单发票
func (s *InvoiceService) GetByOrderID(orderID uint) (*models.Invoice, error) {
	return s.invoiceRepo.GetByOrderID(orderID)
}
