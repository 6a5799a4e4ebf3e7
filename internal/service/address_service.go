package service

import (
	"fmt"
	"strings"

	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/repository"
)

// AddressService 收货地址服务
type AddressService struct {
	addressRepo repository.AddressRepository
}

// NewAddressService 创建地址服务实例
func NewAddressService(addressRepo repository.AddressRepository) *AddressService {
	return &AddressService{addressRepo: addressRepo}
}

// AddressInput 地址写入参数
type AddressInput struct {
	ContactName  string `json:"contact_name" binding:"required"`
	ContactPhone string `json:"contact_phone" binding:"required"`
	Line1        string `json:"line1" binding:"required"`
	District     string `json:"district"`
	City         string `json:"city"`
	Reference    string `json:"reference"`
	IsDefault    bool   `json:"is_default"`
}

// Create 新增收货地址
func (s *AddressService) Create(userID uint, input AddressInput) (*models.Address, error) {
	contactName := strings.TrimSpace(input.ContactName)
	contactPhone := strings.TrimSpace(input.ContactPhone)
	line1 := strings.TrimSpace(input.Line1)
	if contactName == "" || contactPhone == "" || line1 == "" {
		return nil, fmt.Errorf("%w: 收货人、电话与街道地址必填", ErrAddressInvalid)
	}

	address := &models.Address{
		UserID:       userID,
		ContactName:  contactName,
		ContactPhone: contactPhone,
		Line1:        line1,
		District:     strings.TrimSpace(input.District),
		City:         strings.TrimSpace(input.City),
		Reference:    strings.TrimSpace(input.Reference),
		IsDefault:    input.IsDefault,
	}
	if err := s.addressRepo.Create(address); err != nil {
		return nil, err
	}
	return address, nil
}

// List 用户地址列表
func (s *AddressService) List(userID uint) ([]models.Address, error) {
	return s.addressRepo.ListByUser(userID)
}

// Get 查询用户地址
func (s *AddressService) Get(id, userID uint) (*models.Address, error) {
	address, err := s.addressRepo.GetByIDAndUser(id, userID)
	if err != nil {
		return nil, err
	}
	if address == nil {
		return nil, ErrAddressNotFound
	}
	return address, nil
}
