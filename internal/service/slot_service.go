package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tienda-next/internal/cache"
	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/repository"
)

const (
	slotDateLayout        = "2006-01-02"
	slotAvailabilityCache = 30 * time.Second
)

// SlotService 配送时段容量服务
type SlotService struct {
	cfg      *config.Config
	slotRepo repository.DeliverySlotRepository
}

// NewSlotService 创建配送时段服务实例
func NewSlotService(cfg *config.Config, slotRepo repository.DeliverySlotRepository) *SlotService {
	return &SlotService{
		cfg:      cfg,
		slotRepo: slotRepo,
	}
}

// SlotAvailability 时段可用性
type SlotAvailability struct {
	Date        string `json:"date"`
	Window      string `json:"window"`
	MaxCapacity int    `json:"max_capacity"`
	Remaining   int    `json:"remaining"`
	Available   bool   `json:"available"`
}

func (s *SlotService) defaultCapacity() int {
	if s.cfg == nil {
		return 0
	}
	return s.cfg.Delivery.DefaultSlotCapacity
}

func (s *SlotService) bookingHorizonDays() int {
	if s.cfg == nil || s.cfg.Delivery.BookingHorizonDays <= 0 {
		return 14
	}
	return s.cfg.Delivery.BookingHorizonDays
}

// normalizeWindow 规范化时段标识
func normalizeWindow(window string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(window)) {
	case constants.DeliveryWindowMorning:
		return constants.DeliveryWindowMorning, true
	case constants.DeliveryWindowAfternoon:
		return constants.DeliveryWindowAfternoon, true
	}
	return "", false
}

// normalizeSlotDate 规范化配送日期（YYYY-MM-DD）
func normalizeSlotDate(date string) (string, bool) {
	date = strings.TrimSpace(date)
	parsed, err := time.Parse(slotDateLayout, date)
	if err != nil {
		return "", false
	}
	return parsed.Format(slotDateLayout), true
}

// ValidateSlot 校验日期与时段并返回规范化值
func (s *SlotService) ValidateSlot(date, window string) (string, string, error) {
	normalizedDate, ok := normalizeSlotDate(date)
	if !ok {
		return "", "", fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrSlotInvalid)
	}
	normalizedWindow, ok := normalizeWindow(window)
	if !ok {
		return "", "", fmt.Errorf("%w: 未知时段 %s", ErrSlotInvalid, window)
	}
	return normalizedDate, normalizedWindow, nil
}

// CheckAvailable 查询单个时段可用性（只读，不占用容量）
func (s *SlotService) CheckAvailable(date, window string) (*SlotAvailability, error) {
	normalizedDate, normalizedWindow, err := s.ValidateSlot(date, window)
	if err != nil {
		return nil, err
	}

	slot, err := s.slotRepo.Get(normalizedDate, normalizedWindow)
	if err != nil {
		logger.Errorw("slot_query_failed", "date", normalizedDate, "window", normalizedWindow, "error", err)
		return nil, err
	}

	availability := SlotAvailability{
		Date:   normalizedDate,
		Window: normalizedWindow,
	}
	if slot == nil {
		// 缺行时段按默认容量开放
		availability.MaxCapacity = s.defaultCapacity()
		availability.Remaining = s.defaultCapacity()
		availability.Available = s.defaultCapacity() > 0
		return &availability, nil
	}

	availability.MaxCapacity = slot.MaxCapacity
	availability.Remaining = slot.Remaining()
	availability.Available = !slot.IsBlocked && slot.Remaining() > 0
	return &availability, nil
}

// ListAvailability 列出日期区间内所有时段的可用性
// 区间为空时默认从明天起到预订上限天数。
func (s *SlotService) ListAvailability(fromDate, toDate string) ([]SlotAvailability, error) {
	var from, to time.Time
	if strings.TrimSpace(fromDate) == "" {
		from = time.Now().AddDate(0, 0, 1)
	} else {
		parsed, err := time.Parse(slotDateLayout, strings.TrimSpace(fromDate))
		if err != nil {
			return nil, fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrSlotInvalid)
		}
		from = parsed
	}
	if strings.TrimSpace(toDate) == "" {
		to = from.AddDate(0, 0, s.bookingHorizonDays()-1)
	} else {
		parsed, err := time.Parse(slotDateLayout, strings.TrimSpace(toDate))
		if err != nil {
			return nil, fmt.Errorf("%w: 日期格式应为 YYYY-MM-DD", ErrSlotInvalid)
		}
		to = parsed
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: 结束日期早于开始日期", ErrSlotInvalid)
	}
	if int(to.Sub(from).Hours()/24) >= s.bookingHorizonDays() {
		to = from.AddDate(0, 0, s.bookingHorizonDays()-1)
	}

	cacheKey := fmt.Sprintf("slots:availability:%s:%s", from.Format(slotDateLayout), to.Format(slotDateLayout))
	var cached []SlotAvailability
	if hit, cacheErr := cache.GetJSON(context.Background(), cacheKey, &cached); cacheErr == nil && hit {
		return cached, nil
	}

	slots, err := s.slotRepo.ListRange(from.Format(slotDateLayout), to.Format(slotDateLayout))
	if err != nil {
		logger.Errorw("slot_range_query_failed", "from", from.Format(slotDateLayout), "to", to.Format(slotDateLayout), "error", err)
		return nil, err
	}

	byKey := make(map[string]SlotAvailability, len(slots))
	for _, slot := range slots {
		byKey[slot.Date+"|"+slot.Window] = SlotAvailability{
			Date:        slot.Date,
			Window:      slot.Window,
			MaxCapacity: slot.MaxCapacity,
			Remaining:   slot.Remaining(),
			Available:   !slot.IsBlocked && slot.Remaining() > 0,
		}
	}

	windows := []string{constants.DeliveryWindowMorning, constants.DeliveryWindowAfternoon}
	var result []SlotAvailability
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		date := day.Format(slotDateLayout)
		for _, window := range windows {
			if item, ok := byKey[date+"|"+window]; ok {
				result = append(result, item)
				continue
			}
			result = append(result, SlotAvailability{
				Date:        date,
				Window:      window,
				MaxCapacity: s.defaultCapacity(),
				Remaining:   s.defaultCapacity(),
				Available:   s.defaultCapacity() > 0,
			})
		}
	}

	// 列表仅作展示，短 TTL 缓存即可，真正的容量判定在下单事务内完成
	if err := cache.SetJSON(context.Background(), cacheKey, result, slotAvailabilityCache); err != nil {
		logger.Debugw("slot_availability_cache_set_failed", "key", cacheKey, "error", err)
	}
	return result, nil
}

// Configure 管理端配置时段容量与封禁状态
func (s *SlotService) Configure(date, window string, maxCapacity int, isBlocked bool) (*SlotAvailability, error) {
	normalizedDate, normalizedWindow, err := s.ValidateSlot(date, window)
	if err != nil {
		return nil, err
	}
	if maxCapacity < 0 {
		return nil, fmt.Errorf("%w: 容量不能为负", ErrSlotInvalid)
	}

	if err := s.slotRepo.UpsertConfig(normalizedDate, normalizedWindow, maxCapacity, isBlocked); err != nil {
		logger.Errorw("slot_config_failed",
			"date", normalizedDate,
			"window", normalizedWindow,
			"max_capacity", maxCapacity,
			"is_blocked", isBlocked,
			"error", err,
		)
		return nil, err
	}
	logger.Infow("slot_configured",
		"date", normalizedDate,
		"window", normalizedWindow,
		"max_capacity", maxCapacity,
		"is_blocked", isBlocked,
	)
	return s.CheckAvailable(normalizedDate, normalizedWindow)
}
