package service

import (
	"strings"

	"github.com/liveshop-next/internal/config"
	"github.com/liveshop-next/internal/models"

	"github.com/shopspring/decimal"
)

// EarningsPolicy 配送费结算策略
type EarningsPolicy interface {
	Earnings(distanceKM float64) models.Money
}

// FlatPolicy 固定配送费
type FlatPolicy struct {
	Base models.Money
}

// Earnings 返回固定费用
func (p FlatPolicy) Earnings(distanceKM float64) models.Money {
	return p.Base
}

// FlatPlusDistancePolicy 起步价 + 里程费，保底下限
type FlatPlusDistancePolicy struct {
	Base      models.Money
	PerKM     models.Money
	MinPayout models.Money
}

// Earnings 计算配送费
func (p FlatPlusDistancePolicy) Earnings(distanceKM float64) models.Money {
	if distanceKM < 0 {
		distanceKM = 0
	}
	total := p.Base.Decimal.Add(p.PerKM.Decimal.Mul(decimal.NewFromFloat(distanceKM)))
	payout := models.NewMoneyFromDecimal(total)
	if payout.Cmp(p.MinPayout) < 0 {
		return p.MinPayout
	}
	return payout
}

// NewEarningsPolicy 按配置构建结算策略
func NewEarningsPolicy(cfg config.EarningsConfig) EarningsPolicy {
	base, err := models.NewMoneyFromString(cfg.BaseFee)
	if err != nil {
		base, _ = models.NewMoneyFromString("5.00")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Policy)) {
	case "flat":
		return FlatPolicy{Base: base}
	default:
		perKM, err := models.NewMoneyFromString(cfg.PerKMFee)
		if err != nil {
			perKM, _ = models.NewMoneyFromString("1.50")
		}
		minPayout, err := models.NewMoneyFromString(cfg.MinPayout)
		if err != nil {
			minPayout = base
		}
		return FlatPlusDistancePolicy{Base: base, PerKM: perKM, MinPayout: minPayout}
	}
}
