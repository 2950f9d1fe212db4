package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChainEntry представляет одно звено реферальной цепочки.
// Уровень 1 — прямой реферер стартового пользователя, дальше вверх по цепочке.
// Звенья никогда не сохраняются в базу, цепочка строится заново на каждый вызов.
type ChainEntry struct {
	Level          int             `json:"level"`
	UserID         int64           `json:"user_id"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
}

// OrderReferralCommission представляет запись журнала комиссий по заказу.
// Записи создаются только для уровней >= 2: уровень 1 получает прямую комиссию
// при расчете заказа, а не через каскад. После создания запись неизменна,
// кроме флага is_withdrawn, который проставляет внешняя логика выплат.
type OrderReferralCommission struct {
	ID          int64           `json:"id" db:"id"`
	OrderID     int64           `json:"order_id" db:"order_id"`
	Level       int             `json:"level" db:"level"`
	ReferrerID  int64           `json:"referrer_id" db:"referrer_id"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	IsWithdrawn bool            `json:"is_withdrawn" db:"is_withdrawn"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ReferralStats представляет статистику рефералов пользователя
type ReferralStats struct {
	DirectReferrals  int             `json:"direct_referrals"`
	CommissionCount  int             `json:"commission_count"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
	WithdrawnAmount  decimal.Decimal `json:"withdrawn_amount"`
	AvailableAmount  decimal.Decimal `json:"available_amount"`
}

// SettlementResult представляет итог расчета комиссий по заказу
type SettlementResult struct {
	OrderID          int64                      `json:"order_id"`
	DirectReferrerID *int64                     `json:"direct_referrer_id,omitempty"`
	DirectAmount     decimal.Decimal            `json:"direct_amount"`
	Cascade          []*OrderReferralCommission `json:"cascade"`
	SettledAt        time.Time                  `json:"settled_at"`
}

// TotalPaid возвращает суммарную выплату по заказу, включая прямую комиссию
func (r *SettlementResult) TotalPaid() decimal.Decimal {
	total := r.DirectAmount
	for _, c := range r.Cascade {
		total = total.Add(c.Amount)
	}
	return total
}
