package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет пользователя логистической платформы
type User struct {
	ID             int64            `json:"id" db:"id"`
	Email          string           `json:"email" db:"email"`
	Name           string           `json:"name" db:"name"`
	Phone          string           `json:"phone" db:"phone"`
	Role           string           `json:"role" db:"role"` // admin, franchise, customer
	ReferralCode   *string          `json:"referral_code" db:"referral_code"`   // Уникальный реферальный код
	ReferredBy     *string          `json:"referred_by" db:"referred_by"`       // Реферальный код пригласившего
	CommissionRate *decimal.Decimal `json:"commission_rate" db:"commission_rate"` // Процент комиссии (0-100), NULL трактуется как 0
	WalletBalance  decimal.Decimal  `json:"wallet_balance" db:"wallet_balance"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Rate возвращает процент комиссии пользователя, NULL трактуется как 0
func (u *User) Rate() decimal.Decimal {
	if u.CommissionRate == nil {
		return decimal.Zero
	}
	return *u.CommissionRate
}

// Order представляет заказ на доставку
type Order struct {
	ID                int64           `json:"id" db:"id"`
	OrderNumber       string          `json:"order_number" db:"order_number"`
	UserID            int64           `json:"user_id" db:"user_id"` // Пользователь, оформивший заказ
	Status            string          `json:"status" db:"status"`   // pending, paid, delivered, cancelled
	Amount            decimal.Decimal `json:"amount" db:"amount"`   // Сумма заказа
	Profit            decimal.Decimal `json:"profit" db:"profit"`   // Прибыль платформы по заказу
	CommissionSettled bool            `json:"commission_settled" db:"commission_settled"`
	SettledAt         *time.Time      `json:"settled_at" db:"settled_at"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// CreateUserRequest представляет запрос на создание пользователя
type CreateUserRequest struct {
	Email        string  `json:"email" validate:"required,email"`
	Name         string  `json:"name" validate:"required"`
	Phone        string  `json:"phone"`
	ReferralCode *string `json:"referral_code,omitempty"` // Код пригласившего, если есть
}

// Constants для ролей пользователей
const (
	RoleAdmin     = "admin"
	RoleFranchise = "franchise"
	RoleCustomer  = "customer"
)

// Constants для статусов заказа
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// IsValidRole проверяет корректность роли пользователя
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleFranchise, RoleCustomer:
		return true
	default:
		return false
	}
}

// IsValidOrderStatus проверяет корректность статуса заказа
func IsValidOrderStatus(status string) bool {
	switch status {
	case OrderStatusPending, OrderStatusPaid, OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}
