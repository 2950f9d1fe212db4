package referral

import (
	"context"
	"fmt"
	"time"

	"cargoflow/internal/store"
	"cargoflow/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// memStore — In-memory реализация store.Store для тестов без базы данных
type memStore struct {
	users       *memUsers
	commissions *memCommissions
}

func newMemStore(users ...*models.User) *memStore {
	s := &memStore{
		users: &memUsers{
			byID:   make(map[int64]*models.User),
			byCode: make(map[string]*models.User),
		},
		commissions: &memCommissions{},
	}
	for _, u := range users {
		s.users.add(u)
	}
	return s
}

func (s *memStore) User() store.UserRepository             { return s.users }
func (s *memStore) Order() store.OrderRepository           { return nil }
func (s *memStore) Commission() store.CommissionRepository { return s.commissions }
func (s *memStore) WithTx(tx pgx.Tx) store.Store           { return s }
func (s *memStore) DB() *pgxpool.Pool                      { return nil }
func (s *memStore) Close() error                           { return nil }

func (s *memStore) ExecTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

// memUsers реализует store.UserRepository поверх map
type memUsers struct {
	byID        map[int64]*models.User
	byCode      map[string]*models.User
	walletCalls int // Количество инкрементов кошельков
	failNextGet error
}

func (m *memUsers) add(u *models.User) {
	m.byID[u.ID] = u
	if u.ReferralCode != nil {
		m.byCode[*u.ReferralCode] = u
	}
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	user.ID = int64(len(m.byID) + 1)
	m.add(user)
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.failNextGet != nil {
		err := m.failNextGet
		m.failNextGet = nil
		return nil, err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("пользователь: %w", store.ErrNotFound)
	}
	return u, nil
}

func (m *memUsers) GetByReferralCode(ctx context.Context, referralCode string) (*models.User, error) {
	if m.failNextGet != nil {
		err := m.failNextGet
		m.failNextGet = nil
		return nil, err
	}
	u, ok := m.byCode[referralCode]
	if !ok {
		return nil, fmt.Errorf("пользователь: %w", store.ErrNotFound)
	}
	return u, nil
}

func (m *memUsers) Update(ctx context.Context, user *models.User) error {
	if _, ok := m.byID[user.ID]; !ok {
		return fmt.Errorf("пользователь с ID %d: %w", user.ID, store.ErrNotFound)
	}
	m.add(user)
	return nil
}

func (m *memUsers) AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) error {
	u, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("пользователь с ID %d: %w", userID, store.ErrNotFound)
	}
	u.WalletBalance = u.WalletBalance.Add(amount)
	m.walletCalls++
	return nil
}

func (m *memUsers) CountReferredBy(ctx context.Context, referralCode string) (int, error) {
	count := 0
	for _, u := range m.byID {
		if u.ReferredBy != nil && *u.ReferredBy == referralCode {
			count++
		}
	}
	return count, nil
}

func (m *memUsers) GenerateReferralCode(ctx context.Context) (string, error) {
	return fmt.Sprintf("CODE%04d", len(m.byID)+1), nil
}

// memCommissions реализует store.CommissionRepository поверх слайса
type memCommissions struct {
	rows []*models.OrderReferralCommission
}

func (m *memCommissions) Create(ctx context.Context, commission *models.OrderReferralCommission) error {
	commission.ID = int64(len(m.rows) + 1)
	commission.CreatedAt = time.Now()
	m.rows = append(m.rows, commission)
	return nil
}

func (m *memCommissions) ListByOrderID(ctx context.Context, orderID int64) ([]*models.OrderReferralCommission, error) {
	var out []*models.OrderReferralCommission
	for _, c := range m.rows {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCommissions) ListByReferrerID(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error) {
	var out []*models.OrderReferralCommission
	for _, c := range m.rows {
		if c.ReferrerID == referrerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCommissions) ListWithdrawable(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error) {
	var out []*models.OrderReferralCommission
	for _, c := range m.rows {
		if c.ReferrerID == referrerID && !c.IsWithdrawn {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCommissions) MarkWithdrawn(ctx context.Context, ids []int64) error {
	for _, c := range m.rows {
		for _, id := range ids {
			if c.ID == id {
				c.IsWithdrawn = true
			}
		}
	}
	return nil
}

func (m *memCommissions) GetReferrerTotals(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	stats := &models.ReferralStats{
		TotalEarned:     decimal.Zero,
		WithdrawnAmount: decimal.Zero,
	}
	for _, c := range m.rows {
		if c.ReferrerID != referrerID {
			continue
		}
		stats.CommissionCount++
		stats.TotalEarned = stats.TotalEarned.Add(c.Amount)
		if c.IsWithdrawn {
			stats.WithdrawnAmount = stats.WithdrawnAmount.Add(c.Amount)
		}
	}
	stats.AvailableAmount = stats.TotalEarned.Sub(stats.WithdrawnAmount)
	return stats, nil
}

// strPtr и ratePtr — помощники для построения тестовых пользователей
func strPtr(s string) *string { return &s }

func ratePtr(rate string) *decimal.Decimal {
	d := decimal.RequireFromString(rate)
	return &d
}

// testUser строит пользователя с кодом, ссылкой на пригласившего и ставкой
func testUser(id int64, code string, referredBy *string, rate *decimal.Decimal) *models.User {
	return &models.User{
		ID:             id,
		Email:          fmt.Sprintf("user%d@cargoflow.test", id),
		Name:           fmt.Sprintf("Пользователь %d", id),
		Role:           models.RoleCustomer,
		ReferralCode:   strPtr(code),
		ReferredBy:     referredBy,
		CommissionRate: rate,
		WalletBalance:  decimal.Zero,
	}
}
