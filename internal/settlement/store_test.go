package settlement

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

// fakeStore — In-memory реализация store.Store для тестов без базы данных
type fakeStore struct {
	users       *fakeUsers
	orders      *fakeOrders
	commissions *fakeCommissions
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: &fakeUsers{
			byID:   make(map[int64]*models.User),
			byCode: make(map[string]*models.User),
		},
		orders:      &fakeOrders{byID: make(map[int64]*models.Order)},
		commissions: &fakeCommissions{},
	}
}

func (s *fakeStore) User() store.UserRepository             { return s.users }
func (s *fakeStore) Order() store.OrderRepository           { return s.orders }
func (s *fakeStore) Commission() store.CommissionRepository { return s.commissions }
func (s *fakeStore) WithTx(tx pgx.Tx) store.Store           { return s }
func (s *fakeStore) DB() *pgxpool.Pool                      { return nil }
func (s *fakeStore) Close() error                           { return nil }

func (s *fakeStore) ExecTx(ctx context.Context, fn func(store.Store) error) error {
	return fn(s)
}

func (s *fakeStore) addUser(u *models.User) {
	s.users.byID[u.ID] = u
	if u.ReferralCode != nil {
		s.users.byCode[*u.ReferralCode] = u
	}
}

func (s *fakeStore) addOrder(o *models.Order) {
	s.orders.byID[o.ID] = o
}

// fakeUsers реализует store.UserRepository поверх map
type fakeUsers struct {
	byID        map[int64]*models.User
	byCode      map[string]*models.User
	walletCalls int
}

func (m *fakeUsers) Create(ctx context.Context, user *models.User) error {
	m.byID[user.ID] = user
	return nil
}

func (m *fakeUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("пользователь: %w", store.ErrNotFound)
	}
	return u, nil
}

func (m *fakeUsers) GetByReferralCode(ctx context.Context, referralCode string) (*models.User, error) {
	u, ok := m.byCode[referralCode]
	if !ok {
		return nil, fmt.Errorf("пользователь: %w", store.ErrNotFound)
	}
	return u, nil
}

func (m *fakeUsers) Update(ctx context.Context, user *models.User) error {
	m.byID[user.ID] = user
	return nil
}

func (m *fakeUsers) AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) error {
	u, ok := m.byID[userID]
	if !ok {
		return fmt.Errorf("пользователь с ID %d: %w", userID, store.ErrNotFound)
	}
	u.WalletBalance = u.WalletBalance.Add(amount)
	m.walletCalls++
	return nil
}

func (m *fakeUsers) CountReferredBy(ctx context.Context, referralCode string) (int, error) {
	count := 0
	for _, u := range m.byID {
		if u.ReferredBy != nil && *u.ReferredBy == referralCode {
			count++
		}
	}
	return count, nil
}

func (m *fakeUsers) GenerateReferralCode(ctx context.Context) (string, error) {
	return fmt.Sprintf("CODE%04d", len(m.byID)+1), nil
}

// fakeOrders реализует store.OrderRepository. MarkCommissionSettled
// повторяет условное обновление реального хранилища: второй вызов по
// тому же заказу возвращает false.
type fakeOrders struct {
	byID map[int64]*models.Order
}

func (m *fakeOrders) Create(ctx context.Context, order *models.Order) error {
	m.byID[order.ID] = order
	return nil
}

func (m *fakeOrders) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("заказ: %w", store.ErrNotFound)
	}
	return o, nil
}

func (m *fakeOrders) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	o, ok := m.byID[orderID]
	if !ok {
		return fmt.Errorf("заказ: %w", store.ErrNotFound)
	}
	o.Status = status
	return nil
}

func (m *fakeOrders) MarkCommissionSettled(ctx context.Context, orderID int64) (bool, error) {
	o, ok := m.byID[orderID]
	if !ok {
		return false, fmt.Errorf("заказ: %w", store.ErrNotFound)
	}
	if o.CommissionSettled {
		return false, nil
	}
	o.CommissionSettled = true
	now := time.Now()
	o.SettledAt = &now
	return true, nil
}

func (m *fakeOrders) ListUnsettled(ctx context.Context, limit int) ([]*models.Order, error) {
	var out []*models.Order
	for _, o := range m.byID {
		if o.Status == models.OrderStatusPaid && !o.CommissionSettled {
			out = append(out, o)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// fakeCommissions реализует store.CommissionRepository поверх слайса
type fakeCommissions struct {
	rows []*models.OrderReferralCommission
}

func (m *fakeCommissions) Create(ctx context.Context, commission *models.OrderReferralCommission) error {
	commission.ID = int64(len(m.rows) + 1)
	commission.CreatedAt = time.Now()
	m.rows = append(m.rows, commission)
	return nil
}

func (m *fakeCommissions) ListByOrderID(ctx context.Context, orderID int64) ([]*models.OrderReferralCommission, error) {
	var out []*models.OrderReferralCommission
	for _, c := range m.rows {
		if c.OrderID == orderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *fakeCommissions) ListByReferrerID(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error) {
	var out []*models.OrderReferralCommission
	for _, c := range m.rows {
		if c.ReferrerID == referrerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *fakeCommissions) ListWithdrawable(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error) {
	var out []*models.OrderReferralCommission
	for _, c := range m.rows {
		if c.ReferrerID == referrerID && !c.IsWithdrawn {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *fakeCommissions) MarkWithdrawn(ctx context.Context, ids []int64) error {
	for _, c := range m.rows {
		for _, id := range ids {
			if c.ID == id {
				c.IsWithdrawn = true
			}
		}
	}
	return nil
}

func (m *fakeCommissions) GetReferrerTotals(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
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

// fakeMetrics запоминает записанные метрики для проверок
type fakeMetrics struct {
	settlements map[string]int
	commissions map[int]decimal.Decimal
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		settlements: make(map[string]int),
		commissions: make(map[int]decimal.Decimal),
	}
}

func (m *fakeMetrics) RecordSettlement(status string, cascadeLevels int) {
	m.settlements[status]++
}

func (m *fakeMetrics) RecordCommission(level int, amount decimal.Decimal) {
	m.commissions[level] = m.commissions[level].Add(amount)
}
