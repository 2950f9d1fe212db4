package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargoflow/pkg/models"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// OrderRepository определяет интерфейс для работы с заказами
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, status string) error
	MarkCommissionSettled(ctx context.Context, orderID int64) (bool, error)
	ListUnsettled(ctx context.Context, limit int) ([]*models.Order, error)
}

// orderRepository реализует OrderRepository
type orderRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewOrderRepository создает новый репозиторий заказов
func NewOrderRepository(db Querier, logger *zap.Logger) OrderRepository {
	return &orderRepository{
		db:     db,
		logger: logger,
	}
}

// Create создает новый заказ
func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (order_number, user_id, status, amount, profit, commission_settled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}

	err := r.db.QueryRow(ctx, query,
		order.OrderNumber, order.UserID, order.Status,
		order.Amount, order.Profit, order.CommissionSettled,
		order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания заказа: %w", err)
	}

	r.logger.Info("заказ создан",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID))

	return nil
}

// GetByID получает заказ по ID
func (r *orderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `
		SELECT id, order_number, user_id, status, amount, profit, commission_settled, settled_at, created_at, updated_at
		FROM orders WHERE id = $1`

	order := &models.Order{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &order.Status,
		&order.Amount, &order.Profit, &order.CommissionSettled, &order.SettledAt,
		&order.CreatedAt, &order.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("заказ: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения заказа: %w", err)
	}

	return order, nil
}

// UpdateStatus обновляет статус заказа
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID int64, status string) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, orderID, status, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("заказ с ID %d: %w", orderID, ErrNotFound)
	}

	r.logger.Info("статус заказа обновлен",
		zap.Int64("order_id", orderID),
		zap.String("status", status))
	return nil
}

// MarkCommissionSettled помечает заказ рассчитанным. Возвращает true только
// для первого вызова: условие commission_settled = FALSE гарантирует,
// что комиссии по заказу начисляются не более одного раза.
func (r *orderRepository) MarkCommissionSettled(ctx context.Context, orderID int64) (bool, error) {
	query := `
		UPDATE orders
		SET commission_settled = TRUE, settled_at = $2, updated_at = $2
		WHERE id = $1 AND commission_settled = FALSE`

	result, err := r.db.Exec(ctx, query, orderID, time.Now())
	if err != nil {
		return false, fmt.Errorf("ошибка пометки заказа рассчитанным: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListUnsettled возвращает оплаченные заказы, по которым комиссии еще не рассчитаны
func (r *orderRepository) ListUnsettled(ctx context.Context, limit int) ([]*models.Order, error) {
	query := `
		SELECT id, order_number, user_id, status, amount, profit, commission_settled, settled_at, created_at, updated_at
		FROM orders
		WHERE status = $1 AND commission_settled = FALSE
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, models.OrderStatusPaid, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения нерассчитанных заказов: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		err := rows.Scan(
			&order.ID, &order.OrderNumber, &order.UserID, &order.Status,
			&order.Amount, &order.Profit, &order.CommissionSettled, &order.SettledAt,
			&order.CreatedAt, &order.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования заказа: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}
