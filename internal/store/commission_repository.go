package store

import (
	"context"
	"fmt"
	"time"

	"cargoflow/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CommissionRepository определяет интерфейс журнала реферальных комиссий.
// Журнал append-only: записи не обновляются и не удаляются, меняется
// только флаг is_withdrawn при выплате.
type CommissionRepository interface {
	Create(ctx context.Context, commission *models.OrderReferralCommission) error
	ListByOrderID(ctx context.Context, orderID int64) ([]*models.OrderReferralCommission, error)
	ListByReferrerID(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error)
	ListWithdrawable(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error)
	MarkWithdrawn(ctx context.Context, ids []int64) error
	GetReferrerTotals(ctx context.Context, referrerID int64) (*models.ReferralStats, error)
}

// commissionRepository реализует CommissionRepository
type commissionRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewCommissionRepository создает новый репозиторий журнала комиссий
func NewCommissionRepository(db Querier, logger *zap.Logger) CommissionRepository {
	return &commissionRepository{
		db:     db,
		logger: logger,
	}
}

// Create добавляет запись в журнал комиссий
func (r *commissionRepository) Create(ctx context.Context, commission *models.OrderReferralCommission) error {
	query := `
		INSERT INTO order_referral_commissions (order_id, level, referrer_id, amount, is_withdrawn, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	commission.CreatedAt = time.Now()

	err := r.db.QueryRow(ctx, query,
		commission.OrderID, commission.Level, commission.ReferrerID,
		commission.Amount, commission.IsWithdrawn, commission.CreatedAt,
	).Scan(&commission.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания записи журнала комиссий: %w", err)
	}

	r.logger.Info("комиссия записана в журнал",
		zap.Int64("commission_id", commission.ID),
		zap.Int64("order_id", commission.OrderID),
		zap.Int("level", commission.Level),
		zap.Int64("referrer_id", commission.ReferrerID),
		zap.String("amount", commission.Amount.String()))

	return nil
}

// ListByOrderID получает все комиссии по заказу в порядке уровней
func (r *commissionRepository) ListByOrderID(ctx context.Context, orderID int64) ([]*models.OrderReferralCommission, error) {
	query := `
		SELECT id, order_id, level, referrer_id, amount, is_withdrawn, created_at
		FROM order_referral_commissions
		WHERE order_id = $1
		ORDER BY level ASC`

	return r.list(ctx, query, orderID)
}

// ListByReferrerID получает все комиссии, начисленные пользователю
func (r *commissionRepository) ListByReferrerID(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error) {
	query := `
		SELECT id, order_id, level, referrer_id, amount, is_withdrawn, created_at
		FROM order_referral_commissions
		WHERE referrer_id = $1
		ORDER BY created_at DESC`

	return r.list(ctx, query, referrerID)
}

// ListWithdrawable получает невыплаченные комиссии пользователя
func (r *commissionRepository) ListWithdrawable(ctx context.Context, referrerID int64) ([]*models.OrderReferralCommission, error) {
	query := `
		SELECT id, order_id, level, referrer_id, amount, is_withdrawn, created_at
		FROM order_referral_commissions
		WHERE referrer_id = $1 AND is_withdrawn = FALSE
		ORDER BY created_at ASC`

	return r.list(ctx, query, referrerID)
}

// list выполняет выборку записей журнала по одному аргументу
func (r *commissionRepository) list(ctx context.Context, query string, arg any) ([]*models.OrderReferralCommission, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения комиссий: %w", err)
	}
	defer rows.Close()

	var commissions []*models.OrderReferralCommission
	for rows.Next() {
		c := &models.OrderReferralCommission{}
		err := rows.Scan(
			&c.ID, &c.OrderID, &c.Level, &c.ReferrerID,
			&c.Amount, &c.IsWithdrawn, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования комиссии: %w", err)
		}
		commissions = append(commissions, c)
	}

	return commissions, nil
}

// MarkWithdrawn помечает комиссии выплаченными. Сами выплаты проводит
// внешняя логика, здесь меняется только флаг.
func (r *commissionRepository) MarkWithdrawn(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE order_referral_commissions SET is_withdrawn = TRUE WHERE id = ANY($1)`

	result, err := r.db.Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("ошибка пометки комиссий выплаченными: %w", err)
	}

	r.logger.Info("комиссии помечены выплаченными",
		zap.Int("requested", len(ids)),
		zap.Int64("updated", result.RowsAffected()))
	return nil
}

// GetReferrerTotals получает сводную статистику начислений пользователя
func (r *commissionRepository) GetReferrerTotals(ctx context.Context, referrerID int64) (*models.ReferralStats, error) {
	query := `
		SELECT
			COUNT(*) as commission_count,
			COALESCE(SUM(amount), 0) as total_earned,
			COALESCE(SUM(CASE WHEN is_withdrawn THEN amount ELSE 0 END), 0) as withdrawn_amount
		FROM order_referral_commissions
		WHERE referrer_id = $1`

	stats := &models.ReferralStats{}
	var totalEarned, withdrawn decimal.Decimal
	err := r.db.QueryRow(ctx, query, referrerID).Scan(
		&stats.CommissionCount, &totalEarned, &withdrawn,
	)

	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики комиссий: %w", err)
	}

	stats.TotalEarned = totalEarned
	stats.WithdrawnAmount = withdrawn
	stats.AvailableAmount = totalEarned.Sub(withdrawn)

	return stats, nil
}
