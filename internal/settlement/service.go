package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargoflow/internal/notify"
	"cargoflow/internal/referral"
	"cargoflow/internal/store"
	"cargoflow/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrAlreadySettled возвращается при повторной попытке рассчитать заказ
var ErrAlreadySettled = errors.New("комиссии по заказу уже рассчитаны")

var hundred = decimal.NewFromInt(100)

// Metrics записывает метрики расчетов комиссий
type Metrics interface {
	RecordSettlement(status string, cascadeLevels int)
	RecordCommission(level int, amount decimal.Decimal)
}

// Service выполняет расчет реферальных комиссий по заказу.
// Весь расчет — пометка заказа, прямая комиссия и каскад — проходит
// в одной транзакции: заказ не может оказаться рассчитанным с
// частично начисленными комиссиями.
type Service struct {
	store     store.Store
	engine    *referral.Engine
	notifier  notify.Notifier
	metrics   Metrics
	maxLevels int
	logger    *zap.Logger
}

// NewService создает новый сервис расчета комиссий
func NewService(st store.Store, engine *referral.Engine, notifier notify.Notifier, metrics Metrics, maxLevels int, logger *zap.Logger) *Service {
	return &Service{
		store:     st,
		engine:    engine,
		notifier:  notifier,
		metrics:   metrics,
		maxLevels: maxLevels,
		logger:    logger,
	}
}

// SettleOrder рассчитывает комиссии по оплаченному заказу.
// Однократность обеспечивает условная пометка commission_settled:
// второй вызов по тому же заказу получает ErrAlreadySettled и не
// выполняет никаких начислений. Прямая комиссия (уровень 1) равна
// прибыли заказа, умноженной на ставку прямого реферера; она же
// становится базой каскада для уровней 2 и выше.
func (s *Service) SettleOrder(ctx context.Context, orderID int64) (*models.SettlementResult, error) {
	var result *models.SettlementResult

	err := s.store.ExecTx(ctx, func(uow store.Store) error {
		order, err := uow.Order().GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		if order.Status != models.OrderStatusPaid {
			return fmt.Errorf("заказ %d не оплачен, расчет комиссий невозможен", orderID)
		}

		settled, err := uow.Order().MarkCommissionSettled(ctx, orderID)
		if err != nil {
			return err
		}
		if !settled {
			return ErrAlreadySettled
		}

		res := &models.SettlementResult{
			OrderID:      orderID,
			DirectAmount: decimal.Zero,
			SettledAt:    time.Now(),
		}

		owner, err := uow.User().GetByID(ctx, order.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Владелец заказа отсутствует — начислять некому
				result = res
				return nil
			}
			return err
		}

		if owner.ReferredBy == nil || *owner.ReferredBy == "" {
			// Пользователь пришел без приглашения, комиссий нет
			result = res
			return nil
		}

		referrer, err := uow.User().GetByReferralCode(ctx, *owner.ReferredBy)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Висячий реферальный код не блокирует расчет заказа
				result = res
				return nil
			}
			return err
		}

		direct := order.Profit.Mul(referrer.Rate()).Div(hundred).Round(2)
		if direct.Sign() > 0 {
			if err := uow.User().AddToWallet(ctx, referrer.ID, direct); err != nil {
				return err
			}
			res.DirectReferrerID = &referrer.ID
			res.DirectAmount = direct

			cascade, err := s.engine.CascadeCommissions(ctx, uow, orderID, order.UserID, direct, s.maxLevels)
			if err != nil {
				return err
			}
			res.Cascade = cascade
		}

		result = res
		return nil
	})

	if err != nil {
		if !errors.Is(err, ErrAlreadySettled) {
			s.metrics.RecordSettlement("failed", 0)
			s.notifier.NotifyFailure(ctx, orderID, err)
			s.logger.Error("расчет комиссий по заказу не выполнен",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
		return nil, err
	}

	s.metrics.RecordSettlement("success", len(result.Cascade))
	if result.DirectReferrerID != nil {
		s.metrics.RecordCommission(1, result.DirectAmount)
	}
	for _, c := range result.Cascade {
		s.metrics.RecordCommission(c.Level, c.Amount)
	}

	s.notifier.NotifySettlement(ctx, result)

	s.logger.Info("комиссии по заказу рассчитаны",
		zap.Int64("order_id", orderID),
		zap.String("direct_amount", result.DirectAmount.String()),
		zap.Int("cascade_levels", len(result.Cascade)),
		zap.String("total_paid", result.TotalPaid().String()))

	return result, nil
}

// SettlePending рассчитывает комиссии по всем оплаченным, но еще не
// рассчитанным заказам. Используется фоновой задачей как путь
// восстановления после сбоев.
func (s *Service) SettlePending(ctx context.Context, limit int) (int, error) {
	orders, err := s.store.Order().ListUnsettled(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения нерассчитанных заказов: %w", err)
	}

	settled := 0
	for _, order := range orders {
		if _, err := s.SettleOrder(ctx, order.ID); err != nil {
			// Гонка с параллельным расчетом — не ошибка
			if errors.Is(err, ErrAlreadySettled) {
				continue
			}
			s.logger.Error("ошибка расчета заказа в фоновом режиме",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
			continue
		}
		settled++
	}

	return settled, nil
}
