package referral

import (
	"context"

	"cargoflow/internal/store"
	"cargoflow/pkg/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Engine выполняет каскадное начисление реферальных комиссий:
// прибыль уровня 1 последовательно уменьшается процентом каждого звена
// и выплачивается вверх по цепочке.
type Engine struct {
	resolver *Resolver
	logger   *zap.Logger
}

// NewEngine создает новый движок каскадных комиссий
func NewEngine(resolver *Resolver, logger *zap.Logger) *Engine {
	return &Engine{
		resolver: resolver,
		logger:   logger,
	}
}

// CascadeCommissions начисляет комиссии уровням 2 и выше по цепочке
// стартового пользователя. baseAmount — комиссия, уже заработанная
// прямым реферером (уровень 1, выплачивается вызывающей стороной).
// Каждый следующий уровень получает процент от выплаты предыдущего,
// а не от исходной базы: amount(i+1) = amount(i) * rate(i) / 100.
// Нулевой процент или обнулившаяся после округления сумма штатно
// обрывают каскад, более глубокие уровни ничего не получают.
//
// Все инкременты кошельков и вставки в журнал идут через переданный
// uow — Store, привязанный к открытой транзакции вызывающей стороны.
// Любая ошибка возвращается без частичной фиксации: откат транзакции
// снимает уже выполненные в этом вызове начисления.
//
// Операция НЕ идемпотентна: повторный вызов по тому же заказу начислит
// комиссии еще раз. Однократность обеспечивает вызывающая сторона,
// помечая заказ рассчитанным в той же транзакции.
func (e *Engine) CascadeCommissions(ctx context.Context, uow store.Store, orderID, startUserID int64, baseAmount decimal.Decimal, maxLevels int) ([]*models.OrderReferralCommission, error) {
	if baseAmount.Sign() <= 0 || maxLevels <= 0 {
		return nil, nil
	}

	chain, err := e.resolver.ResolveChain(ctx, uow.User(), startUserID, maxLevels)
	if err != nil {
		return nil, err
	}

	// Каскаду нужен хотя бы один уровень выше прямого реферера
	if len(chain) <= 1 {
		return nil, nil
	}

	created := make([]*models.OrderReferralCommission, 0, len(chain)-1)
	currentBase := baseAmount

	for i := 1; i < len(chain); i++ {
		giver := chain[i-1]
		receiver := chain[i]

		// Нулевая ставка звена обрывает весь каскад, даже если глубже
		// есть пользователи с положительной ставкой
		rate := giver.CommissionRate
		if rate.Sign() <= 0 {
			e.logger.Debug("каскад оборван нулевой ставкой",
				zap.Int64("order_id", orderID),
				zap.Int("level", giver.Level))
			break
		}

		amount := currentBase.Mul(rate).Div(hundred).Round(2)
		if amount.Sign() <= 0 {
			// Сумма обнулилась после округления
			break
		}

		if err := uow.User().AddToWallet(ctx, receiver.UserID, amount); err != nil {
			return nil, err
		}

		commission := &models.OrderReferralCommission{
			OrderID:     orderID,
			Level:       receiver.Level,
			ReferrerID:  receiver.UserID,
			Amount:      amount,
			IsWithdrawn: false,
		}

		if err := uow.Commission().Create(ctx, commission); err != nil {
			return nil, err
		}

		created = append(created, commission)
		currentBase = amount
	}

	e.logger.Info("каскад комиссий рассчитан",
		zap.Int64("order_id", orderID),
		zap.Int64("start_user_id", startUserID),
		zap.Int("chain_levels", len(chain)),
		zap.Int("credited_levels", len(created)))

	return created, nil
}
