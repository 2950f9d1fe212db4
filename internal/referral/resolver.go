package referral

import (
	"context"
	"errors"

	"cargoflow/internal/store"
	"cargoflow/pkg/models"

	"go.uber.org/zap"
)

// Resolver строит реферальную цепочку пользователя: прямой реферер,
// реферер реферера и так далее вверх, не глубже maxLevels.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver создает новый резолвер реферальных цепочек
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger: logger,
	}
}

// ResolveChain возвращает упорядоченную цепочку предков пользователя,
// от ближайшего к дальнему. Связь идет по полю referred_by, которое
// хранит реферальный код пригласившего. Любой промах при поиске —
// отсутствующий пользователь, пустой referred_by, код без владельца —
// штатно обрывает цепочку: неполные реферальные данные не должны
// блокировать расчет заказа. Ошибки хранилища пробрасываются наверх.
// Цепочка строится только чтением, сам стартовый пользователь в нее
// никогда не входит.
func (r *Resolver) ResolveChain(ctx context.Context, users store.UserRepository, startUserID int64, maxLevels int) ([]models.ChainEntry, error) {
	if maxLevels <= 0 {
		return []models.ChainEntry{}, nil
	}

	current, err := users.GetByID(ctx, startUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return []models.ChainEntry{}, nil
		}
		return nil, err
	}

	chain := make([]models.ChainEntry, 0, maxLevels)

	for len(chain) < maxLevels {
		if current.ReferredBy == nil || *current.ReferredBy == "" {
			break
		}

		referrer, err := users.GetByReferralCode(ctx, *current.ReferredBy)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Висячая ссылка на несуществующий код — обрываем цепочку
				r.logger.Debug("реферальный код не найден, цепочка оборвана",
					zap.Int64("user_id", current.ID),
					zap.String("referred_by", *current.ReferredBy))
				break
			}
			return nil, err
		}

		chain = append(chain, models.ChainEntry{
			Level:          len(chain) + 1,
			UserID:         referrer.ID,
			CommissionRate: referrer.Rate(),
		})

		current = referrer
	}

	r.logger.Debug("реферальная цепочка построена",
		zap.Int64("start_user_id", startUserID),
		zap.Int("levels", len(chain)))

	return chain, nil
}
