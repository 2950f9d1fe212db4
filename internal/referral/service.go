package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cargoflow/internal/store"
	"cargoflow/pkg/models"

	"go.uber.org/zap"
)

// Service представляет сервис для управления реферальной программой
type Service struct {
	store  store.Store
	logger *zap.Logger
}

// NewService создает новый сервис рефералов
func NewService(store store.Store, logger *zap.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// GetOrGenerateReferralCode получает существующий или генерирует новый реферальный код
func (s *Service) GetOrGenerateReferralCode(ctx context.Context, userID int64) (string, error) {
	user, err := s.store.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	// Если код уже есть, возвращаем его
	if user.ReferralCode != nil && *user.ReferralCode != "" {
		return *user.ReferralCode, nil
	}

	// Генерируем уникальный код с проверкой
	maxAttempts := 10
	var code string

	for attempt := 0; attempt < maxAttempts; attempt++ {
		generatedCode, err := s.store.User().GenerateReferralCode(ctx)
		if err != nil {
			return "", fmt.Errorf("ошибка генерации реферального кода: %w", err)
		}

		// Проверяем, что код уникален
		_, err = s.store.User().GetByReferralCode(ctx, generatedCode)
		if errors.Is(err, store.ErrNotFound) {
			code = generatedCode
			break
		}
		if err != nil {
			return "", fmt.Errorf("ошибка проверки реферального кода: %w", err)
		}

		// Код уже существует, пробуем снова
		s.logger.Warn("сгенерированный код уже существует, пробуем снова",
			zap.String("code", generatedCode),
			zap.Int("attempt", attempt+1))
	}

	if code == "" {
		return "", fmt.Errorf("не удалось сгенерировать уникальный реферальный код после %d попыток", maxAttempts)
	}

	// Обновляем пользователя с новым кодом
	user.ReferralCode = &code
	if err := s.store.User().Update(ctx, user); err != nil {
		return "", fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	return code, nil
}

// ValidateReferralCode проверяет валидность реферального кода и возвращает его владельца
func (s *Service) ValidateReferralCode(ctx context.Context, referralCode string) (*models.User, error) {
	code := strings.TrimSpace(referralCode)
	if code == "" {
		return nil, fmt.Errorf("реферальный код пуст")
	}

	user, err := s.store.User().GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("неверный реферальный код")
		}
		return nil, fmt.Errorf("ошибка проверки реферального кода: %w", err)
	}

	return user, nil
}

// LinkReferral привязывает пользователя к пригласившему по реферальному коду.
// Привязка задается один раз и не меняется: повторная привязка и
// самоприглашение отклоняются.
func (s *Service) LinkReferral(ctx context.Context, userID int64, referralCode string) error {
	referrer, err := s.ValidateReferralCode(ctx, referralCode)
	if err != nil {
		return err
	}

	user, err := s.store.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	if user.ID == referrer.ID {
		return fmt.Errorf("пользователь не может пригласить сам себя")
	}

	if user.ReferredBy != nil && *user.ReferredBy != "" {
		return fmt.Errorf("пользователь уже был приглашен")
	}

	code := *referrer.ReferralCode
	user.ReferredBy = &code
	if err := s.store.User().Update(ctx, user); err != nil {
		return fmt.Errorf("ошибка привязки реферала: %w", err)
	}

	s.logger.Info("реферальная связь создана",
		zap.Int64("user_id", user.ID),
		zap.Int64("referrer_id", referrer.ID),
		zap.String("referral_code", code))

	return nil
}

// GetReferralStats получает статистику реферальной программы пользователя
func (s *Service) GetReferralStats(ctx context.Context, userID int64) (*models.ReferralStats, error) {
	user, err := s.store.User().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	stats, err := s.store.Commission().GetReferrerTotals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики комиссий: %w", err)
	}

	if user.ReferralCode != nil && *user.ReferralCode != "" {
		count, err := s.store.User().CountReferredBy(ctx, *user.ReferralCode)
		if err != nil {
			return nil, fmt.Errorf("ошибка подсчета рефералов: %w", err)
		}
		stats.DirectReferrals = count
	}

	return stats, nil
}
