package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"cargoflow/internal/config"
	"cargoflow/internal/metrics"
	"cargoflow/internal/notify"
	"cargoflow/internal/referral"
	"cargoflow/internal/settlement"
	"cargoflow/internal/store"

	"go.uber.org/zap"
)

func main() {
	var (
		orderID = flag.Int64("order", 0, "ID заказа для расчета комиссий (0 = все нерассчитанные)")
		limit   = flag.Int("limit", 100, "Максимальное количество заказов за один запуск")
		dryRun  = flag.Bool("dry-run", false, "Показать нерассчитанные заказы без начислений")
		genCode = flag.Int64("gen-code", 0, "Сгенерировать реферальный код для пользователя с указанным ID")
	)
	flag.Parse()

	// Инициализация логгера
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Ошибка инициализации логгера:", err)
	}
	defer logger.Sync()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Ошибка загрузки конфигурации", zap.Error(err))
	}

	// Подключение к базе данных
	st, err := store.NewStore(cfg, logger)
	if err != nil {
		logger.Fatal("Ошибка подключения к базе данных", zap.Error(err))
	}
	defer st.Close()

	ctx := context.Background()

	if *genCode > 0 {
		referralService := referral.NewService(st, logger)
		code, err := referralService.GetOrGenerateReferralCode(ctx, *genCode)
		if err != nil {
			logger.Fatal("Ошибка генерации реферального кода", zap.Error(err))
		}
		fmt.Printf("Реферальный код пользователя %d: %s\n", *genCode, code)
		return
	}

	if *dryRun {
		if err := listUnsettled(ctx, st, *limit); err != nil {
			logger.Fatal("Ошибка получения нерассчитанных заказов", zap.Error(err))
		}
		return
	}

	resolver := referral.NewResolver(logger)
	engine := referral.NewEngine(resolver, logger)
	settlementService := settlement.NewService(st, engine, notify.NewNopNotifier(), metrics.New(logger), cfg.Commission.MaxLevels, logger)

	if *orderID > 0 {
		result, err := settlementService.SettleOrder(ctx, *orderID)
		if err != nil {
			logger.Fatal("Ошибка расчета комиссий по заказу", zap.Error(err))
		}
		fmt.Printf("Заказ %d рассчитан: прямая комиссия %s, уровней каскада %d, всего %s\n",
			result.OrderID, result.DirectAmount.StringFixed(2), len(result.Cascade), result.TotalPaid().StringFixed(2))
		return
	}

	settled, err := settlementService.SettlePending(ctx, *limit)
	if err != nil {
		logger.Fatal("Ошибка фонового расчета комиссий", zap.Error(err))
	}

	logger.Info("Расчет комиссий завершен успешно", zap.Int("settled_orders", settled))
}

// listUnsettled печатает заказы, ожидающие расчета комиссий
func listUnsettled(ctx context.Context, st store.Store, limit int) error {
	orders, err := st.Order().ListUnsettled(ctx, limit)
	if err != nil {
		return err
	}

	if len(orders) == 0 {
		fmt.Println("Нерассчитанных заказов нет")
		return nil
	}

	fmt.Printf("Нерассчитанных заказов: %d\n", len(orders))
	for _, order := range orders {
		fmt.Printf("  заказ %d (%s): пользователь %d, прибыль %s\n",
			order.ID, order.OrderNumber, order.UserID, order.Profit.StringFixed(2))
	}

	return nil
}
