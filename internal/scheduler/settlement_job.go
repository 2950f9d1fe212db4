package scheduler

import (
	"context"

	"cargoflow/internal/settlement"

	"go.uber.org/zap"
)

// Лимит заказов за один проход фоновой задачи
const settlementBatchLimit = 100

// SettlementJob добирает оплаченные заказы, по которым комиссии еще не
// рассчитаны. Основной путь — расчет сразу при оплате; задача нужна
// как страховка после сбоев и перезапусков.
type SettlementJob struct {
	settlementService *settlement.Service
	logger            *zap.Logger
}

// NewSettlementJob создает задачу фонового расчета комиссий
func NewSettlementJob(settlementService *settlement.Service, logger *zap.Logger) *SettlementJob {
	return &SettlementJob{
		settlementService: settlementService,
		logger:            logger,
	}
}

// Name возвращает имя задачи
func (j *SettlementJob) Name() string {
	return "pending_settlements"
}

// Run выполняет один проход по нерассчитанным заказам
func (j *SettlementJob) Run(ctx context.Context) error {
	settled, err := j.settlementService.SettlePending(ctx, settlementBatchLimit)
	if err != nil {
		return err
	}

	if settled > 0 {
		j.logger.Info("фоновый расчет комиссий выполнен",
			zap.Int("settled_orders", settled))
	}

	return nil
}
