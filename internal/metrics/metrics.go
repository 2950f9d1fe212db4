package metrics

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger *zap.Logger

	// Счетчики
	settlements      *prometheus.CounterVec
	commissions      *prometheus.CounterVec
	commissionAmount *prometheus.CounterVec
	walletCredits    prometheus.Counter

	// Гистограммы
	cascadeDepth prometheus.Histogram

	// Gauge метрики
	lastSettledOrder prometheus.Gauge

	// Мьютекс для thread-safety
	mu sync.RWMutex
}

// New создает новый экземпляр метрик
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger: logger,

		// Счетчики расчетов по заказам
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_settlements_total",
				Help: "Общее количество расчетов комиссий по заказам",
			},
			[]string{"status"}, // success, failed
		),

		// Счетчики начисленных комиссий по уровням
		commissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_commissions_total",
				Help: "Общее количество начисленных реферальных комиссий",
			},
			[]string{"level"},
		),

		// Суммы начисленных комиссий по уровням
		commissionAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "referral_commission_amount_total",
				Help: "Суммарный объем начисленных реферальных комиссий",
			},
			[]string{"level"},
		),

		// Счетчик пополнений кошельков
		walletCredits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wallet_credits_total",
				Help: "Общее количество пополнений кошельков",
			},
		),

		// Гистограмма глубины каскада
		cascadeDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cascade_depth",
				Help:    "Количество уровней, оплаченных каскадом за один расчет",
				Buckets: []float64{0, 1, 2, 3, 4, 5, 7, 10},
			},
		),

		// Gauge последнего рассчитанного заказа
		lastSettledOrder: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "last_settled_order",
				Help: "ID последнего рассчитанного заказа",
			},
		),
	}

	// Регистрируем все метрики
	prometheus.MustRegister(
		m.settlements,
		m.commissions,
		m.commissionAmount,
		m.walletCredits,
		m.cascadeDepth,
		m.lastSettledOrder,
	)

	return m
}

// RecordSettlement записывает итог расчета комиссий по заказу
func (m *Metrics) RecordSettlement(status string, cascadeLevels int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.settlements.WithLabelValues(status).Inc()
	if status == "success" {
		m.cascadeDepth.Observe(float64(cascadeLevels))
	}

	m.logger.Debug("метрика расчета записана",
		zap.String("status", status),
		zap.Int("cascade_levels", cascadeLevels))
}

// RecordCommission записывает начисленную комиссию
func (m *Metrics) RecordCommission(level int, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	levelLabel := strconv.Itoa(level)
	m.commissions.WithLabelValues(levelLabel).Inc()

	value, _ := amount.Float64()
	m.commissionAmount.WithLabelValues(levelLabel).Add(value)
	m.walletCredits.Inc()

	m.logger.Debug("метрика комиссии записана",
		zap.Int("level", level),
		zap.String("amount", amount.String()))
}

// SetLastSettledOrder запоминает последний рассчитанный заказ
func (m *Metrics) SetLastSettledOrder(orderID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSettledOrder.Set(float64(orderID))
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
