package notify

import (
	"context"
	"fmt"

	"cargoflow/pkg/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Notifier отправляет операционные уведомления о расчетах комиссий
type Notifier interface {
	NotifySettlement(ctx context.Context, result *models.SettlementResult)
	NotifyFailure(ctx context.Context, orderID int64, err error)
}

// TelegramNotifier отправляет уведомления в админский чат Telegram
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegramNotifier создает нотификатор с подключением к Telegram
func NewTelegramNotifier(botToken string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram бота: %w", err)
	}

	logger.Info("Telegram нотификатор инициализирован",
		zap.String("bot_username", bot.Self.UserName),
		zap.Int64("chat_id", chatID))

	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		logger: logger,
	}, nil
}

// NotifySettlement отправляет уведомление об успешном расчете комиссий.
// Ошибки отправки только логируются: уведомления не влияют на расчет.
func (n *TelegramNotifier) NotifySettlement(ctx context.Context, result *models.SettlementResult) {
	text := fmt.Sprintf("✅ Комиссии по заказу #%d рассчитаны\nПрямая комиссия: %s\nУровней каскада: %d\nВсего выплачено: %s",
		result.OrderID,
		result.DirectAmount.StringFixed(2),
		len(result.Cascade),
		result.TotalPaid().StringFixed(2))

	n.send(text)
}

// NotifyFailure отправляет уведомление о сбое расчета
func (n *TelegramNotifier) NotifyFailure(ctx context.Context, orderID int64, err error) {
	text := fmt.Sprintf("❌ Ошибка расчета комиссий по заказу #%d\n%v", orderID, err)
	n.send(text)
}

func (n *TelegramNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.Error("ошибка отправки уведомления в Telegram", zap.Error(err))
	}
}

// NopNotifier используется при выключенных уведомлениях
type NopNotifier struct{}

// NewNopNotifier создает нотификатор-заглушку
func NewNopNotifier() *NopNotifier {
	return &NopNotifier{}
}

func (n *NopNotifier) NotifySettlement(ctx context.Context, result *models.SettlementResult) {}

func (n *NopNotifier) NotifyFailure(ctx context.Context, orderID int64, err error) {}
