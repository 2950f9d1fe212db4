package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cargoflow/internal/config"
	"cargoflow/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNotFound возвращается репозиториями, когда запись отсутствует.
// Резолвер цепочки трактует ее как штатное завершение, а не как сбой.
var ErrNotFound = errors.New("запись не найдена")

// Querier объединяет пул подключений и открытую транзакцию:
// и *pgxpool.Pool, и pgx.Tx удовлетворяют этому интерфейсу, поэтому
// репозитории работают одинаково внутри и вне транзакции.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store представляет интерфейс для работы с базой данных
type Store interface {
	User() UserRepository
	Order() OrderRepository
	Commission() CommissionRepository
	WithTx(tx pgx.Tx) Store
	ExecTx(ctx context.Context, fn func(Store) error) error
	DB() *pgxpool.Pool
	Close() error
}

// store реализует интерфейс Store
type store struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	user       UserRepository
	order      OrderRepository
	commission CommissionRepository
}

// UserRepository интерфейс для работы с пользователями
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByReferralCode(ctx context.Context, referralCode string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) error
	CountReferredBy(ctx context.Context, referralCode string) (int, error)
	GenerateReferralCode(ctx context.Context) (string, error)
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создание пула подключений
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Настройка пула
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	// Создание пула
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Проверка подключения
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	return newStoreWithQuerier(pool, pool, logger), nil
}

// newStoreWithQuerier собирает репозитории поверх переданного Querier
func newStoreWithQuerier(pool *pgxpool.Pool, q Querier, logger *zap.Logger) *store {
	return &store{
		pool:       pool,
		logger:     logger,
		user:       NewUserRepository(q, logger),
		order:      NewOrderRepository(q, logger),
		commission: NewCommissionRepository(q, logger),
	}
}

// WithTx возвращает Store, все репозитории которого привязаны к открытой
// транзакции. Чтение цепочки, инкременты кошельков и вставки в журнал
// внутри одного расчета проходят через один и тот же tx.
func (s *store) WithTx(tx pgx.Tx) Store {
	return newStoreWithQuerier(s.pool, tx, s.logger)
}

// ExecTx выполняет fn внутри одной транзакции: все операции репозиториев
// внутри fn либо фиксируются целиком, либо откатываются целиком.
func (s *store) ExecTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	return nil
}

// User возвращает репозиторий пользователей
func (s *store) User() UserRepository {
	return s.user
}

// Order возвращает репозиторий заказов
func (s *store) Order() OrderRepository {
	return s.order
}

// Commission возвращает репозиторий журнала комиссий
func (s *store) Commission() CommissionRepository {
	return s.commission
}

// DB возвращает пул подключений к базе данных
func (s *store) DB() *pgxpool.Pool {
	return s.pool
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.logger.Info("закрытие подключения к базе данных")
	s.pool.Close()
	return nil
}

// userRepository реализует UserRepository
type userRepository struct {
	db     Querier
	logger *zap.Logger
}

// NewUserRepository создает новый репозиторий пользователей
func NewUserRepository(db Querier, logger *zap.Logger) UserRepository {
	return &userRepository{
		db:     db,
		logger: logger,
	}
}

// Create создает нового пользователя
func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (email, name, phone, role, referral_code, referred_by, commission_rate, wallet_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	// Устанавливаем значения по умолчанию
	if user.Role == "" {
		user.Role = models.RoleCustomer
	}

	err := r.db.QueryRow(ctx, query,
		user.Email, user.Name, user.Phone, user.Role,
		user.ReferralCode, user.ReferredBy, user.CommissionRate, user.WalletBalance,
		user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)

	if err != nil {
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	r.logger.Info("пользователь создан",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", user.Role))

	return nil
}

// GetByID получает пользователя по ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, email, name, phone, role, referral_code, referred_by, commission_rate, wallet_balance, created_at, updated_at
		FROM users WHERE id = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

// GetByReferralCode получает пользователя по реферальному коду
func (r *userRepository) GetByReferralCode(ctx context.Context, referralCode string) (*models.User, error) {
	query := `
		SELECT id, email, name, phone, role, referral_code, referred_by, commission_rate, wallet_balance, created_at, updated_at
		FROM users WHERE referral_code = $1`

	return r.scanUser(r.db.QueryRow(ctx, query, referralCode))
}

// scanUser сканирует одну строку пользователя
func (r *userRepository) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.Phone, &user.Role,
		&user.ReferralCode, &user.ReferredBy, &user.CommissionRate, &user.WalletBalance,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("пользователь: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}

	return user, nil
}

// Update обновляет пользователя
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, name = $3, phone = $4, role = $5, referral_code = $6, referred_by = $7, commission_rate = $8, updated_at = $9
		WHERE id = $1`

	user.UpdatedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.Name, user.Phone, user.Role,
		user.ReferralCode, user.ReferredBy, user.CommissionRate, user.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", user.ID, ErrNotFound)
	}

	r.logger.Info("пользователь обновлен", zap.Int64("user_id", user.ID))
	return nil
}

// AddToWallet атомарно увеличивает баланс кошелька пользователя.
// Инкремент выполняется на стороне базы, конкурентные начисления
// одному пользователю не теряют обновлений.
func (r *userRepository) AddToWallet(ctx context.Context, userID int64, amount decimal.Decimal) error {
	query := `UPDATE users SET wallet_balance = wallet_balance + $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, userID, amount, time.Now())
	if err != nil {
		return fmt.Errorf("ошибка начисления на кошелек: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("пользователь с ID %d: %w", userID, ErrNotFound)
	}

	r.logger.Info("кошелек пополнен",
		zap.Int64("user_id", userID),
		zap.String("amount", amount.String()))
	return nil
}

// CountReferredBy подсчитывает количество пользователей, приглашенных по коду
func (r *userRepository) CountReferredBy(ctx context.Context, referralCode string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE referred_by = $1`

	var count int
	err := r.db.QueryRow(ctx, query, referralCode).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета рефералов: %w", err)
	}

	return count, nil
}

// GenerateReferralCode генерирует уникальный реферальный код
func (r *userRepository) GenerateReferralCode(ctx context.Context) (string, error) {
	query := `SELECT generate_referral_code()`

	var code string
	err := r.db.QueryRow(ctx, query).Scan(&code)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации реферального кода: %w", err)
	}

	return code, nil
}
