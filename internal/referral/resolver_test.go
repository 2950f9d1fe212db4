package referral

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Цепочка: D пригласил C, C пригласил B, B пригласил A.
// Для старта с D предки идут в порядке C, B, A.
func chainFixture() *memStore {
	return newMemStore(
		testUser(1, "AAAA", nil, ratePtr("5")),
		testUser(2, "BBBB", strPtr("AAAA"), ratePtr("10")),
		testUser(3, "CCCC", strPtr("BBBB"), ratePtr("20")),
		testUser(4, "DDDD", strPtr("CCCC"), ratePtr("15")),
	)
}

func TestResolveChain_OrderedNearestFirst(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := chainFixture()

	chain, err := resolver.ResolveChain(context.Background(), st.User(), 4, 10)
	require.NoError(t, err)
	require.Len(t, chain, 3)

	// Ближайший реферер первым, уровни строго возрастают
	assert.Equal(t, 1, chain[0].Level)
	assert.Equal(t, int64(3), chain[0].UserID)
	assert.True(t, chain[0].CommissionRate.Equal(decimal.RequireFromString("20")))

	assert.Equal(t, 2, chain[1].Level)
	assert.Equal(t, int64(2), chain[1].UserID)

	assert.Equal(t, 3, chain[2].Level)
	assert.Equal(t, int64(1), chain[2].UserID)

	// Стартовый пользователь в цепочку не входит
	for _, entry := range chain {
		assert.NotEqual(t, int64(4), entry.UserID)
	}
}

func TestResolveChain_BoundedByMaxLevels(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := chainFixture()

	tests := []struct {
		name      string
		maxLevels int
		expected  int
	}{
		{"нулевая глубина дает пустую цепочку", 0, 0},
		{"отрицательная глубина дает пустую цепочку", -1, 0},
		{"глубина один", 1, 1},
		{"глубина два", 2, 2},
		{"глубина больше длины цепочки", 100, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := resolver.ResolveChain(context.Background(), st.User(), 4, tt.maxLevels)
			require.NoError(t, err)
			assert.Len(t, chain, tt.expected)
		})
	}
}

func TestResolveChain_BrokenLinkTerminates(t *testing.T) {
	resolver := NewResolver(zap.NewNop())

	// Код GONE не принадлежит ни одному пользователю: разрыв на глубине 2
	st := newMemStore(
		testUser(2, "BBBB", strPtr("GONE"), ratePtr("10")),
		testUser(3, "CCCC", strPtr("BBBB"), ratePtr("20")),
		testUser(4, "DDDD", strPtr("CCCC"), ratePtr("15")),
	)

	chain, err := resolver.ResolveChain(context.Background(), st.User(), 4, 10)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestResolveChain_MissingStartUser(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := newMemStore()

	chain, err := resolver.ResolveChain(context.Background(), st.User(), 999, 10)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestResolveChain_NoReferrer(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := newMemStore(testUser(1, "AAAA", nil, ratePtr("5")))

	chain, err := resolver.ResolveChain(context.Background(), st.User(), 1, 10)
	require.NoError(t, err)
	assert.Empty(t, chain)
}

func TestResolveChain_NilRateTreatedAsZero(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := newMemStore(
		testUser(1, "AAAA", nil, nil), // Ставка не задана
		testUser(2, "BBBB", strPtr("AAAA"), ratePtr("10")),
	)

	chain, err := resolver.ResolveChain(context.Background(), st.User(), 2, 10)
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.True(t, chain[0].CommissionRate.IsZero())
}

func TestResolveChain_PureRead(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := chainFixture()

	first, err := resolver.ResolveChain(context.Background(), st.User(), 4, 10)
	require.NoError(t, err)

	second, err := resolver.ResolveChain(context.Background(), st.User(), 4, 10)
	require.NoError(t, err)

	// Повторный вызов при неизменных данных дает тот же результат
	assert.Equal(t, first, second)

	// Резолвер ничего не пишет
	assert.Zero(t, st.users.walletCalls)
	assert.Empty(t, st.commissions.rows)
}

func TestResolveChain_StorageErrorPropagates(t *testing.T) {
	resolver := NewResolver(zap.NewNop())
	st := chainFixture()

	storageErr := errors.New("соединение с базой потеряно")
	st.users.failNextGet = storageErr

	_, err := resolver.ResolveChain(context.Background(), st.User(), 4, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, storageErr)
}
