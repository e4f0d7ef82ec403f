package order_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/chatbridge/internal/order"
)

func TestItem_RoundTrip(t *testing.T) {
	t.Parallel()

	items := []order.Item{
		{Quantity: 2, Code: "A_1"},
		{Quantity: 1, Code: "B_123", Modifications: "+M_1,-M_2"},
		{Quantity: 0, Code: "Z_9"},
		{Quantity: 500, Code: "W_10", Modifications: "-M_3"},
	}
	for _, item := range items {
		t.Run(item.String(), func(t *testing.T) {
			t.Parallel()
			got, err := order.Parse(item.String())
			require.NoError(t, err)
			assert.Equal(t, item, got)
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("lower case code is normalized", func(t *testing.T) {
		t.Parallel()
		got, err := order.Parse("3:a_5")
		require.NoError(t, err)
		assert.Equal(t, order.Item{Quantity: 3, Code: "A_5"}, got)
	})

	t.Run("empty parens mean no modifications", func(t *testing.T) {
		t.Parallel()
		got, err := order.Parse("1:A_1 ()")
		require.NoError(t, err)
		assert.Empty(t, got.Modifications)
		assert.Equal(t, "1:A_1", got.String())
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()
		for _, s := range []string{"", "A_1", "x:A_1", "1:AA_1", "1:A_1234"} {
			_, err := order.Parse(s)
			assert.ErrorIs(t, err, order.ErrInvalidFormat, s)
		}
	})
}

func TestParseLines(t *testing.T) {
	t.Parallel()

	got := order.ParseLines("#update order: 2:a_1 (+M_1), 0:B_2, 1 : C_33 ()")
	assert.Equal(t, []order.Item{
		{Quantity: 2, Code: "A_1", Modifications: "+M_1"},
		{Quantity: 0, Code: "B_2"},
		{Quantity: 1, Code: "C_33"},
	}, got)

	assert.Empty(t, order.ParseLines("#update order: nothing here"))
}

func TestParseModifications(t *testing.T) {
	t.Parallel()

	mods, invalid := order.ParseModifications("+m_1, -M_2, X_3, +")
	assert.Equal(t, []order.Modification{
		{Add: true, Code: "M_1", Raw: "+m_1"},
		{Add: false, Code: "M_2", Raw: "-M_2"},
	}, mods)
	assert.Equal(t, []string{"X_3", "+"}, invalid)
}

func TestItem_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, order.Item{Quantity: 1, Code: "A_1"}.Validate())
	assert.ErrorIs(t, order.Item{Quantity: -1, Code: "A_1"}.Validate(), order.ErrNegativeAmount)
	assert.ErrorIs(t, order.Item{Quantity: 1, Code: "AB_1"}.Validate(), order.ErrInvalidCode)
}

func TestLines_Apply(t *testing.T) {
	t.Parallel()

	base := order.ParseStored("2:A_1\n1:B_2 (+M_1)\n")
	require.Len(t, base, 2)

	t.Run("update existing", func(t *testing.T) {
		t.Parallel()
		got, outcome := base.Apply(order.Item{Quantity: 5, Code: "a_1"})
		assert.Equal(t, order.Updated, outcome)
		assert.Equal(t, "5:A_1\n1:B_2 (+M_1)", got.String())
		assert.Equal(t, 2, base[0].Quantity)
	})

	t.Run("different mods add a new line", func(t *testing.T) {
		t.Parallel()
		got, outcome := base.Apply(order.Item{Quantity: 1, Code: "B_2"})
		assert.Equal(t, order.Added, outcome)
		assert.Len(t, got, 3)
	})

	t.Run("remove", func(t *testing.T) {
		t.Parallel()
		got, outcome := base.Apply(order.Item{Quantity: 0, Code: "B_2", Modifications: "+M_1"})
		assert.Equal(t, order.Removed, outcome)
		assert.Equal(t, "2:A_1", got.String())
	})

	t.Run("remove missing", func(t *testing.T) {
		t.Parallel()
		got, outcome := base.Apply(order.Item{Quantity: 0, Code: "C_3"})
		assert.Equal(t, order.NotFound, outcome)
		assert.Len(t, got, 2)
	})
}
