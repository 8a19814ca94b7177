package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"commerce-agent/internal/domain"
)

func TestLoadFile(t *testing.T) {
	s, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "P1", products[0].ID)
	require.Equal(t, []string{"wedding", "midi"}, products[0].Tags)
	require.InDelta(t, 75.5, products[1].Price, 0.001)

	order, err := s.FindOrder(context.Background(), "A1003")
	require.NoError(t, err)
	require.Equal(t, "alex@example.com", order.Email)
	require.Equal(t, time.Date(2025, 9, 7, 11, 55, 0, 0, time.UTC), order.CreatedAt)
	require.Equal(t, time.UTC, order.CreatedAt.Location())
	require.Len(t, order.Items, 1)

	_, err = s.FindOrder(context.Background(), "A9999")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("testdata/nope.yaml")
	require.ErrorContains(t, err, "open fixture")
}

func TestNewFileStore_Invalid(t *testing.T) {
	_, err := NewFileStore(strings.NewReader("products: [oops"))
	require.ErrorContains(t, err, "decode fixture")

	dup := `
orders:
  - order_id: A1001
    email: a@example.com
    created_at: 2025-09-05T09:10:00Z
  - order_id: A1001
    email: b@example.com
    created_at: 2025-09-05T09:10:00Z
`
	_, err = NewFileStore(strings.NewReader(dup))
	require.ErrorContains(t, err, "duplicate order")
}

func TestNewFileStore_Empty(t *testing.T) {
	s, err := NewFileStore(strings.NewReader(""))
	require.NoError(t, err)
	products, err := s.ListProducts(context.Background())
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestFileStore_Traces(t *testing.T) {
	s, err := NewFileStore(strings.NewReader(""))
	require.NoError(t, err)
	require.NoError(t, s.SaveTrace(context.Background(), domain.Trace{RequestID: "a"}))
	require.NoError(t, s.SaveTrace(context.Background(), domain.Trace{RequestID: "b"}))

	traces := s.Traces()
	require.Len(t, traces, 2)
	require.Equal(t, "b", traces[1].RequestID)
}

func TestFileStore_TraceLimit(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(strings.NewReader(""), WithTraceLimit(3))
	require.NoError(t, err)
	for _, id := range []string{"r1", "r2", "r3", "r4", "r5"} {
		require.NoError(t, s.SaveTrace(ctx, domain.Trace{RequestID: id}))
	}
	traces := s.Traces()
	require.Len(t, traces, 3)
	require.Equal(t, []string{"r3", "r4", "r5"}, []string{traces[0].RequestID, traces[1].RequestID, traces[2].RequestID})

	off, err := NewFileStore(strings.NewReader(""), WithTraceLimit(0))
	require.NoError(t, err)
	require.NoError(t, off.SaveTrace(ctx, domain.Trace{RequestID: "r1"}))
	require.Empty(t, off.Traces())

	def, err := NewFileStore(strings.NewReader(""))
	require.NoError(t, err)
	for i := 0; i < DefaultTraceLimit+10; i++ {
		require.NoError(t, def.SaveTrace(ctx, domain.Trace{}))
	}
	require.Len(t, def.Traces(), DefaultTraceLimit)
}
