package rental

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memStore struct {
	rented   map[int64]*RentedItem
	counters map[int64]Counter
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{rented: make(map[int64]*RentedItem), counters: make(map[int64]Counter)}
}

func (m *memStore) InsertRented(_ context.Context, item RentedItem) (int64, error) {
	m.nextID++
	item.ID = m.nextID
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.rented[item.ID] = &item
	return item.ID, nil
}

func (m *memStore) RentedForUpdate(_ context.Context, id int64) (RentedItem, bool, error) {
	item, ok := m.rented[id]
	if !ok {
		return RentedItem{}, false, nil
	}
	return *item, true, nil
}

func (m *memStore) RentedByInvoice(_ context.Context, invoiceID int64) ([]RentedItem, error) {
	var ids []int64
	for id, item := range m.rented {
		if item.InvoiceID == invoiceID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []RentedItem
	for _, id := range ids {
		out = append(out, *m.rented[id])
	}
	return out, nil
}

func (m *memStore) SetRentedStatus(_ context.Context, id int64, status Status) error {
	item, ok := m.rented[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = status
	item.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) DeleteRentedByInvoice(_ context.Context, invoiceID int64) error {
	for id, item := range m.rented {
		if item.InvoiceID == invoiceID {
			delete(m.rented, id)
		}
	}
	return nil
}

func (m *memStore) CounterForUpdate(_ context.Context, itemID int64) (Counter, error) {
	c, ok := m.counters[itemID]
	if !ok {
		return Counter{ItemID: itemID}, nil
	}
	return c, nil
}

func (m *memStore) SetCounter(_ context.Context, c Counter) error {
	m.counters[c.ItemID] = c
	return nil
}

var _ Store = (*memStore)(nil)

func TestReserveAndRelease(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	id, err := Reserve(ctx, st, 100, 1, 3)
	require.NoError(t, err)
	require.NotZero(t, id)

	c, err := st.CounterForUpdate(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3), c.Qty)
	require.Equal(t, int64(3), c.Reserved)

	released, err := ReleaseInvoice(ctx, st, 100)
	require.NoError(t, err)
	require.Len(t, released, 1)
	require.Equal(t, int64(3), released[0].Qty)

	c, err = st.CounterForUpdate(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, c.Qty)
	require.Zero(t, c.Reserved)

	items, err := st.RentedByInvoice(ctx, 100)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestGiveThenReturn(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	id, err := Reserve(ctx, st, 100, 1, 2)
	require.NoError(t, err)

	item, err := Give(ctx, st, id)
	require.NoError(t, err)
	require.Equal(t, StatusGiven, item.Status)

	c, _ := st.CounterForUpdate(ctx, 1)
	require.Zero(t, c.Qty)
	require.Zero(t, c.Reserved)

	item, err = Return(ctx, st, id)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, item.Status)

	c, _ = st.CounterForUpdate(ctx, 1)
	require.Equal(t, int64(2), c.Qty)
	require.Zero(t, c.Reserved)
}

func TestBorrowToMainLeavesCounterUntouched(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	id, err := Reserve(ctx, st, 100, 1, 2)
	require.NoError(t, err)
	_, err = Give(ctx, st, id)
	require.NoError(t, err)

	item, err := BorrowToMain(ctx, st, id)
	require.NoError(t, err)
	require.Equal(t, StatusBorrowedToMain, item.Status)

	// Stock goes back to the main warehouse, not the rental one.
	c, _ := st.CounterForUpdate(ctx, 1)
	require.Zero(t, c.Qty)
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()

	id, err := Reserve(ctx, st, 100, 1, 2)
	require.NoError(t, err)

	// Reserved items cannot be returned before being given.
	_, err = Return(ctx, st, id)
	require.ErrorIs(t, err, ErrInvalidTransition)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	require.Equal(t, StatusReserved, te.From)

	_, err = Give(ctx, st, id)
	require.NoError(t, err)

	// Releasing an invoice with a given item is refused.
	_, err = ReleaseInvoice(ctx, st, 100)
	require.ErrorIs(t, err, ErrInvalidTransition)

	// A returned item is terminal.
	_, err = Return(ctx, st, id)
	require.NoError(t, err)
	_, err = Give(ctx, st, id)
	require.ErrorIs(t, err, ErrInvalidTransition)
}
