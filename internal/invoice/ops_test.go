package invoice

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/rental"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func price(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func i64(v int64) *int64 { return &v }

func draftOf(kind Kind, lines ...LineDraft) Draft {
	return Draft{Kind: kind, Lines: lines}
}

func mustCreate(t *testing.T, repo *memRepo, draft Draft) Invoice {
	t.Helper()
	inv, err := CreateInvoice(context.Background(), repo, draft, 1)
	require.NoError(t, err)
	return inv
}

func stockAt(t *testing.T, repo *memRepo, itemID, locationID int64) int64 {
	t.Helper()
	qty, err := repo.ledger.StockForUpdate(context.Background(), itemID, locationID)
	require.NoError(t, err)
	return qty
}

func TestPurchaseCreateAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	draft := draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 10, UnitPrice: price("2.50")})
	draft.Paid = dec("5.00")
	inv := mustCreate(t, repo, draft)

	require.Equal(t, StatusDraft, inv.Status)
	require.True(t, inv.Total.Equal(dec("25.00")))
	require.True(t, inv.Residual.Equal(dec("20.00")))
	require.EqualValues(t, 10, stockAt(t, repo, 1, 10))

	layer, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: inv.ID, ItemID: 1, LocationID: 10})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 10, layer.Remaining)
	require.True(t, layer.UnitCost.Equal(dec("2.50")))

	require.NoError(t, DeleteInvoice(ctx, repo, inv.ID))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
	require.Empty(t, repo.ledger.layers)
	require.Empty(t, repo.lines)

	err = DeleteInvoice(ctx, repo, inv.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaleDrawsCostOldestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	p1 := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	p2 := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("12.00")}))

	sale := mustCreate(t, repo, draftOf(KindSale, LineDraft{ItemID: 1, LocationID: 10, Qty: 7, UnitPrice: price("20.00")}))
	require.True(t, sale.Total.Equal(dec("140.00")))
	require.EqualValues(t, 3, stockAt(t, repo, 1, 10))

	traces, err := repo.ledger.TracesByConsumer(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, traces, 2)
	require.Equal(t, p1.ID, traces[0].Layer.SourceInvoiceID)
	require.EqualValues(t, 5, traces[0].Qty)
	require.Equal(t, p2.ID, traces[1].Layer.SourceInvoiceID)
	require.EqualValues(t, 2, traces[1].Qty)

	require.NoError(t, DeleteInvoice(ctx, repo, sale.ID))
	require.EqualValues(t, 10, stockAt(t, repo, 1, 10))
	for _, layer := range repo.ledger.layers {
		require.EqualValues(t, 5, layer.Remaining)
	}
}

func TestSaleRefusals(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("10.00")}))

	_, err := CreateInvoice(ctx, repo, draftOf(KindSale, LineDraft{ItemID: 1, LocationID: 10, Qty: 2}), 1)
	require.ErrorIs(t, err, ErrPriceRequired)

	_, err = CreateInvoice(ctx, repo, draftOf(KindSale, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("20.00")}), 1)
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	_, err = CreateInvoice(ctx, repo, draftOf(KindSale,
		LineDraft{ItemID: 1, LocationID: 10, Qty: 1, UnitPrice: price("20.00")},
		LineDraft{ItemID: 1, LocationID: 10, Qty: 1, UnitPrice: price("20.00")}), 1)
	require.ErrorIs(t, err, ErrDuplicateLineItem)

	_, err = CreateInvoice(ctx, repo, draftOf(KindSale, LineDraft{ItemID: 99, LocationID: 10, Qty: 1, UnitPrice: price("20.00")}), 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseDeleteBlockedAfterSale(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	purchase := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	sale := mustCreate(t, repo, draftOf(KindSale, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("15.00")}))

	err := DeleteInvoice(ctx, repo, purchase.ID)
	require.ErrorIs(t, err, ledger.ErrConsumedReference)

	var conflict *ledger.ConsumedConflict
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, sale.ID, conflict.BlockingInvoiceID)

	require.NoError(t, DeleteInvoice(ctx, repo, sale.ID))
	require.NoError(t, DeleteInvoice(ctx, repo, purchase.ID))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
}

func TestLinkedReturnRestoresSourceLayers(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	purchase := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	sale := mustCreate(t, repo, draftOf(KindSale, LineDraft{ItemID: 1, LocationID: 10, Qty: 3, UnitPrice: price("15.00")}))

	retDraft := draftOf(KindReturn, LineDraft{ItemID: 1, LocationID: 10, Qty: 2})
	retDraft.OriginalInvoiceID = &sale.ID
	ret := mustCreate(t, repo, retDraft)

	// Priced at the restored cost, not the sale price.
	require.True(t, ret.Total.Equal(dec("20.00")))
	require.NotNil(t, ret.Lines[0].UnitPrice)
	require.True(t, ret.Lines[0].UnitPrice.Equal(dec("10.00")))
	require.EqualValues(t, 4, stockAt(t, repo, 1, 10))

	saleLine, ok, err := repo.LineForUpdate(ctx, sale.ID, 1, 10)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, saleLine.ReturnedQty)

	layer, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: purchase.ID, ItemID: 1, LocationID: 10})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, layer.Remaining)

	over := draftOf(KindReturn, LineDraft{ItemID: 1, LocationID: 10, Qty: 2})
	over.OriginalInvoiceID = &sale.ID
	_, err = CreateInvoice(ctx, repo, over, 1)
	require.ErrorIs(t, err, ErrReturnExceedsSold)

	// Reversing the sale is blocked while the return holds its trace.
	err = DeleteInvoice(ctx, repo, sale.ID)
	require.ErrorIs(t, err, ledger.ErrConsumedReference)

	require.NoError(t, DeleteInvoice(ctx, repo, ret.ID))
	require.EqualValues(t, 2, stockAt(t, repo, 1, 10))
	saleLine, _, err = repo.LineForUpdate(ctx, sale.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 0, saleLine.ReturnedQty)
	require.NoError(t, DeleteInvoice(ctx, repo, sale.ID))
}

func TestUnlinkedReturnOpensLayer(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	_, err := CreateInvoice(ctx, repo, draftOf(KindReturn, LineDraft{ItemID: 1, LocationID: 10, Qty: 3}), 1)
	require.ErrorIs(t, err, ErrPriceRequired)

	ret := mustCreate(t, repo, draftOf(KindReturn, LineDraft{ItemID: 1, LocationID: 10, Qty: 3, UnitPrice: price("8.00")}))
	require.True(t, ret.Total.Equal(dec("24.00")))
	require.EqualValues(t, 3, stockAt(t, repo, 1, 10))

	_, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: ret.ID, ItemID: 1, LocationID: 10})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, DeleteInvoice(ctx, repo, ret.ID))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
	require.Empty(t, repo.ledger.layers)
}

func TestVoidFallsBackToLatestCost(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	// Latest known price comes from a purchase at another location.
	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 20, Qty: 1, UnitPrice: price("14.00")}))
	// Unpriced stock at the write-off location.
	require.NoError(t, repo.ledger.SetStock(ctx, 1, 10, 3))

	void := mustCreate(t, repo, draftOf(KindVoid, LineDraft{ItemID: 1, LocationID: 10, Qty: 3}))
	require.True(t, void.Total.Equal(dec("42.00")))
	// The line reports the per-unit cost the fallback derived.
	require.NotNil(t, void.Lines[0].UnitPrice)
	require.True(t, void.Lines[0].UnitPrice.Equal(dec("14.00")))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
	require.EqualValues(t, 1, stockAt(t, repo, 1, 20))

	traces, err := repo.ledger.TracesByConsumer(ctx, void.ID)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.True(t, traces[0].Synthetic)

	// The fallback entry moved no layer quantity, so reversal only
	// restores the stock count.
	require.NoError(t, DeleteInvoice(ctx, repo, void.ID))
	require.EqualValues(t, 3, stockAt(t, repo, 1, 10))
	layer, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: 1, ItemID: 1, LocationID: 20})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, layer.Remaining)
}

func TestVoidPriceOverride(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))

	void, err := CreateInvoice(ctx, repo, draftOf(KindVoid, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("3.00")}), 1)
	require.NoError(t, err)
	require.True(t, void.Total.Equal(dec("6.00")))
}

func TestWarrantyWidensConsumptionAcrossLocations(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 3, UnitPrice: price("10.00")}))
	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 20, Qty: 3, UnitPrice: price("12.00")}))
	// Extra unpriced stock at the write-off location so the quantity is
	// on hand even though its cost sits at location 20.
	require.NoError(t, repo.ledger.SetStock(ctx, 1, 10, 5))

	warranty := mustCreate(t, repo, draftOf(KindWarranty, LineDraft{ItemID: 1, LocationID: 10, Qty: 5}))
	require.True(t, warranty.Total.Equal(dec("54.00")))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
}

func TestWarrantyReturnWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	warranty := mustCreate(t, repo, draftOf(KindWarranty, LineDraft{ItemID: 1, LocationID: 10, Qty: 4}))
	require.EqualValues(t, 1, stockAt(t, repo, 1, 10))

	inv, err := RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 10, Qty: 2}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReturned, inv.Status)
	require.EqualValues(t, 3, stockAt(t, repo, 1, 10))

	// Returned stock is already on hand; reversing the whole write-off
	// would double-count it.
	err = DeleteInvoice(ctx, repo, warranty.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 10, Qty: 3}, 1)
	require.ErrorIs(t, err, ErrReturnExceedsSold)

	inv, err = RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 10, Qty: 2}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, inv.Status)
	require.EqualValues(t, 5, stockAt(t, repo, 1, 10))

	_, err = RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 2, LocationID: 10, Qty: 1}, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestWarrantyReturnTracksEachLineOfSameItem(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("10.00")}))
	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 20, Qty: 3, UnitPrice: price("12.00")}))

	warranty := mustCreate(t, repo, draftOf(KindWarranty,
		LineDraft{ItemID: 1, LocationID: 10, Qty: 2},
		LineDraft{ItemID: 1, LocationID: 20, Qty: 3}))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 20))

	// Fully returning the first line must not consume the second line's
	// returnable quantity.
	inv, err := RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 10, Qty: 2}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReturned, inv.Status)
	require.EqualValues(t, 2, stockAt(t, repo, 1, 10))

	_, err = RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 10, Qty: 1}, 1)
	require.ErrorIs(t, err, ErrReturnExceedsSold)

	_, err = RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 30, Qty: 1}, 1)
	require.ErrorIs(t, err, ErrNotFound)

	inv, err = RecordWarrantyReturn(ctx, repo, warranty.ID, WarrantyReturnForm{ItemID: 1, LocationID: 20, Qty: 3}, 1)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, inv.Status)
	require.EqualValues(t, 3, stockAt(t, repo, 1, 20))
}

func TestBookingSetsStockAside(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	booking := mustCreate(t, repo, draftOf(KindBooking, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("20.00")}))
	require.True(t, booking.Total.Equal(dec("40.00")))
	require.EqualValues(t, 3, stockAt(t, repo, 1, 10))

	layer, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: booking.ID, ItemID: 1, LocationID: 10})
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, layer.UnitCost.Equal(dec("20.00")))

	require.NoError(t, DeleteInvoice(ctx, repo, booking.ID))
	require.EqualValues(t, 5, stockAt(t, repo, 1, 10))
}

func TestRentalReservesAndReleases(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 4, UnitPrice: price("10.00")}))
	rent := mustCreate(t, repo, draftOf(KindRental, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("5.00")}))
	require.True(t, rent.Total.Equal(dec("10.00")))
	require.EqualValues(t, 2, stockAt(t, repo, 1, 10))

	counter, err := repo.rental.CounterForUpdate(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 2, counter.Qty)
	require.EqualValues(t, 2, counter.Reserved)

	require.NoError(t, DeleteInvoice(ctx, repo, rent.ID))
	require.EqualValues(t, 4, stockAt(t, repo, 1, 10))
	counter, err = repo.rental.CounterForUpdate(ctx, 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, counter.Qty)
}

func TestRentalDeleteBlockedAfterHandOver(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 4, UnitPrice: price("10.00")}))
	rent := mustCreate(t, repo, draftOf(KindRental, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("5.00")}))

	items, err := repo.rental.RentedByInvoice(ctx, rent.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	_, err = rental.Give(ctx, repo.rental, items[0].ID)
	require.NoError(t, err)

	err = DeleteInvoice(ctx, repo, rent.ID)
	require.ErrorIs(t, err, rental.ErrInvalidTransition)
}

func TestTransferSplitsLayerAndPropagates(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	purchase := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	transfer := mustCreate(t, repo, draftOf(KindTransfer, LineDraft{ItemID: 1, LocationID: 10, DestLocationID: i64(20), Qty: 3}))

	require.True(t, transfer.Total.Equal(dec("30.00")))
	require.EqualValues(t, 2, stockAt(t, repo, 1, 10))
	require.EqualValues(t, 3, stockAt(t, repo, 1, 20))

	src, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: purchase.ID, ItemID: 1, LocationID: 10})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, src.Remaining)
	dst, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: purchase.ID, ItemID: 1, LocationID: 20})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, dst.Remaining)
	require.True(t, dst.UnitCost.Equal(dec("10.00")))

	// The owning purchase's lines now mirror the split.
	reloaded, err := repo.InvoiceForUpdate(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Lines, 2)
	srcLine, _, err := repo.LineForUpdate(ctx, purchase.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 2, srcLine.Qty)
	require.True(t, srcLine.Total.Equal(dec("20.00")))
	dstLine, _, err := repo.LineForUpdate(ctx, purchase.ID, 1, 20)
	require.NoError(t, err)
	require.EqualValues(t, 3, dstLine.Qty)
	require.True(t, dstLine.Total.Equal(dec("30.00")))
	require.Contains(t, dstLine.Description, "transferred from location 10")

	require.NoError(t, DeleteInvoice(ctx, repo, transfer.ID))
	require.EqualValues(t, 5, stockAt(t, repo, 1, 10))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 20))
	reloaded, err = repo.InvoiceForUpdate(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Lines, 1)
	require.EqualValues(t, 5, reloaded.Lines[0].Qty)
	require.Empty(t, repo.edits)
	_, ok, err = repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: purchase.ID, ItemID: 1, LocationID: 20})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTransferFullMoveRestoresDeletedLine(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	purchase := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))
	transfer := mustCreate(t, repo, draftOf(KindTransfer, LineDraft{ItemID: 1, LocationID: 10, DestLocationID: i64(20), Qty: 5}))

	// The source line is gone entirely; only the destination line remains.
	reloaded, err := repo.InvoiceForUpdate(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Lines, 1)
	require.EqualValues(t, 20, reloaded.Lines[0].LocationID)
	require.EqualValues(t, 5, reloaded.Lines[0].Qty)

	edits, err := repo.TransferEditsByInvoice(ctx, transfer.ID)
	require.NoError(t, err)
	require.Len(t, edits, 1)
	require.True(t, edits[0].SrcLineDeleted)
	require.NotNil(t, edits[0].SrcLineSnapshot)

	require.NoError(t, DeleteInvoice(ctx, repo, transfer.ID))
	reloaded, err = repo.InvoiceForUpdate(ctx, purchase.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Lines, 1)
	require.EqualValues(t, 10, reloaded.Lines[0].LocationID)
	require.EqualValues(t, 5, reloaded.Lines[0].Qty)
	require.True(t, reloaded.Lines[0].Total.Equal(dec("50.00")))

	// Purchase reversal works again after the transfer is unwound.
	require.NoError(t, DeleteInvoice(ctx, repo, purchase.ID))
	require.EqualValues(t, 0, stockAt(t, repo, 1, 10))
}

func TestTransferRefusedBeyondPricedStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 2, UnitPrice: price("10.00")}))
	require.NoError(t, repo.ledger.SetStock(ctx, 1, 10, 5))

	_, err := CreateInvoice(ctx, repo, draftOf(KindTransfer, LineDraft{ItemID: 1, LocationID: 10, DestLocationID: i64(20), Qty: 4}), 1)
	require.ErrorIs(t, err, ledger.ErrInsufficientPricedInventory)

	_, err = CreateInvoice(ctx, repo, draftOf(KindTransfer, LineDraft{ItemID: 1, LocationID: 10, DestLocationID: i64(10), Qty: 1}), 1)
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateReversesThenReapplies(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	inv := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))

	updated, err := UpdateInvoice(ctx, repo, inv.ID, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 8, UnitPrice: price("11.00")}))
	require.NoError(t, err)
	require.Equal(t, inv.ID, updated.ID)
	require.Equal(t, inv.Ref, updated.Ref)
	require.True(t, updated.Total.Equal(dec("88.00")))
	require.EqualValues(t, 8, stockAt(t, repo, 1, 10))

	layer, ok, err := repo.ledger.LayerForUpdate(ctx, ledger.LayerKey{SourceInvoiceID: inv.ID, ItemID: 1, LocationID: 10})
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 8, layer.Remaining)
	require.True(t, layer.UnitCost.Equal(dec("11.00")))

	_, err = UpdateInvoice(ctx, repo, inv.ID, draftOf(KindSale, LineDraft{ItemID: 1, LocationID: 10, Qty: 1, UnitPrice: price("20.00")}))
	require.ErrorIs(t, err, ErrValidation)

	_, err = UpdateInvoice(ctx, repo, 999, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 1, UnitPrice: price("1.00")}))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPurchaseRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 5, UnitPrice: price("10.00")}))

	req := mustCreate(t, repo, draftOf(KindPurchaseRequest, LineDraft{ItemID: 1, LocationID: 10, Qty: 4}))
	require.True(t, req.Total.Equal(dec("40.00")))
	// A request never moves stock.
	require.EqualValues(t, 5, stockAt(t, repo, 1, 10))

	pr, ok, err := repo.PurchaseRequestForUpdate(ctx, req.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, RequestPending, pr.Status)

	pr, err = ConfirmPurchaseRequest(ctx, repo, req.ID)
	require.NoError(t, err)
	require.Equal(t, RequestConfirmed, pr.Status)

	_, err = ConfirmPurchaseRequest(ctx, repo, req.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	require.NoError(t, DeleteInvoice(ctx, repo, req.ID))
	_, ok, err = repo.PurchaseRequestForUpdate(ctx, req.ID)
	require.NoError(t, err)
	require.False(t, ok)

	// No price history for the item at all.
	_, err = CreateInvoice(ctx, repo, draftOf(KindPurchaseRequest, LineDraft{ItemID: 2, LocationID: 10, Qty: 1}), 1)
	require.ErrorIs(t, err, ledger.ErrInsufficientPricedInventory)
}

func TestStatusWorkflow(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()

	inv := mustCreate(t, repo, draftOf(KindPurchase, LineDraft{ItemID: 1, LocationID: 10, Qty: 1, UnitPrice: price("1.00")}))

	_, err := AccreditInvoice(ctx, repo, inv.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	submitted, err := SubmitInvoice(ctx, repo, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusAccreditation, submitted.Status)

	_, err = SubmitInvoice(ctx, repo, inv.ID)
	require.ErrorIs(t, err, ErrInvalidStateTransition)

	confirmed, err := AccreditInvoice(ctx, repo, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, confirmed.Status)

	var stateErr *StateError
	_, err = AccreditInvoice(ctx, repo, inv.ID)
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, StatusConfirmed, stateErr.From)
}
