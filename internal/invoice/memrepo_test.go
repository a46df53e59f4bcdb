package invoice

import (
	"context"
	"sort"
	"time"

	"github.com/stockyard-wms/stockyard/internal/ledger"
	"github.com/stockyard-wms/stockyard/internal/rental"
)

// memLedger is an in-memory ledger.Store for invoice operation tests.
type memLedger struct {
	stock     map[[2]int64]int64
	layers    map[ledger.LayerKey]*ledger.CostLayer
	traces    map[int64]*ledger.TraceEntry
	nextTrace int64
}

func newMemLedger() *memLedger {
	return &memLedger{
		stock:  make(map[[2]int64]int64),
		layers: make(map[ledger.LayerKey]*ledger.CostLayer),
		traces: make(map[int64]*ledger.TraceEntry),
	}
}

func (m *memLedger) StockForUpdate(_ context.Context, itemID, locationID int64) (int64, error) {
	return m.stock[[2]int64{itemID, locationID}], nil
}

func (m *memLedger) SetStock(_ context.Context, itemID, locationID, qty int64) error {
	m.stock[[2]int64{itemID, locationID}] = qty
	return nil
}

func (m *memLedger) sortedLayers() []*ledger.CostLayer {
	keys := make([]ledger.LayerKey, 0, len(m.layers))
	for k := range m.layers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SourceInvoiceID != keys[j].SourceInvoiceID {
			return keys[i].SourceInvoiceID < keys[j].SourceInvoiceID
		}
		if keys[i].ItemID != keys[j].ItemID {
			return keys[i].ItemID < keys[j].ItemID
		}
		return keys[i].LocationID < keys[j].LocationID
	})
	out := make([]*ledger.CostLayer, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.layers[k])
	}
	return out
}

func (m *memLedger) LayersForUpdate(_ context.Context, itemID, locationID int64) ([]ledger.CostLayer, error) {
	var out []ledger.CostLayer
	for _, layer := range m.sortedLayers() {
		if layer.Key.ItemID != itemID || layer.Remaining <= 0 {
			continue
		}
		if locationID != 0 && layer.Key.LocationID != locationID {
			continue
		}
		out = append(out, *layer)
	}
	return out, nil
}

func (m *memLedger) LayerForUpdate(_ context.Context, key ledger.LayerKey) (ledger.CostLayer, bool, error) {
	layer, ok := m.layers[key]
	if !ok {
		return ledger.CostLayer{}, false, nil
	}
	return *layer, true, nil
}

func (m *memLedger) LayersBySource(_ context.Context, sourceInvoiceID int64) ([]ledger.CostLayer, error) {
	var out []ledger.CostLayer
	for _, layer := range m.sortedLayers() {
		if layer.Key.SourceInvoiceID == sourceInvoiceID {
			out = append(out, *layer)
		}
	}
	return out, nil
}

func (m *memLedger) LatestLayer(_ context.Context, itemID int64) (ledger.CostLayer, bool, error) {
	var latest *ledger.CostLayer
	for _, layer := range m.sortedLayers() {
		if layer.Key.ItemID == itemID {
			latest = layer
		}
	}
	if latest == nil {
		return ledger.CostLayer{}, false, nil
	}
	return *latest, true, nil
}

func (m *memLedger) InsertLayer(_ context.Context, layer ledger.CostLayer) error {
	copied := layer
	m.layers[layer.Key] = &copied
	return nil
}

func (m *memLedger) AdjustLayer(_ context.Context, key ledger.LayerKey, remainingDelta, originalDelta int64) error {
	layer, ok := m.layers[key]
	if !ok {
		return ledger.ErrLayerNotFound
	}
	layer.Remaining += remainingDelta
	layer.Original += originalDelta
	return nil
}

func (m *memLedger) DeleteLayer(_ context.Context, key ledger.LayerKey) error {
	delete(m.layers, key)
	return nil
}

func (m *memLedger) InsertTrace(_ context.Context, entry ledger.TraceEntry) (int64, error) {
	m.nextTrace++
	entry.ID = m.nextTrace
	copied := entry
	if entry.Layer != nil {
		layerCopy := *entry.Layer
		copied.Layer = &layerCopy
	}
	m.traces[entry.ID] = &copied
	return entry.ID, nil
}

func (m *memLedger) sortedTraces() []*ledger.TraceEntry {
	ids := make([]int64, 0, len(m.traces))
	for id := range m.traces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*ledger.TraceEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.traces[id])
	}
	return out
}

func (m *memLedger) TracesByConsumer(_ context.Context, invoiceID int64) ([]ledger.TraceEntry, error) {
	var out []ledger.TraceEntry
	for _, entry := range m.sortedTraces() {
		if entry.ConsumingInvoiceID == invoiceID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *memLedger) TracesByConsumerItem(_ context.Context, invoiceID, itemID int64) ([]ledger.TraceEntry, error) {
	var out []ledger.TraceEntry
	for _, entry := range m.sortedTraces() {
		if entry.ConsumingInvoiceID == invoiceID && entry.ItemID == itemID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *memLedger) RestoresByRelated(_ context.Context, traceID int64) ([]ledger.TraceEntry, error) {
	var out []ledger.TraceEntry
	for _, entry := range m.sortedTraces() {
		if entry.RelatedTraceID == traceID && entry.Type == ledger.EntryRestore {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *memLedger) DeleteTrace(_ context.Context, id int64) error {
	delete(m.traces, id)
	return nil
}

func (m *memLedger) AddTraceReturnedQty(_ context.Context, id int64, delta int64) error {
	if entry, ok := m.traces[id]; ok {
		entry.ReturnedQty += delta
	}
	return nil
}

func (m *memLedger) LayerUsage(_ context.Context, key ledger.LayerKey) (int64, int64, int64, error) {
	var refs, qty, blocking int64
	for _, entry := range m.sortedTraces() {
		if entry.Layer == nil || *entry.Layer != key || entry.Synthetic {
			continue
		}
		if entry.ConsumingInvoiceID == key.SourceInvoiceID {
			continue
		}
		refs++
		if entry.Type == ledger.EntryConsume {
			qty += entry.Qty - entry.ReturnedQty
		}
		if blocking == 0 || entry.ConsumingInvoiceID < blocking {
			blocking = entry.ConsumingInvoiceID
		}
	}
	return refs, qty, blocking, nil
}

var _ ledger.Store = (*memLedger)(nil)

// memRental is an in-memory rental.Store.
type memRental struct {
	rented   map[int64]*rental.RentedItem
	counters map[int64]rental.Counter
	nextID   int64
}

func newMemRental() *memRental {
	return &memRental{rented: make(map[int64]*rental.RentedItem), counters: make(map[int64]rental.Counter)}
}

func (m *memRental) InsertRented(_ context.Context, item rental.RentedItem) (int64, error) {
	m.nextID++
	item.ID = m.nextID
	m.rented[item.ID] = &item
	return item.ID, nil
}

func (m *memRental) RentedForUpdate(_ context.Context, id int64) (rental.RentedItem, bool, error) {
	item, ok := m.rented[id]
	if !ok {
		return rental.RentedItem{}, false, nil
	}
	return *item, true, nil
}

func (m *memRental) RentedByInvoice(_ context.Context, invoiceID int64) ([]rental.RentedItem, error) {
	var ids []int64
	for id, item := range m.rented {
		if item.InvoiceID == invoiceID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []rental.RentedItem
	for _, id := range ids {
		out = append(out, *m.rented[id])
	}
	return out, nil
}

func (m *memRental) SetRentedStatus(_ context.Context, id int64, status rental.Status) error {
	item, ok := m.rented[id]
	if !ok {
		return rental.ErrNotFound
	}
	item.Status = status
	return nil
}

func (m *memRental) DeleteRentedByInvoice(_ context.Context, invoiceID int64) error {
	for id, item := range m.rented {
		if item.InvoiceID == invoiceID {
			delete(m.rented, id)
		}
	}
	return nil
}

func (m *memRental) CounterForUpdate(_ context.Context, itemID int64) (rental.Counter, error) {
	c, ok := m.counters[itemID]
	if !ok {
		return rental.Counter{ItemID: itemID}, nil
	}
	return c, nil
}

func (m *memRental) SetCounter(_ context.Context, c rental.Counter) error {
	m.counters[c.ItemID] = c
	return nil
}

var _ rental.Store = (*memRental)(nil)

// memRepo is an in-memory TxRepository.
type memRepo struct {
	ledger *memLedger
	rental *memRental

	invoices map[int64]*Invoice
	lines    map[int64]*Line
	warranty []WarrantyReturn
	requests map[int64]*PurchaseRequest
	edits    []TransferEdit

	items     map[int64]bool
	locations map[int64]bool

	nextInvoice int64
	nextLine    int64
	nextWR      int64
	nextPR      int64
	nextEdit    int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		ledger:    newMemLedger(),
		rental:    newMemRental(),
		invoices:  make(map[int64]*Invoice),
		lines:     make(map[int64]*Line),
		requests:  make(map[int64]*PurchaseRequest),
		items:     map[int64]bool{1: true, 2: true, 3: true},
		locations: map[int64]bool{10: true, 20: true, 30: true},
	}
}

func (m *memRepo) Ledger() ledger.Store { return m.ledger }
func (m *memRepo) Rental() rental.Store { return m.rental }

func (m *memRepo) InsertInvoice(_ context.Context, inv *Invoice) error {
	m.nextInvoice++
	inv.ID = m.nextInvoice
	header := *inv
	header.Lines = nil
	m.invoices[inv.ID] = &header
	return nil
}

func (m *memRepo) InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	stored, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	inv := *stored
	var lineIDs []int64
	for lid, line := range m.lines {
		if line.InvoiceID == id {
			lineIDs = append(lineIDs, lid)
		}
	}
	sort.Slice(lineIDs, func(i, j int) bool { return lineIDs[i] < lineIDs[j] })
	for _, lid := range lineIDs {
		inv.Lines = append(inv.Lines, *m.lines[lid])
	}
	return inv, nil
}

func (m *memRepo) UpdateInvoiceHeader(_ context.Context, inv Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrNotFound
	}
	header := inv
	header.Lines = nil
	m.invoices[inv.ID] = &header
	return nil
}

func (m *memRepo) DeleteInvoice(_ context.Context, id int64) error {
	if _, ok := m.invoices[id]; !ok {
		return ErrNotFound
	}
	delete(m.invoices, id)
	return nil
}

func (m *memRepo) InsertLine(_ context.Context, line *Line) error {
	m.nextLine++
	line.ID = m.nextLine
	copied := *line
	m.lines[line.ID] = &copied
	return nil
}

func (m *memRepo) UpdateLine(_ context.Context, line Line) error {
	if _, ok := m.lines[line.ID]; !ok {
		return ErrNotFound
	}
	copied := line
	m.lines[line.ID] = &copied
	return nil
}

func (m *memRepo) DeleteLine(_ context.Context, id int64) error {
	delete(m.lines, id)
	return nil
}

func (m *memRepo) DeleteLines(_ context.Context, invoiceID int64) error {
	for id, line := range m.lines {
		if line.InvoiceID == invoiceID {
			delete(m.lines, id)
		}
	}
	return nil
}

func (m *memRepo) AddLineReturnedQty(_ context.Context, lineID, delta int64) error {
	line, ok := m.lines[lineID]
	if !ok {
		return ErrNotFound
	}
	line.ReturnedQty += delta
	return nil
}

func (m *memRepo) LineForUpdate(_ context.Context, invoiceID, itemID, locationID int64) (Line, bool, error) {
	var ids []int64
	for id, line := range m.lines {
		if line.InvoiceID == invoiceID && line.ItemID == itemID && line.LocationID == locationID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return Line{}, false, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return *m.lines[ids[0]], true, nil
}

func (m *memRepo) ItemExists(_ context.Context, id int64) (bool, error) {
	return m.items[id], nil
}

func (m *memRepo) LocationExists(_ context.Context, id int64) (bool, error) {
	return m.locations[id], nil
}

func (m *memRepo) InsertWarrantyReturn(_ context.Context, wr *WarrantyReturn) error {
	m.nextWR++
	wr.ID = m.nextWR
	wr.CreatedAt = time.Now()
	m.warranty = append(m.warranty, *wr)
	return nil
}

func (m *memRepo) WarrantyReturnedQty(_ context.Context, invoiceID, itemID, locationID int64) (int64, error) {
	var total int64
	for _, wr := range m.warranty {
		if wr.InvoiceID == invoiceID && wr.ItemID == itemID && wr.LocationID == locationID {
			total += wr.Qty
		}
	}
	return total, nil
}

func (m *memRepo) DeleteWarrantyReturns(_ context.Context, invoiceID int64) error {
	kept := m.warranty[:0]
	for _, wr := range m.warranty {
		if wr.InvoiceID != invoiceID {
			kept = append(kept, wr)
		}
	}
	m.warranty = kept
	return nil
}

func (m *memRepo) InsertPurchaseRequest(_ context.Context, pr *PurchaseRequest) error {
	m.nextPR++
	pr.ID = m.nextPR
	copied := *pr
	m.requests[pr.InvoiceID] = &copied
	return nil
}

func (m *memRepo) PurchaseRequestForUpdate(_ context.Context, invoiceID int64) (PurchaseRequest, bool, error) {
	pr, ok := m.requests[invoiceID]
	if !ok {
		return PurchaseRequest{}, false, nil
	}
	return *pr, true, nil
}

func (m *memRepo) UpdatePurchaseRequestStatus(_ context.Context, id int64, status PurchaseRequestStatus) error {
	for _, pr := range m.requests {
		if pr.ID == id {
			pr.Status = status
			return nil
		}
	}
	return ErrNotFound
}

func (m *memRepo) DeletePurchaseRequest(_ context.Context, invoiceID int64) error {
	delete(m.requests, invoiceID)
	return nil
}

func (m *memRepo) InsertTransferEdit(_ context.Context, edit *TransferEdit) error {
	m.nextEdit++
	edit.ID = m.nextEdit
	m.edits = append(m.edits, *edit)
	return nil
}

func (m *memRepo) TransferEditsByInvoice(_ context.Context, transferInvoiceID int64) ([]TransferEdit, error) {
	var out []TransferEdit
	for _, edit := range m.edits {
		if edit.TransferInvoiceID == transferInvoiceID {
			out = append(out, edit)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteTransferEdits(_ context.Context, transferInvoiceID int64) error {
	kept := m.edits[:0]
	for _, edit := range m.edits {
		if edit.TransferInvoiceID != transferInvoiceID {
			kept = append(kept, edit)
		}
	}
	m.edits = kept
	return nil
}

var _ TxRepository = (*memRepo)(nil)
