package ledger

import (
	"context"
	"sort"
	"time"
)

// memStore is an in-memory Store used by engine tests.
type memStore struct {
	stock     map[[2]int64]int64
	layers    map[LayerKey]*CostLayer
	traces    map[int64]*TraceEntry
	nextTrace int64
}

func newMemStore() *memStore {
	return &memStore{
		stock:  make(map[[2]int64]int64),
		layers: make(map[LayerKey]*CostLayer),
		traces: make(map[int64]*TraceEntry),
	}
}

func (m *memStore) StockForUpdate(_ context.Context, itemID, locationID int64) (int64, error) {
	return m.stock[[2]int64{itemID, locationID}], nil
}

func (m *memStore) SetStock(_ context.Context, itemID, locationID, qty int64) error {
	m.stock[[2]int64{itemID, locationID}] = qty
	return nil
}

func (m *memStore) sortedLayers() []*CostLayer {
	keys := make([]LayerKey, 0, len(m.layers))
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
	out := make([]*CostLayer, 0, len(keys))
	for _, k := range keys {
		out = append(out, m.layers[k])
	}
	return out
}

func (m *memStore) LayersForUpdate(_ context.Context, itemID, locationID int64) ([]CostLayer, error) {
	var out []CostLayer
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

func (m *memStore) LayerForUpdate(_ context.Context, key LayerKey) (CostLayer, bool, error) {
	layer, ok := m.layers[key]
	if !ok {
		return CostLayer{}, false, nil
	}
	return *layer, true, nil
}

func (m *memStore) LayersBySource(_ context.Context, sourceInvoiceID int64) ([]CostLayer, error) {
	var out []CostLayer
	for _, layer := range m.sortedLayers() {
		if layer.Key.SourceInvoiceID == sourceInvoiceID {
			out = append(out, *layer)
		}
	}
	return out, nil
}

func (m *memStore) LatestLayer(_ context.Context, itemID int64) (CostLayer, bool, error) {
	var latest *CostLayer
	for _, layer := range m.sortedLayers() {
		if layer.Key.ItemID == itemID {
			latest = layer
		}
	}
	if latest == nil {
		return CostLayer{}, false, nil
	}
	return *latest, true, nil
}

func (m *memStore) InsertLayer(_ context.Context, layer CostLayer) error {
	if layer.CreatedAt.IsZero() {
		layer.CreatedAt = time.Now().UTC()
	}
	copied := layer
	m.layers[layer.Key] = &copied
	return nil
}

func (m *memStore) AdjustLayer(_ context.Context, key LayerKey, remainingDelta, originalDelta int64) error {
	layer, ok := m.layers[key]
	if !ok {
		return ErrLayerNotFound
	}
	layer.Remaining += remainingDelta
	layer.Original += originalDelta
	return nil
}

func (m *memStore) DeleteLayer(_ context.Context, key LayerKey) error {
	delete(m.layers, key)
	return nil
}

func (m *memStore) InsertTrace(_ context.Context, entry TraceEntry) (int64, error) {
	m.nextTrace++
	entry.ID = m.nextTrace
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	copied := entry
	if entry.Layer != nil {
		layerCopy := *entry.Layer
		copied.Layer = &layerCopy
	}
	m.traces[entry.ID] = &copied
	return entry.ID, nil
}

func (m *memStore) sortedTraces() []*TraceEntry {
	ids := make([]int64, 0, len(m.traces))
	for id := range m.traces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*TraceEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.traces[id])
	}
	return out
}

func (m *memStore) TracesByConsumer(_ context.Context, invoiceID int64) ([]TraceEntry, error) {
	var out []TraceEntry
	for _, entry := range m.sortedTraces() {
		if entry.ConsumingInvoiceID == invoiceID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *memStore) TracesByConsumerItem(_ context.Context, invoiceID, itemID int64) ([]TraceEntry, error) {
	var out []TraceEntry
	for _, entry := range m.sortedTraces() {
		if entry.ConsumingInvoiceID == invoiceID && entry.ItemID == itemID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *memStore) RestoresByRelated(_ context.Context, traceID int64) ([]TraceEntry, error) {
	var out []TraceEntry
	for _, entry := range m.sortedTraces() {
		if entry.RelatedTraceID == traceID && entry.Type == EntryRestore {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTrace(_ context.Context, id int64) error {
	delete(m.traces, id)
	return nil
}

func (m *memStore) AddTraceReturnedQty(_ context.Context, id int64, delta int64) error {
	if entry, ok := m.traces[id]; ok {
		entry.ReturnedQty += delta
	}
	return nil
}

func (m *memStore) LayerUsage(_ context.Context, key LayerKey) (int64, int64, int64, error) {
	var refs, qty, blocking int64
	for _, entry := range m.sortedTraces() {
		if entry.Layer == nil || *entry.Layer != key || entry.Synthetic {
			continue
		}
		if entry.ConsumingInvoiceID == key.SourceInvoiceID {
			continue
		}
		refs++
		if entry.Type == EntryConsume {
			qty += entry.Qty - entry.ReturnedQty
		}
		if blocking == 0 || entry.ConsumingInvoiceID < blocking {
			blocking = entry.ConsumingInvoiceID
		}
	}
	return refs, qty, blocking, nil
}

var _ Store = (*memStore)(nil)
