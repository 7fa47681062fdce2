package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-commerce/internal/catalog"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

var errInjected = errors.New("injected failure")

type memCartItem struct {
	ID        int64
	CartID    int64
	VariantID int64
	Quantity  int
}

// memoryState is everything checkout can touch. It is cloned before each
// transaction and restored when the callback fails.
type memoryState struct {
	carts     map[int64]int64
	cartItems map[int64]memCartItem
	skus      map[int64]string
	inventory map[int64]inventory.Level
	prices    map[int64][]catalog.Price
	orders    map[int64]Order
	items     map[int64]Item
	payments  map[int64]Payment
	shipments map[int64]Shipment
	nextID    int64
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		carts:     make(map[int64]int64, len(s.carts)),
		cartItems: make(map[int64]memCartItem, len(s.cartItems)),
		skus:      make(map[int64]string, len(s.skus)),
		inventory: make(map[int64]inventory.Level, len(s.inventory)),
		prices:    make(map[int64][]catalog.Price, len(s.prices)),
		orders:    make(map[int64]Order, len(s.orders)),
		items:     make(map[int64]Item, len(s.items)),
		payments:  make(map[int64]Payment, len(s.payments)),
		shipments: make(map[int64]Shipment, len(s.shipments)),
		nextID:    s.nextID,
	}
	for k, v := range s.carts {
		out.carts[k] = v
	}
	for k, v := range s.cartItems {
		out.cartItems[k] = v
	}
	for k, v := range s.skus {
		out.skus[k] = v
	}
	for k, v := range s.inventory {
		out.inventory[k] = v
	}
	for k, v := range s.prices {
		out.prices[k] = append([]catalog.Price(nil), v...)
	}
	for k, v := range s.orders {
		out.orders[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	for k, v := range s.payments {
		out.payments[k] = v
	}
	for k, v := range s.shipments {
		out.shipments[k] = v
	}
	return out
}

type memoryStore struct {
	mu      sync.Mutex
	state   memoryState
	failOn  string
	delay   time.Duration
	txCalls int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: memoryState{}.clone()}
}

func (m *memoryStore) id() int64 {
	m.state.nextID++
	return m.state.nextID
}

// addVariant registers a variant. A nil stock leaves it untracked.
func (m *memoryStore) addVariant(id int64, sku string, stock *int, prices ...catalog.Price) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.skus[id] = sku
	if stock != nil {
		m.state.inventory[id] = inventory.Level{VariantID: id, SKU: sku, Quantity: *stock, Available: *stock > 0, Tracked: true}
	}
	for _, p := range prices {
		p.ID = m.id()
		p.VariantID = id
		m.state.prices[id] = append(m.state.prices[id], p)
	}
}

func (m *memoryStore) addPrice(variantID int64, p catalog.Price) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	p.VariantID = variantID
	m.state.prices[variantID] = append(m.state.prices[variantID], p)
}

func (m *memoryStore) addToCart(userID, variantID int64, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cartID, ok := m.state.carts[userID]
	if !ok {
		cartID = m.id()
		m.state.carts[userID] = cartID
	}
	item := memCartItem{ID: m.id(), CartID: cartID, VariantID: variantID, Quantity: quantity}
	m.state.cartItems[item.ID] = item
}

func (m *memoryStore) setStock(variantID int64, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lvl := m.state.inventory[variantID]
	lvl.VariantID = variantID
	lvl.SKU = m.state.skus[variantID]
	lvl.Quantity = quantity
	lvl.Available = quantity > 0
	lvl.Tracked = true
	m.state.inventory[variantID] = lvl
}

func (m *memoryStore) snapshot() memoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memoryStore) stock(variantID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.inventory[variantID].Quantity
}

func (m *memoryStore) cartLines(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(userID)
}

func (m *memoryStore) countLocked(userID int64) int {
	cartID, ok := m.state.carts[userID]
	if !ok {
		return 0
	}
	n := 0
	for _, it := range m.state.cartItems {
		if it.CartID == cartID {
			n++
		}
	}
	return n
}

// WithTx serialises transactions, which is what the row locks do for
// checkouts sharing a variant.
func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	before := m.state.clone()
	err := fn(ctx, &memoryTx{m: m})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.state = before
		return err
	}
	return nil
}

func (m *memoryStore) CountCartItems(ctx context.Context, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countLocked(userID), nil
}

func (m *memoryStore) ListOrders(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.state.orders {
		if filter.UserID != 0 && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, m.assemble(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (m *memoryStore) GetOrder(ctx context.Context, id int64) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return m.assemble(o), nil
}

func (m *memoryStore) assemble(o Order) Order {
	ids := make([]int64, 0)
	for id, it := range m.state.items {
		if it.OrderID == o.ID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o.Items = append(o.Items, m.state.items[id])
	}
	for _, p := range m.state.payments {
		if p.OrderID == o.ID {
			p := p
			o.Payment = &p
		}
	}
	for _, s := range m.state.shipments {
		if s.OrderID == o.ID {
			s := s
			o.Shipment = &s
		}
	}
	return o
}

type memoryTx struct {
	m *memoryStore
}

func (t *memoryTx) fail(step string) error {
	if t.m.failOn == step {
		return errInjected
	}
	return nil
}

func (t *memoryTx) LockCart(ctx context.Context, userID int64) (int64, error) {
	if t.m.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(t.m.delay):
		}
	}
	id, ok := t.m.state.carts[userID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return id, nil
}

func (t *memoryTx) ListCartLines(ctx context.Context, cartID int64) ([]CartLine, error) {
	var lines []CartLine
	for _, it := range t.m.state.cartItems {
		if it.CartID == cartID {
			lines = append(lines, CartLine{ItemID: it.ID, VariantID: it.VariantID, SKU: t.m.state.skus[it.VariantID], Quantity: it.Quantity})
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines, nil
}

func (t *memoryTx) LockInventory(ctx context.Context, variantIDs []int64) (map[int64]inventory.Level, error) {
	out := make(map[int64]inventory.Level, len(variantIDs))
	for _, id := range variantIDs {
		if lvl, ok := t.m.state.inventory[id]; ok {
			out[id] = lvl
		}
	}
	return out, nil
}

func (t *memoryTx) ListPrices(ctx context.Context, variantIDs []int64) (map[int64][]catalog.Price, error) {
	out := make(map[int64][]catalog.Price, len(variantIDs))
	for _, id := range variantIDs {
		if ps, ok := t.m.state.prices[id]; ok {
			out[id] = append([]catalog.Price(nil), ps...)
		}
	}
	return out, nil
}

func (t *memoryTx) DecrementInventory(ctx context.Context, variantID int64, quantity int) (bool, error) {
	if err := t.fail("DecrementInventory"); err != nil {
		return false, err
	}
	lvl, ok := t.m.state.inventory[variantID]
	if !ok || lvl.Quantity < quantity {
		return false, nil
	}
	lvl.Quantity -= quantity
	lvl.Available = lvl.Quantity > 0
	t.m.state.inventory[variantID] = lvl
	return true, nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, o Order) (Order, error) {
	if err := t.fail("InsertOrder"); err != nil {
		return Order{}, err
	}
	o.ID = t.m.id()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	t.m.state.orders[o.ID] = o
	return o, nil
}

func (t *memoryTx) InsertItems(ctx context.Context, orderID int64, items []Item) ([]Item, error) {
	out := make([]Item, len(items))
	for i, it := range items {
		it.ID = t.m.id()
		it.OrderID = orderID
		t.m.state.items[it.ID] = it
		out[i] = it
	}
	return out, nil
}

func (t *memoryTx) ClearCart(ctx context.Context, cartID int64) error {
	for id, it := range t.m.state.cartItems {
		if it.CartID == cartID {
			delete(t.m.state.cartItems, id)
		}
	}
	return nil
}

func (t *memoryTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	if err := t.fail("InsertPayment"); err != nil {
		return Payment{}, err
	}
	p.ID = t.m.id()
	t.m.state.payments[p.ID] = p
	return p, nil
}

func (t *memoryTx) InsertShipment(ctx context.Context, s Shipment) (Shipment, error) {
	if err := t.fail("InsertShipment"); err != nil {
		return Shipment{}, err
	}
	s.ID = t.m.id()
	t.m.state.shipments[s.ID] = s
	return s, nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, ok := t.m.state.orders[id]
	if !ok {
		return Order{}, shared.ErrNotFound
	}
	return o, nil
}

func (t *memoryTx) SetOrderStatus(ctx context.Context, id int64, status Status) error {
	o, ok := t.m.state.orders[id]
	if !ok {
		return shared.ErrNotFound
	}
	o.Status = status
	t.m.state.orders[id] = o
	return nil
}

func (t *memoryTx) GetPaymentForUpdate(ctx context.Context, id int64) (Payment, error) {
	p, ok := t.m.state.payments[id]
	if !ok {
		return Payment{}, shared.ErrNotFound
	}
	return p, nil
}

func (t *memoryTx) GetPaymentByOrderForUpdate(ctx context.Context, orderID int64) (Payment, error) {
	for _, p := range t.m.state.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return Payment{}, shared.ErrNotFound
}

func (t *memoryTx) UpdatePayment(ctx context.Context, p Payment) (Payment, error) {
	if _, ok := t.m.state.payments[p.ID]; !ok {
		return Payment{}, shared.ErrNotFound
	}
	t.m.state.payments[p.ID] = p
	return p, nil
}

func (t *memoryTx) GetShipmentForUpdate(ctx context.Context, id int64) (Shipment, error) {
	s, ok := t.m.state.shipments[id]
	if !ok {
		return Shipment{}, shared.ErrNotFound
	}
	return s, nil
}

func (t *memoryTx) GetShipmentByOrderForUpdate(ctx context.Context, orderID int64) (Shipment, error) {
	for _, s := range t.m.state.shipments {
		if s.OrderID == orderID {
			return s, nil
		}
	}
	return Shipment{}, shared.ErrNotFound
}

func (t *memoryTx) UpdateShipment(ctx context.Context, s Shipment) (Shipment, error) {
	if _, ok := t.m.state.shipments[s.ID]; !ok {
		return Shipment{}, shared.ErrNotFound
	}
	t.m.state.shipments[s.ID] = s
	return s, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+key)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []Order
}

func (n *recordingNotifier) OrderPlaced(ctx context.Context, order Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
	return nil
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []int64
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, variantIDs ...int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, variantIDs...)
	return nil
}

type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }
func intPtr(v int) *int { return &v }
func at(v string) *time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		panic(err)
	}
	return &t
}
