package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"table_order/internal/menu"
	"table_order/internal/observable"
	"table_order/internal/socket"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrCartEmpty          = errors.New("cart empty")
	ErrTableNotRegistered = errors.New("table not registered")
	ErrNotConnected       = errors.New("not connected")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrItemNotFound       = errors.New("item not found")
	ErrStaleFetch         = errors.New("fetch superseded")
)

type MenuAPI interface {
	GetMenuItemsByCategory(ctx context.Context, category string) ([]menu.Item, error)
	CreateOrder(ctx context.Context, items []menu.Item, orderType menu.OrderType, tableID string) (map[string]any, error)
}

// Realtime is the read side and event streams of the session socket.
type Realtime interface {
	IsConnected() bool
	IsConnecting() bool
	SessionID() string
	TableID() string
	EndCurrentSession(ctx context.Context) error
	ManualReconnect(ctx context.Context) error
	OnConnection(fn func(socket.ConnectionEvent)) func()
	OnError(fn func(socket.ErrorEvent)) func()
	OnSessionStarted(fn func(socket.SessionStartedEvent)) func()
	OnSessionEnded(fn func(socket.SessionEndedEvent)) func()
	OnTableRegistered(fn func(socket.TableRegisteredEvent)) func()
}

// fetchTicket identifies one category fetch. Only the most recently issued
// ticket may write its result.
type fetchTicket struct {
	category string
	seq      uint64
}

// Store owns the menu cache and the mirrored session state. The cart is
// derived from the cache on every read.
type Store struct {
	api     MenuAPI
	rt      Realtime
	logger  *zap.Logger
	changes *observable.Stream[struct{}]

	mu         sync.Mutex
	categories []string
	active     int
	orderType  int
	cache      map[string][]menu.Item
	loading    bool
	inFlight   fetchTicket
	seq        uint64
	message    string
	// socketMessage marks message as set by a socket event, so a later
	// connect or session start may clear it.
	socketMessage bool
	sessionID     string
	tableID       string
	connected     bool

	unsubscribe []func()
	closeOnce   sync.Once
}

func New(api MenuAPI, rt Realtime, categories []string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	s := &Store{
		api:        api,
		rt:         rt,
		logger:     logger,
		changes:    observable.NewStream[struct{}]("store", logger),
		categories: append([]string(nil), categories...),
		cache:      make(map[string][]menu.Item),
		connected:  rt.IsConnected(),
		sessionID:  rt.SessionID(),
		tableID:    rt.TableID(),
	}
	s.attach()
	return s
}

// Subscribe registers fn to run after every state change.
func (s *Store) Subscribe(fn func()) func() {
	return s.changes.Subscribe(func(struct{}) { fn() })
}

// Close releases the socket subscriptions. It is safe to call twice.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()

		for _, fn := range unsubscribe {
			fn()
		}
		s.logger.Debug("store closed", zap.Int("released", len(unsubscribe)))
	})
}

// FetchCategory loads category and replaces its cache entry, carrying
// counts over by item id. If another fetch was issued while this one was
// pending, the result is dropped and ErrStaleFetch returned.
func (s *Store) FetchCategory(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ErrUnknownCategory
	}

	s.mu.Lock()
	s.seq++
	ticket := fetchTicket{category: category, seq: s.seq}
	s.inFlight = ticket
	s.loading = true
	s.mu.Unlock()
	s.notify()

	items, err := s.api.GetMenuItemsByCategory(ctx, category)

	s.mu.Lock()
	if s.inFlight != ticket {
		current := s.inFlight.category
		s.mu.Unlock()
		s.logger.Debug("discarding stale fetch",
			zap.String("category", category),
			zap.String("current", current),
		)
		return ErrStaleFetch
	}
	s.inFlight = fetchTicket{}
	s.loading = false

	if err != nil {
		delete(s.cache, category)
		s.message = fmt.Sprintf("failed to load %s: %v", category, err)
		s.socketMessage = false
		s.mu.Unlock()
		s.logger.Warn("fetch failed", zap.String("category", category), zap.Error(err))
		s.notify()
		return fmt.Errorf("fetch %s: %w", category, err)
	}

	s.cache[category] = s.mergeLocked(category, items)
	count := len(s.cache[category])
	s.mu.Unlock()

	s.logger.Debug("category cached", zap.String("category", category), zap.Int("items", count))
	s.notify()
	return nil
}

// mergeLocked keeps only items belonging to category, one per id, with the
// count already held for that id anywhere in the cache.
func (s *Store) mergeLocked(category string, items []menu.Item) []menu.Item {
	counts := make(map[string]int)
	for _, cached := range s.cache {
		for _, item := range cached {
			if _, ok := counts[item.ID]; !ok {
				counts[item.ID] = item.Count
			}
		}
	}
	for _, item := range s.cache[category] {
		counts[item.ID] = item.Count
	}

	merged := make([]menu.Item, 0, len(items))
	for _, item := range menu.Dedupe(items) {
		if item.Category != category {
			s.logger.Warn("dropping item from other category",
				zap.String("item_id", item.ID),
				zap.String("category", item.Category),
				zap.String("requested", category),
			)
			continue
		}
		item.SetCount(counts[item.ID])
		merged = append(merged, item)
	}
	return merged
}

// SelectCategory makes the category at index active and fetches it.
func (s *Store) SelectCategory(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.categories) {
		s.mu.Unlock()
		return fmt.Errorf("%w: index %d", ErrUnknownCategory, index)
	}
	s.active = index
	category := s.categories[index]
	s.mu.Unlock()
	s.notify()

	return s.FetchCategory(ctx, category)
}

// Refresh refetches the active category.
func (s *Store) Refresh(ctx context.Context) error {
	category := s.ActiveCategory()
	if category == "" {
		return ErrUnknownCategory
	}
	return s.FetchCategory(ctx, category)
}

func (s *Store) SetOrderType(index int) error {
	if _, err := menu.OrderTypeAt(index); err != nil {
		return err
	}
	s.mu.Lock()
	s.orderType = index
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Store) Increment(id string) error {
	return s.updateItem(id, func(item *menu.Item) { item.SetCount(item.Count + 1) })
}

func (s *Store) Decrement(id string) error {
	return s.updateItem(id, func(item *menu.Item) { item.SetCount(item.Count - 1) })
}

func (s *Store) ToggleSelection(id string) error {
	return s.updateItem(id, func(item *menu.Item) { item.Toggle() })
}

// updateItem applies fn to the first cached copy of id and copies the
// resulting count to every other copy.
func (s *Store) updateItem(id string, fn func(*menu.Item)) error {
	s.mu.Lock()
	var updated *menu.Item
	for _, category := range s.orderedCategoriesLocked() {
		items := s.cache[category]
		for i := range items {
			if items[i].ID != id {
				continue
			}
			if updated == nil {
				fn(&items[i])
				updated = &items[i]
				continue
			}
			items[i].SetCount(updated.Count)
		}
	}
	s.mu.Unlock()

	if updated == nil {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	s.notify()
	return nil
}

// CancelOrder zeroes every count in every cached category.
func (s *Store) CancelOrder() {
	s.mu.Lock()
	s.clearCartLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) clearCartLocked() {
	for _, items := range s.cache {
		for i := range items {
			items[i].SetCount(0)
		}
	}
}

// PlaceOrder checks the cart, the table and the connection in that order,
// then submits the cart. The cart is cleared once the order is accepted.
func (s *Store) PlaceOrder(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	cart := s.cartLocked()
	tableID := s.tableID
	connected := s.connected
	orderType := menu.OrderTypes[s.orderType]
	s.mu.Unlock()

	switch {
	case len(cart) == 0:
		return nil, ErrCartEmpty
	case tableID == "":
		return nil, ErrTableNotRegistered
	case !connected:
		return nil, ErrNotConnected
	}

	resp, err := s.api.CreateOrder(ctx, cart, orderType, tableID)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	quantity, amount := menu.Totals(cart)
	s.logger.Info("order placed",
		zap.String("table_id", tableID),
		zap.String("order_type", string(orderType)),
		zap.Int("quantity", quantity),
		zap.String("amount", amount.StringFixed(2)),
	)
	s.CancelOrder()
	return resp, nil
}

func (s *Store) EndSession(ctx context.Context) error {
	if err := s.rt.EndCurrentSession(ctx); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

func (s *Store) Reconnect(ctx context.Context) error {
	if err := s.rt.ManualReconnect(ctx); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	return nil
}

func (s *Store) ClearError() {
	s.mu.Lock()
	s.message = ""
	s.socketMessage = false
	s.mu.Unlock()
	s.notify()
}

// Cart returns the items with a positive count, one per id, in category
// order.
func (s *Store) Cart() []menu.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked()
}

func (s *Store) cartLocked() []menu.Item {
	var items []menu.Item
	for _, category := range s.orderedCategoriesLocked() {
		for _, item := range s.cache[category] {
			if item.Count > 0 {
				items = append(items, item)
			}
		}
	}
	return menu.Dedupe(items)
}

// orderedCategoriesLocked lists configured categories first, then any other
// cached key in name order.
func (s *Store) orderedCategoriesLocked() []string {
	out := make([]string, 0, len(s.cache))
	known := make(map[string]struct{}, len(s.categories))
	for _, category := range s.categories {
		known[category] = struct{}{}
		if _, ok := s.cache[category]; ok {
			out = append(out, category)
		}
	}
	var extra []string
	for category := range s.cache {
		if _, ok := known[category]; !ok {
			extra = append(extra, category)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (s *Store) TotalQuantity() int {
	quantity, _ := menu.Totals(s.Cart())
	return quantity
}

func (s *Store) TotalAmount() decimal.Decimal {
	_, amount := menu.Totals(s.Cart())
	return amount
}

// Items returns a copy of the cached items for category.
func (s *Store) Items(category string) []menu.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]menu.Item(nil), s.cache[category]...)
}

func (s *Store) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...)
}

func (s *Store) ActiveCategory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active < 0 || s.active >= len(s.categories) {
		return ""
	}
	return s.categories[s.active]
}

func (s *Store) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Store) OrderType() menu.OrderType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return menu.OrderTypes[s.orderType]
}

func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError is the last absorbed error or notice, empty when none.
func (s *Store) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *Store) TableID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableID
}

func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Store) IsConnecting() bool {
	return s.rt.IsConnecting()
}

func (s *Store) notify() {
	s.changes.Publish(struct{}{})
}
