package store

import (
	"context"
	"sync"

	"table_order/internal/menu"
	"table_order/internal/observable"
	"table_order/internal/socket"

	"github.com/shopspring/decimal"
)

func newItem(id, category, price string) menu.Item {
	return menu.Item{
		ID:       id,
		Name:     id,
		Category: category,
		Price:    decimal.RequireFromString(price),
	}
}

type orderCall struct {
	items     []menu.Item
	orderType menu.OrderType
	tableID   string
}

type fakeAPI struct {
	mu       sync.Mutex
	items    map[string][]menu.Item
	errs     map[string]error
	gates    map[string][]chan struct{}
	started  chan string
	orders   []orderCall
	orderErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		items:   make(map[string][]menu.Item),
		errs:    make(map[string]error),
		gates:   make(map[string][]chan struct{}),
		started: make(chan string, 64),
	}
}

func (f *fakeAPI) setItems(category string, items ...menu.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[category] = items
}

func (f *fakeAPI) setErr(category string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[category] = err
}

// gate makes the next fetch of category block until the returned channel
// is closed.
func (f *fakeAPI) gate(category string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[category] = append(f.gates[category], ch)
	return ch
}

func (f *fakeAPI) GetMenuItemsByCategory(ctx context.Context, category string) ([]menu.Item, error) {
	f.mu.Lock()
	var gate chan struct{}
	if queue := f.gates[category]; len(queue) > 0 {
		gate = queue[0]
		f.gates[category] = queue[1:]
	}
	items := append([]menu.Item(nil), f.items[category]...)
	err := f.errs[category]
	f.mu.Unlock()

	select {
	case f.started <- category:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, items []menu.Item, orderType menu.OrderType, tableID string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	f.orders = append(f.orders, orderCall{items: items, orderType: orderType, tableID: tableID})
	return map[string]any{"order_number": "ORD_1"}, nil
}

func (f *fakeAPI) orderCalls() []orderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orderCall(nil), f.orders...)
}

type fakeRealtime struct {
	mu             sync.Mutex
	connected      bool
	connecting     bool
	sessionID      string
	tableID        string
	endErr         error
	endCalls       int
	reconnectCalls int

	connection      *observable.Stream[socket.ConnectionEvent]
	errs            *observable.Stream[socket.ErrorEvent]
	sessionStarted  *observable.Stream[socket.SessionStartedEvent]
	sessionEnded    *observable.Stream[socket.SessionEndedEvent]
	tableRegistered *observable.Stream[socket.TableRegisteredEvent]
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		connection:      observable.NewStream[socket.ConnectionEvent]("connection", nil),
		errs:            observable.NewStream[socket.ErrorEvent]("error", nil),
		sessionStarted:  observable.NewStream[socket.SessionStartedEvent]("session_started", nil),
		sessionEnded:    observable.NewStream[socket.SessionEndedEvent]("session_ended", nil),
		tableRegistered: observable.NewStream[socket.TableRegisteredEvent]("table_registered", nil),
	}
}

func (f *fakeRealtime) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeRealtime) IsConnecting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connecting
}

func (f *fakeRealtime) SessionID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

func (f *fakeRealtime) TableID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tableID
}

func (f *fakeRealtime) EndCurrentSession(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endCalls++
	return f.endErr
}

func (f *fakeRealtime) ManualReconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnectCalls++
	return nil
}

func (f *fakeRealtime) OnConnection(fn func(socket.ConnectionEvent)) func() {
	return f.connection.Subscribe(fn)
}

func (f *fakeRealtime) OnError(fn func(socket.ErrorEvent)) func() {
	return f.errs.Subscribe(fn)
}

func (f *fakeRealtime) OnSessionStarted(fn func(socket.SessionStartedEvent)) func() {
	return f.sessionStarted.Subscribe(fn)
}

func (f *fakeRealtime) OnSessionEnded(fn func(socket.SessionEndedEvent)) func() {
	return f.sessionEnded.Subscribe(fn)
}

func (f *fakeRealtime) OnTableRegistered(fn func(socket.TableRegisteredEvent)) func() {
	return f.tableRegistered.Subscribe(fn)
}

// connect flips the fake online and announces it the way the socket client
// does: state first, then the event.
func (f *fakeRealtime) connect(tableID string) {
	f.mu.Lock()
	f.connected = true
	f.tableID = tableID
	f.mu.Unlock()
	f.connection.Publish(socket.ConnectionEvent{Connected: true})
}

func (f *fakeRealtime) subscriberCount() int {
	return f.connection.Len() + f.errs.Len() + f.sessionStarted.Len() +
		f.sessionEnded.Len() + f.tableRegistered.Len()
}

func (f *fakeRealtime) registerTable(tableID string) {
	f.mu.Lock()
	f.tableID = tableID
	f.mu.Unlock()
	f.tableRegistered.Publish(socket.TableRegisteredEvent{TableID: tableID})
}
