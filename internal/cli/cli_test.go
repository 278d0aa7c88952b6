package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"table_order/internal/api"
	"table_order/internal/menu"
	"table_order/internal/socket"
	"table_order/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubAPI struct {
	items  map[string][]menu.Item
	orders int
}

func (a *stubAPI) GetMenuItemsByCategory(_ context.Context, category string) ([]menu.Item, error) {
	items, ok := a.items[category]
	if !ok {
		return nil, api.ErrNotFound
	}
	return append([]menu.Item(nil), items...), nil
}

func (a *stubAPI) CreateOrder(_ context.Context, items []menu.Item, orderType menu.OrderType, tableID string) (map[string]any, error) {
	a.orders++
	return map[string]any{"order_number": fmt.Sprintf("A-%d", a.orders), "status": "pending"}, nil
}

type stubRealtime struct {
	connected bool
	tableID   string
}

func (r *stubRealtime) IsConnected() bool  { return r.connected }
func (r *stubRealtime) IsConnecting() bool { return false }
func (r *stubRealtime) SessionID() string  { return "" }
func (r *stubRealtime) TableID() string    { return r.tableID }

func (r *stubRealtime) EndCurrentSession(_ context.Context) error {
	return socket.ErrNoSession
}

func (r *stubRealtime) ManualReconnect(_ context.Context) error {
	return nil
}

func (r *stubRealtime) OnConnection(func(socket.ConnectionEvent)) func() {
	return func() {}
}

func (r *stubRealtime) OnError(func(socket.ErrorEvent)) func() {
	return func() {}
}

func (r *stubRealtime) OnSessionStarted(func(socket.SessionStartedEvent)) func() {
	return func() {}
}

func (r *stubRealtime) OnSessionEnded(func(socket.SessionEndedEvent)) func() {
	return func() {}
}

func (r *stubRealtime) OnTableRegistered(func(socket.TableRegisteredEvent)) func() {
	return func() {}
}

func newTestRunner(t *testing.T, rt *stubRealtime) (*Runner, *bytes.Buffer) {
	t.Helper()

	apiStub := &stubAPI{items: map[string][]menu.Item{
		"Mains": {
			{ID: "m1", Name: "Burger", Category: "Mains", Price: decimal.RequireFromString("9.50")},
			{ID: "m2", Name: "Salad", Category: "Mains", Price: decimal.RequireFromString("7.25")},
		},
		"Drinks": {
			{ID: "d1", Name: "Lemonade", Category: "Drinks", Price: decimal.RequireFromString("3.00")},
		},
	}}

	logger := zaptest.NewLogger(t)
	st := store.New(apiStub, rt, []string{"Mains", "Drinks"}, logger)
	t.Cleanup(st.Close)

	var out bytes.Buffer
	runner := NewRunner(logger, st)
	runner.out = &out
	return runner, &out
}

func run(t *testing.T, r *Runner, line string) error {
	t.Helper()
	return r.handleCommand(context.Background(), parseCommand(line))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{line: "", want: command{}},
		{line: "   ", want: command{}},
		{line: "CART", want: command{Name: "cart", Args: []string{}}},
		{line: "  add  m1 ", want: command{Name: "add", Args: []string{"m1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCommand(tt.line))
		})
	}
}

func TestCommandIndex(t *testing.T) {
	idx, err := parseCommand("cat 2").index("category")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = parseCommand("cat").index("category")
	assert.ErrorContains(t, err, "missing category")

	_, err = parseCommand("cat 0").index("category")
	assert.ErrorContains(t, err, "positive number")

	_, err = parseCommand("cat two").index("category")
	assert.Error(t, err)
}

func TestFriendlyError(t *testing.T) {
	assert.Equal(t, "", friendlyError(nil))
	assert.Contains(t, friendlyError(store.ErrCartEmpty), "Cart is empty")
	assert.Contains(t, friendlyError(fmt.Errorf("wrap: %w", store.ErrNotConnected)), "reconnect")
	assert.Contains(t, friendlyError(api.ErrUnauthorized), "token")
	assert.Equal(t, "boom", friendlyError(errors.New("boom")))
}

func TestSelectCategoryListsItems(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{})

	require.NoError(t, run(t, r, "cat 1"))
	assert.Contains(t, out.String(), "Mains:")
	assert.Contains(t, out.String(), "Burger (id=m1, price=9.50)")

	out.Reset()
	require.NoError(t, run(t, r, "categories"))
	assert.Contains(t, out.String(), "* 1) Mains")
	assert.Contains(t, out.String(), "  2) Drinks")
}

func TestItemsBeforeLoad(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{})

	require.NoError(t, run(t, r, "items"))
	assert.Contains(t, out.String(), "Mains:")
	assert.Contains(t, out.String(), "- (nothing loaded)")
}

func TestAddAndCart(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{})
	require.NoError(t, run(t, r, "cat 1"))

	out.Reset()
	require.NoError(t, run(t, r, "add m1"))
	require.NoError(t, run(t, r, "add m1"))
	require.NoError(t, run(t, r, "add m2"))

	out.Reset()
	require.NoError(t, run(t, r, "cart"))
	assert.Contains(t, out.String(), "- Burger x2 = 19.00")
	assert.Contains(t, out.String(), "Total: 3 items, 26.25")

	require.NoError(t, run(t, r, "remove m1"))
	assert.Equal(t, 2, r.store.TotalQuantity())

	err := run(t, r, "add nope")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestCartJSON(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{})
	r.options.JSON = true
	require.NoError(t, run(t, r, "cat 2"))
	require.NoError(t, run(t, r, "add d1"))

	out.Reset()
	require.NoError(t, run(t, r, "cart"))

	var got cartResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "d1", got.Items[0].ID)
	assert.Equal(t, 1, got.TotalQuantity)
	assert.True(t, decimal.RequireFromString("3").Equal(got.TotalAmount))
}

func TestOrderPreconditions(t *testing.T) {
	r, _ := newTestRunner(t, &stubRealtime{})
	require.NoError(t, run(t, r, "cat 1"))

	assert.ErrorIs(t, run(t, r, "order"), store.ErrCartEmpty)

	require.NoError(t, run(t, r, "add m1"))
	assert.ErrorIs(t, run(t, r, "order"), store.ErrTableNotRegistered)
}

func TestOrderPlaced(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{connected: true, tableID: "T1"})
	require.NoError(t, run(t, r, "cat 1"))
	require.NoError(t, run(t, r, "type 2"))
	require.NoError(t, run(t, r, "add m2"))

	out.Reset()
	require.NoError(t, run(t, r, "order"))
	assert.Contains(t, out.String(), "Order placed.")
	assert.Contains(t, out.String(), "order_number: A-1")
	assert.Equal(t, 0, r.store.TotalQuantity())
}

func TestOrderTypeOutOfRange(t *testing.T) {
	r, _ := newTestRunner(t, &stubRealtime{})
	assert.ErrorIs(t, run(t, r, "type 9"), menu.ErrUnknownOrderType)
}

func TestStatus(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{connected: true, tableID: "T7"})

	require.NoError(t, run(t, r, "status"))
	assert.Contains(t, out.String(), "- connection: online")
	assert.Contains(t, out.String(), "- table: T7")
	assert.Contains(t, out.String(), "- session: -")
}

func TestEndWithoutSession(t *testing.T) {
	r, _ := newTestRunner(t, &stubRealtime{connected: true})
	assert.ErrorIs(t, run(t, r, "end"), socket.ErrNoSession)
}

func TestExitAndUnknown(t *testing.T) {
	r, _ := newTestRunner(t, &stubRealtime{})

	assert.ErrorIs(t, run(t, r, "quit"), errExit)
	assert.ErrorContains(t, run(t, r, "dance"), "unknown command")
}

func TestREPLPrintsNotices(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{})
	r.in = strings.NewReader("cat 1\nadd m1\nadd missing\nexit\n")

	require.NoError(t, r.runREPL(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Burger")
	assert.Contains(t, text, "No such item in the loaded menu")
}

func TestREPLShowsStartupMessage(t *testing.T) {
	r, out := newTestRunner(t, &stubRealtime{})
	require.Error(t, r.store.FetchCategory(context.Background(), "Soups"))
	r.in = strings.NewReader("exit\n")

	require.NoError(t, r.runREPL(context.Background()))
	assert.Contains(t, out.String(), "* failed to load Soups")
}
