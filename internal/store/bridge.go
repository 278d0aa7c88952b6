package store

import (
	"fmt"

	"table_order/internal/socket"

	"go.uber.org/zap"
)

func (s *Store) attach() {
	s.unsubscribe = []func(){
		s.rt.OnConnection(s.onConnection),
		s.rt.OnError(s.onError),
		s.rt.OnSessionStarted(s.onSessionStarted),
		s.rt.OnSessionEnded(s.onSessionEnded),
		s.rt.OnTableRegistered(s.onTableRegistered),
	}
}

// clearSocketMessageLocked drops a message raised by the socket. Messages
// from the store's own operations stay until ClearError.
func (s *Store) clearSocketMessageLocked() {
	if s.socketMessage {
		s.message = ""
		s.socketMessage = false
	}
}

// tableIDFrom prefers the socket's own view of the table id.
func (s *Store) tableIDFrom(fallback string) string {
	if tableID := s.rt.TableID(); tableID != "" {
		return tableID
	}
	return fallback
}

func (s *Store) onConnection(ev socket.ConnectionEvent) {
	tableID := s.rt.TableID()
	sessionID := s.rt.SessionID()

	s.mu.Lock()
	s.connected = ev.Connected
	s.tableID = tableID
	s.sessionID = sessionID
	if ev.Connected {
		s.clearSocketMessageLocked()
	}
	s.mu.Unlock()

	s.logger.Debug("connection changed", zap.Bool("connected", ev.Connected), zap.String("reason", ev.Reason))
	s.notify()
}

func (s *Store) onError(ev socket.ErrorEvent) {
	s.mu.Lock()
	s.message = ev.Message
	s.socketMessage = true
	s.mu.Unlock()
	s.notify()
}

func (s *Store) onSessionStarted(ev socket.SessionStartedEvent) {
	tableID := s.tableIDFrom(ev.TableID)

	s.mu.Lock()
	s.sessionID = ev.SessionID
	s.tableID = tableID
	s.clearSocketMessageLocked()
	s.mu.Unlock()
	s.notify()
}

func (s *Store) onSessionEnded(ev socket.SessionEndedEvent) {
	tableID := s.tableIDFrom("")

	s.mu.Lock()
	s.sessionID = ""
	s.tableID = tableID
	s.clearCartLocked()
	s.message = billSummary(ev.Bill)
	s.socketMessage = true
	s.mu.Unlock()

	s.logger.Info("session ended, cart cleared", zap.String("session_id", ev.SessionID))
	s.notify()
}

func (s *Store) onTableRegistered(ev socket.TableRegisteredEvent) {
	tableID := s.tableIDFrom(ev.TableID)

	s.mu.Lock()
	s.tableID = tableID
	s.mu.Unlock()
	s.notify()
}

func billSummary(bill *socket.Bill) string {
	if bill == nil {
		return "Session ended."
	}
	total := bill.Total.StringFixed(2)
	if bill.Currency != "" {
		total += " " + bill.Currency
	}
	return fmt.Sprintf("Session ended. Total: %s (%d items)", total, bill.ItemCount)
}
