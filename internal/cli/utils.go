package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"table_order/internal/api"
	"table_order/internal/menu"
	"table_order/internal/socket"
	"table_order/internal/store"
)

var errExit = errors.New("exit")

type command struct {
	Name string
	Args []string
}

func parseCommand(line string) command {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return command{}
	}
	return command{
		Name: strings.ToLower(fields[0]),
		Args: fields[1:],
	}
}

func (c command) arg(name string) (string, error) {
	if len(c.Args) == 0 {
		return "", fmt.Errorf("%s: missing %s", c.Name, name)
	}
	return strings.Join(c.Args, " "), nil
}

// index reads a 1-based index argument and returns it 0-based.
func (c command) index(name string) (int, error) {
	raw, err := c.arg(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s: %s must be a positive number", c.Name, name)
	}
	return n - 1, nil
}

func friendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, store.ErrCartEmpty):
		return "Cart is empty: add something first."
	case errors.Is(err, store.ErrTableNotRegistered):
		return "Table is not registered yet. Wait for the server or reconnect."
	case errors.Is(err, store.ErrNotConnected):
		return "Not connected to the session service. Try 'reconnect'."
	case errors.Is(err, store.ErrItemNotFound):
		return "No such item in the loaded menu. Use 'items' to list ids."
	case errors.Is(err, store.ErrUnknownCategory):
		return "No such category. Use 'categories' to list them."
	case errors.Is(err, menu.ErrUnknownOrderType):
		return "No such order type. Use 'status' to see the options."
	case errors.Is(err, socket.ErrNoSession):
		return "There is no active session to end."
	case errors.Is(err, api.ErrUnauthorized):
		return "Access denied: check the API token."
	case errors.Is(err, api.ErrRateLimited):
		return "Too many requests. Try again shortly."
	default:
		return err.Error()
	}
}

func orderTypeList() string {
	parts := make([]string, 0, len(menu.OrderTypes))
	for i, t := range menu.OrderTypes {
		parts = append(parts, fmt.Sprintf("%d=%s", i+1, t))
	}
	return strings.Join(parts, ", ")
}
