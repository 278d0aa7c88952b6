package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"table_order/internal/store"

	"go.uber.org/zap"
)

const helpText = `Commands:
  categories      list menu categories
  cat <n>         select category n and load it
  refresh         reload the active category
  items           list items of the active category
  add <id>        add one of item id to the cart
  remove <id>     remove one of item id from the cart
  toggle <id>     toggle selection of item id
  cart            show the cart and totals
  type <n>        set order type (` + "%s" + `)
  cancel          empty the cart
  order           place the order
  status          show connection, table and session
  end             end the current session
  reconnect       reconnect to the session service
  clear           dismiss the current message
  help            show this help
  exit, quit      leave`

type Runner struct {
	options Options
	logger  *zap.Logger
	store   *store.Store

	in  io.Reader
	out io.Writer

	outMu       sync.Mutex
	lastMessage string
	lastOnline  bool
}

func NewRunner(logger *zap.Logger, st *store.Store) *Runner {
	return &Runner{
		options: Options{Category: 1, OrderType: 1},
		logger:  logger.Named("cli"),
		store:   st,
		in:      os.Stdin,
		out:     os.Stdout,
	}
}

func (r *Runner) Execute() error {
	return r.run(os.Args[1:])
}

func (r *Runner) run(argv []string) error {
	fs := flag.NewFlagSet("table-order", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [command]\n", fs.Name())
		fs.PrintDefaults()
	}

	fs.BoolVar(&r.options.JSON, "json", r.options.JSON, "Output JSON format")
	fs.IntVar(&r.options.Category, "category", r.options.Category, "Category to open on start (1-based)")
	fs.IntVar(&r.options.OrderType, "type", r.options.OrderType, "Order type (1-based)")

	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fs.Usage()
			return nil
		}
		return err
	}
	r.options.Command = strings.TrimSpace(strings.Join(fs.Args(), " "))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.store.SetOrderType(r.options.OrderType - 1); err != nil {
		return fmt.Errorf("--type: %w", err)
	}
	if len(r.store.Categories()) > 0 {
		if err := r.store.SelectCategory(ctx, r.options.Category-1); err != nil && !errors.Is(err, store.ErrStaleFetch) {
			r.logger.Warn("initial category load failed", zap.Error(err))
		}
	}

	if r.options.Command != "" {
		return r.runOneShot(ctx, r.options.Command)
	}
	return r.runREPL(ctx)
}

func (r *Runner) runOneShot(ctx context.Context, line string) error {
	err := r.handleCommand(ctx, parseCommand(line))
	if errors.Is(err, errExit) {
		return nil
	}
	return err
}

func (r *Runner) runREPL(ctx context.Context) error {
	r.lastMessage = ""
	r.lastOnline = r.store.IsConnected()
	unsubscribe := r.store.Subscribe(r.printNotices)
	defer unsubscribe()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		reader := bufio.NewScanner(r.in)
		for reader.Scan() {
			select {
			case lines <- reader.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- reader.Err()
	}()

	r.println("Table order (type 'help' for commands, 'exit' to quit)")
	// a message from startup, such as a failed first category load
	r.printNotices()
	for {
		r.print("> ")

		var line string
		select {
		case <-ctx.Done():
			r.println("")
			return nil
		case err := <-scanErr:
			return err
		case line = <-lines:
		}

		cmd := parseCommand(line)
		if cmd.Name == "" {
			continue
		}

		err := r.handleCommand(ctx, cmd)
		switch {
		case errors.Is(err, errExit):
			return nil
		case err != nil:
			r.logger.Debug("command failed", zap.String("command", cmd.Name), zap.Error(err))
			r.println(friendlyError(err))
		}
	}
}

func (r *Runner) handleCommand(ctx context.Context, cmd command) error {
	r.logger.Debug("command received", zap.String("command", cmd.Name), zap.Strings("args", cmd.Args))

	switch cmd.Name {
	case "help":
		r.println(fmt.Sprintf(helpText, orderTypeList()))
		return nil
	case "exit", "quit":
		return errExit
	case "categories":
		snap := r.store.Snapshot()
		if r.options.JSON {
			return r.writeJSON(snap.Categories)
		}
		r.write(func(w io.Writer) { writeCategories(w, snap) })
		return nil
	case "cat":
		index, err := cmd.index("category")
		if err != nil {
			return err
		}
		if err := r.store.SelectCategory(ctx, index); err != nil {
			return err
		}
		return r.showItems()
	case "refresh":
		if err := r.store.Refresh(ctx); err != nil {
			return err
		}
		return r.showItems()
	case "items":
		return r.showItems()
	case "add", "remove", "toggle":
		id, err := cmd.arg("item id")
		if err != nil {
			return err
		}
		return r.mutate(cmd.Name, id)
	case "cart":
		return r.showCart()
	case "type":
		index, err := cmd.index("order type")
		if err != nil {
			return err
		}
		return r.store.SetOrderType(index)
	case "cancel":
		r.store.CancelOrder()
		return r.showCart()
	case "order":
		resp, err := r.store.PlaceOrder(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("order placed", zap.Any("response", resp))
		if r.options.JSON {
			return r.writeJSON(resp)
		}
		r.write(func(w io.Writer) { writeOrder(w, resp) })
		return nil
	case "status":
		snap := r.store.Snapshot()
		if r.options.JSON {
			return r.writeJSON(snap)
		}
		r.write(func(w io.Writer) { writeStatus(w, snap) })
		return nil
	case "end":
		return r.store.EndSession(ctx)
	case "reconnect":
		return r.store.Reconnect(ctx)
	case "clear":
		r.store.ClearError()
		return nil
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd.Name)
	}
}

func (r *Runner) mutate(action, id string) error {
	var err error
	switch action {
	case "add":
		err = r.store.Increment(id)
	case "remove":
		err = r.store.Decrement(id)
	case "toggle":
		err = r.store.ToggleSelection(id)
	}
	if err != nil {
		return err
	}
	return r.showCart()
}

func (r *Runner) showItems() error {
	category := r.store.ActiveCategory()
	if category == "" {
		return store.ErrUnknownCategory
	}
	items := r.store.Items(category)
	if r.options.JSON {
		return r.writeJSON(toResultItems(items))
	}
	r.write(func(w io.Writer) { writeItems(w, category, items) })
	return nil
}

func (r *Runner) showCart() error {
	snap := r.store.Snapshot()
	if r.options.JSON {
		return r.writeJSON(cartResult{
			Items:         toResultItems(snap.Cart),
			TotalQuantity: snap.TotalQuantity,
			TotalAmount:   snap.TotalAmount,
		})
	}
	r.write(func(w io.Writer) { writeCart(w, snap) })
	return nil
}

// printNotices runs on store changes, possibly from the socket's goroutines.
func (r *Runner) printNotices() {
	message := r.store.LastError()
	online := r.store.IsConnected()

	r.outMu.Lock()
	defer r.outMu.Unlock()

	if online != r.lastOnline {
		r.lastOnline = online
		if online {
			fmt.Fprintln(r.out, "\n* connected")
		} else {
			fmt.Fprintln(r.out, "\n* disconnected")
		}
	}
	if message != r.lastMessage {
		r.lastMessage = message
		if message != "" {
			fmt.Fprintf(r.out, "\n* %s\n", message)
		}
	}
}

func (r *Runner) write(fn func(w io.Writer)) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fn(r.out)
}

func (r *Runner) writeJSON(v any) error {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	return writeJSON(r.out, v)
}

func (r *Runner) println(text string) {
	r.write(func(w io.Writer) { fmt.Fprintln(w, text) })
}

func (r *Runner) print(text string) {
	r.write(func(w io.Writer) { fmt.Fprint(w, text) })
}
