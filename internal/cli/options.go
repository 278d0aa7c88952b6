package cli

type Options struct {
	Command   string
	JSON      bool
	Category  int
	OrderType int
}
