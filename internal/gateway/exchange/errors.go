package exchange

import "errors"

var (
	// ErrNetwork marks transient transport failures (timeouts, resets, 5xx,
	// rate limits). Callers retry with a short backoff.
	ErrNetwork = errors.New("exchange network error")
	// ErrRejected marks an order the exchange refused, e.g. a post-only order
	// that would have crossed the spread.
	ErrRejected = errors.New("order rejected")
	// ErrOrderNotFound is mapped to StatusNotFound by adapters; it only
	// escapes from calls that have no status to report.
	ErrOrderNotFound = errors.New("order not found")
	// ErrCancelRace is logged when a cancel fails and the order must be
	// re-queried to learn what happened.
	ErrCancelRace = errors.New("cancel failed, order state re-queried")
	// ErrInsufficientQuantity means the rounded quantity is below the
	// symbol's minimum size; the execution is skipped.
	ErrInsufficientQuantity = errors.New("quantity below minimum order size")
	// ErrConfiguration is fatal at setup, before any order is placed.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrDuplicateOrder means an order with the same client id already
	// exists, i.e. an earlier attempt reached the exchange.
	ErrDuplicateOrder = errors.New("duplicate client order id")
	// ErrEmptyBook is returned when depth has no bid or no ask.
	ErrEmptyBook = errors.New("order book empty")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrEmptyBook)
}
