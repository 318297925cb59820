package binance

import (
	"errors"
	"fmt"
)

// DataUnavailableError wraps transport or venue failures on read paths
// (klines, position, balance, price). The decision loop treats these as
// skip-this-cycle errors.
type DataUnavailableError struct {
	Op  string
	Err error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable (%s): %v", e.Op, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// OrderRejectedError wraps a venue order rejection, carrying the venue's
// reason string. State is left unchanged by the caller; retry is implicit
// via the next cycle.
type OrderRejectedError struct {
	Op     string
	Reason string
}

func (e *OrderRejectedError) Error() string {
	return fmt.Sprintf("order rejected (%s): %s", e.Op, e.Reason)
}

// IsDataUnavailable reports whether err is (or wraps) a DataUnavailableError.
func IsDataUnavailable(err error) bool {
	var e *DataUnavailableError
	return errors.As(err, &e)
}

// IsOrderRejected reports whether err is (or wraps) an OrderRejectedError.
func IsOrderRejected(err error) bool {
	var e *OrderRejectedError
	return errors.As(err, &e)
}
