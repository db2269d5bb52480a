package errs

import (
	"errors"
	"fmt"
)

var ErrUserNotFound = errors.New("user not found")
var ErrInvalidToken = errors.New("invalid token")
var ErrLoginAlreadyExists = errors.New("login already exists")
var ErrOrderNotFound = errors.New("order not found")
var ErrProductNotFound = errors.New("product not found")
var ErrProductInactive = errors.New("product is inactive")
var ErrCapacityNotConfigured = errors.New("capacity not configured")
var ErrPaymentNotVisible = errors.New("payment not visible yet")

// CapacityExceededError reports how many units are still available for the
// product on the requested weekday.
type CapacityExceededError struct {
	ProductID int
	Remaining int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded for product %d, remaining %d", e.ProductID, e.Remaining)
}

