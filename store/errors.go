package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate")
	// ErrStatusConflict is returned when an order is no longer in the status
	// a guarded update expected.
	ErrStatusConflict = errors.New("order status changed")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("cart empty")
	// ErrInsufficientStock is returned when requested qty exceeds available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Shortage describes one order line that stock cannot cover.
type Shortage struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ShortageError lists every line of a checkout or payment that stock cannot
// cover. It matches ErrInsufficientStock with errors.Is.
type ShortageError struct {
	Items []Shortage
}

func (e *ShortageError) Error() string {
	names := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		names = append(names, fmt.Sprintf("%s (%d of %d)", s.Name, s.Available, s.Requested))
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}

func (e *ShortageError) Is(target error) bool { return target == ErrInsufficientStock }

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
