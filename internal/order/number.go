package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxNumberAttempts bounds how many order numbers Create tries before giving
// up on a collision.
const MaxNumberAttempts = 3

// NumberFunc produces a candidate order number.
type NumberFunc func() string

// NewNumber returns a millisecond timestamp followed by six upper-case hex
// characters, e.g. 1718000000123A1B2C3.
func NewNumber() string {
	return numberAt(time.Now())
}

func numberAt(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return strconv.FormatInt(t.UnixMilli(), 10) + strings.ToUpper(suffix)
}

// CreateResult reports how an order number was obtained. Attempts is 1 unless
// earlier candidates collided with existing orders.
type CreateResult struct {
	Number   string
	Attempts int
}
