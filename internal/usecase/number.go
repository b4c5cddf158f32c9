package usecase

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const orderNumberPrefix = "ORD"

// NewOrderNumber builds a human readable order number: ORD, the timestamp
// down to the second, and four random uppercase alphanumerics. Uniqueness is
// probabilistic; the store rejects collisions.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return orderNumberPrefix + now.Format("20060102150405") + suffix
}
