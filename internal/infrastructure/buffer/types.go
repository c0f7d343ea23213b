package buffer

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	EntityAudit = "audit"

	OperationAppend = "append"
)

// Priorities order the drain; lower keys sort first.
const (
	PriorityHigh   = 1
	PriorityNormal = 3
)

// ErrFull is returned when the buffer holds MaxSize items.
var ErrFull = errors.New("buffer: capacity reached")

// Item is a write parked while primary storage is unavailable.
type Item struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = PriorityNormal
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}
