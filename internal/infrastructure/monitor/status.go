package monitor

import "time"

// Status is the last check result. Redis only backs rate limiting, so it does not
// decide whether the service is online.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Online reports whether settlements can commit.
func (s Status) Online() bool {
	return s.PostgreSQL
}
