package transport

// Envelope wraps every API response. Retryable marks errors a provider or client
// should resend unchanged.
type Envelope struct {
	Status    string      `json:"status"`
	Code      string      `json:"code,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Retryable bool        `json:"retryable,omitempty"`
	Meta      interface{} `json:"meta,omitempty"`
}

func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{Status: "success", Data: data, Meta: meta}
}

func NewError(code, message string, meta interface{}) Envelope {
	return Envelope{Status: "error", Code: code, Error: message, Meta: meta}
}

// NewRetryable is an error envelope for transient failures.
func NewRetryable(code, message string, meta interface{}) Envelope {
	e := NewError(code, message, meta)
	e.Retryable = true
	return e
}
