package recorder

import "time"

// Op names a bench operation.
type Op string

const (
	OpRead Op = "read"
	OpTx   Op = "tx"
)

// OpRecord is one served bench operation. Captured files are replayed by the
// load runner, so the request fields (Op, ID, Delta, SleepMs) must be enough
// to reissue the call.
type OpRecord struct {
	Timestamp time.Time     `json:"timestamp"`
	RequestID string        `json:"requestId,omitempty"`
	Op        Op            `json:"op"`
	ID        int64         `json:"id"`
	Delta     int64         `json:"delta,omitempty"`
	SleepMs   int           `json:"sleepMs"`
	Status    int           `json:"status"`
	Kind      string        `json:"kind,omitempty"` // error kind, empty on success
	Count     int64         `json:"count,omitempty"`
	Latency   time.Duration `json:"latencyNs"`
}

// OK reports whether the operation succeeded.
func (r OpRecord) OK() bool {
	return r.Kind == "" && r.Status < 400
}
