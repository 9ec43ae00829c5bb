package bench

// Item is a row of bench_items. Rows are seeded externally; this package
// only reads them and adjusts Count.
type Item struct {
	ID      int64  `db:"id" json:"id"`
	Payload string `db:"payload" json:"payload"`
	Count   int64  `db:"cnt" json:"count"`
}

// IncrementRequest asks for Delta to be added to the count of row ID.
// Delta may be negative or zero.
type IncrementRequest struct {
	ID    int64 `json:"id"`
	Delta int64 `json:"delta"`
}

// ReadResult is the response of ReadWithDelay.
type ReadResult struct {
	ID          int64  `json:"id"`
	Payload     string `json:"payload"`
	Count       int64  `json:"count"`
	SleepMillis int    `json:"sleepMs"`
}

// IncrementResult is the response of IncrementInTransaction. Count is the
// value read back inside the same transaction after the increment.
type IncrementResult struct {
	ID          int64 `json:"id"`
	Count       int64 `json:"count"`
	Delta       int64 `json:"delta"`
	SleepMillis int   `json:"sleepMs"`
}
