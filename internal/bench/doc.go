// Package bench implements the slow-transaction workload: a backend-side
// sleep, a conditional counter increment and a readback of the new count,
// composed into one transaction so that concurrent callers stress the server
// without ever observing a partial update.
package bench
