// Package audit defines the append-only request log every handled request
// writes exactly one record to.
package audit

import (
	"context"
	"time"
)

// Record is one audit entry. ErrorMessage is nil on success. ResponseTime is
// milliseconds, measured end to end around the handler.
type Record struct {
	Timestamp    time.Time
	ClientIP     string
	Method       string
	URL          string
	StatusCode   int
	ResponseTime float64
	ResponseSize int
	UserAgent    string
	Referer      string
	ErrorMessage *string
}

// Sink receives audit records. Implementations must tolerate concurrent
// writers; the core never reads back.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}
