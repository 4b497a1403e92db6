package buyer

import (
	"time"
)

const (
	ErrKindFetch       = "fetch"
	ErrKindCircuitOpen = "circuit_open"
)

// ReportError describes why a tick ended early.
type ReportError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Report is emitted once per tick.
type Report struct {
	Tick         int64         `json:"tick"`
	Timestamp    time.Time     `json:"ts"`
	CurrentIDs   []string      `json:"current_ids"`
	KnownIDs     []string      `json:"known_ids"`
	NewIDs       []string      `json:"new_ids"`
	Error        *ReportError  `json:"error,omitempty"`
	Available    int           `json:"available"`
	OpenInvoices int           `json:"open_invoices"`
	Attempts     int           `json:"attempts"`
	Purchased    int           `json:"purchased"`
	Declined     int           `json:"declined"`
	Failed       int           `json:"failed"`
	Retired      []string      `json:"retired,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Interesting reports whether the tick carries anything beyond a routine poll.
func (r Report) Interesting() bool {
	return r.Error != nil || len(r.NewIDs) > 0 || r.Attempts > 0 || len(r.Retired) > 0
}

func (r Report) logAttrs() []any {
	attrs := []any{
		"tick", r.Tick,
		"current", len(r.CurrentIDs),
		"available", r.Available,
		"known", len(r.KnownIDs),
		"new", r.NewIDs,
		"open_invoices", r.OpenInvoices,
		"attempts", r.Attempts,
		"purchased", r.Purchased,
		"duration", r.Duration,
	}
	if r.Declined > 0 {
		attrs = append(attrs, "declined", r.Declined)
	}
	if r.Failed > 0 {
		attrs = append(attrs, "failed", r.Failed)
	}
	if len(r.Retired) > 0 {
		attrs = append(attrs, "retired", r.Retired)
	}
	if r.Error != nil {
		attrs = append(attrs, "error_kind", r.Error.Kind, "error", r.Error.Message)
	}
	return attrs
}
