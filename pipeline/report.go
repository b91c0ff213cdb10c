package pipeline

import "time"

// Report describes one delivery cycle. Delivered and Failed count messages,
// Fetched and Acknowledged count entries.
type Report struct {
	ID           string        `json:"id"`
	Mode         string        `json:"mode"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Fetched      int           `json:"fetched"`
	Delivered    int           `json:"delivered"`
	Failed       int           `json:"failed"`
	Acknowledged int           `json:"acknowledged"`
	Err          error         `json:"-"`
	Error        string        `json:"error,omitempty"`
}

// Result is ok, partial or error
func (r Report) Result() string {
	switch {
	case r.Err == nil:
		return "ok"
	case r.Delivered > 0:
		return "partial"
	default:
		return "error"
	}
}

// Stats are running totals since the process started
type Stats struct {
	Mode         string  `json:"mode"`
	Cycles       uint64  `json:"cycles"`
	FailedCycles uint64  `json:"failed_cycles"`
	Fetched      uint64  `json:"fetched"`
	Delivered    uint64  `json:"delivered"`
	Failed       uint64  `json:"failed"`
	Acknowledged uint64  `json:"acknowledged"`
	Last         *Report `json:"last,omitempty"`
}

func (s *Stats) add(r Report) {
	s.Cycles++
	if r.Err != nil {
		s.FailedCycles++
	}
	s.Fetched += uint64(r.Fetched)
	s.Delivered += uint64(r.Delivered)
	s.Failed += uint64(r.Failed)
	s.Acknowledged += uint64(r.Acknowledged)
	s.Last = &r
}
