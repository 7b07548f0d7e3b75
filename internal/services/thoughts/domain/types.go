package domain

import "time"

// Stats is a point-in-time snapshot of server activity
type Stats struct {
	Addr        string    `json:"addr"`
	StartedAt   time.Time `json:"started_at"`
	Buffered    int       `json:"buffered"`
	ActiveConns int64     `json:"active_conns"`
	TotalConns  int64     `json:"total_conns"`
	Received    int64     `json:"received"`
	Flushed     int64     `json:"flushed"`
	Dropped     int64     `json:"dropped"`
	Flushes     int64     `json:"flushes"`
}
