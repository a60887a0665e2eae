package postgres

import "time"

// Config holds the pgxpool tuning knobs for the flow store. DSN is expected
// pre-built (pkg/config.PostgresConfig.DSN()) rather than reassembled here.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnectTimeout  time.Duration
	HealthCheckFreq time.Duration
}
