// Package patterns implements Halo's read-only graph queries: shell
// network, registration mill, and circular-directorship detection. Each is
// a parameterized SQL query against *storage.DB run under a statement
// timeout (a context deadline), returning a Truncated flag rather than an
// error when a result cap is hit. A blown statement deadline returns the
// query's error and no partial result.
package patterns

import (
	"time"

	"github.com/halo-intel/halo/internal/storage"
)

// Config bounds query scope and latency, process-wide configuration read
// once at startup, the same shape as blocking.Caps/derive.Config.
type Config struct {
	StatementTimeout time.Duration
	MaxResults       int
}

// DefaultConfig targets shell-network queries completing under 10s at
// roughly 1.2M companies, with a generous statement timeout and a result
// cap large enough for an analyst review queue.
var DefaultConfig = Config{
	StatementTimeout: 10 * time.Second,
	MaxResults:       500,
}

// Detector runs the pattern queries against db.
type Detector struct {
	db  *storage.DB
	cfg Config
}

// New builds a Detector over db using cfg.
func New(db *storage.DB, cfg Config) *Detector {
	return &Detector{db: db, cfg: cfg}
}
