// Package derive computes Halo's batch intelligence signals: risk scores,
// shell-company indicators, director-change velocity, address statistics,
// and network clusters. Every rule is a pure function of its inputs so
// re-running derivation on unchanged data reproduces the same output
// byte-for-byte; a changed output supersedes the prior derived fact rather
// than mutating it, the same supersession pattern the resolver's merge uses.
package derive

import (
	"time"

	"github.com/halo-intel/halo/internal/auditlog"
	"github.com/halo-intel/halo/internal/storage"
)

// Config holds the process-wide thresholds the rules reference, read once
// at startup and never mutated.
type Config struct {
	// person_risk_v1 thresholds.
	ManyDirectorshipsMin    int     // active directorship count strictly above this adds many_directorships
	HighVelocityThreshold   float64 // avg director-change velocity across a person's companies above this adds high_velocity_network
	DissolvedHistoryMin     int     // dissolved-company count strictly above this adds dissolved_history
	YoungDirectorMaxAge     int     // age strictly below this adds young_director

	// company_shell_indicators_v1 thresholds.
	LowHeadcountMax      int      // employees at or below this counts as low_headcount
	LowRevenueMax        float64  // revenue at or below this counts as low_revenue
	ShellProneSNICodes   []string // SNI codes treated as shell-prone industries
	ShellVelocityMin     float64  // director_change_velocity above this tags high_velocity

	// address_statistics_v1 / registration-hub threshold, shared with
	// company_shell_indicators_v1's registration_hub tag.
	RegistrationHubCompanyCount int

	// director_velocity_v1: the trailing window changes are counted over;
	// velocity is that count divided by the window length in years.
	// MinCompanyAgeYears is not read by any rule.
	VelocityWindow  time.Duration
	MinCompanyAgeYears float64

	// Concurrency cap for the errgroup fan-out within a single rule.
	RuleConcurrency int
}

// DefaultConfig picks reasonable values for every threshold (documented in
// DESIGN.md) where no figure is pinned elsewhere.
var DefaultConfig = Config{
	ManyDirectorshipsMin:        5,
	HighVelocityThreshold:       2.0,
	DissolvedHistoryMin:         3,
	YoungDirectorMaxAge:         25,
	LowHeadcountMax:             0,
	LowRevenueMax:               0,
	ShellProneSNICodes:          []string{"70221", "82990", "64209"},
	ShellVelocityMin:            2.0,
	RegistrationHubCompanyCount: 5,
	VelocityWindow:              3 * 365 * 24 * time.Hour,
	MinCompanyAgeYears:          1.0,
	RuleConcurrency:             8,
}

// Engine runs the derivation rules over the entity graph.
type Engine struct {
	db     *storage.DB
	audit  *auditlog.Writer
	config Config
}

// New builds an Engine bound to db and audit, using cfg for thresholds.
func New(db *storage.DB, audit *auditlog.Writer, cfg Config) *Engine {
	return &Engine{db: db, audit: audit, config: cfg}
}

// capScore clamps a weighted-sum risk score to [0, 1].
func capScore(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}
