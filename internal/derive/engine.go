package derive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// RuleReport summarizes one rule's pass over its input entities.
type RuleReport struct {
	Rule      string
	Attempted int
	Succeeded int
	Failed    int
}

// Report summarizes a full RunNightly pass, one RuleReport per rule in the
// order they ran.
type Report struct {
	Rules []RuleReport
}

// RunNightly runs every derivation rule once, in a fixed dependency order:
// address statistics and director velocity first (both read only
// mention/fact history, so they are mutually independent), then shell
// indicators (which reads both of their outputs — a registered address's
// registration_hub flag and a company's director_change_velocity — so it
// must run after them), then person risk (which reads shell indicators and
// velocity), and network clusters last.
//
// Each rule processes its entities in parallel, bounded by
// config.RuleConcurrency, one transaction per entity so a cancelled run
// commits whatever entities already finished. A single entity's failure is
// isolated — counted and logged, never propagated — the same isolation
// ResolvePending uses for mention batches.
func (e *Engine) RunNightly(ctx context.Context) (Report, error) {
	var report Report

	steps := []struct {
		name string
		run  func(context.Context) (RuleReport, error)
	}{
		{"address_statistics_v1", e.runAddressStatistics},
		{"director_velocity_v1", e.runDirectorVelocity},
		{"company_shell_indicators_v1", e.runShellIndicators},
		{"person_risk_v1", e.runPersonRisk},
		{"network_cluster_v1", e.runNetworkCluster},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("derive: %s: %w", step.name, err)
		}
		r, err := step.run(ctx)
		report.Rules = append(report.Rules, r)
		if err != nil {
			return report, fmt.Errorf("derive: %s: %w", step.name, err)
		}
		e.appendRuleAudit(ctx, r)
	}
	return report, nil
}

// appendRuleAudit records one audit entry summarizing a rule's pass rather
// than one per touched entity, since derivation can touch the whole graph.
// Best-effort: a failure here does not roll back the rule's own writes,
// which have already committed per-entity.
func (e *Engine) appendRuleAudit(ctx context.Context, r RuleReport) {
	store := storage.NewAuditStore(e.db)
	_, err := e.audit.Append(ctx, store, model.AuditEntry{
		EventType:  "derivation.rule_run",
		ActorType:  model.ActorSystem,
		ActorID:    "derive",
		TargetType: "rule",
		TargetID:   r.Rule,
		EventData: map[string]any{
			"attempted": r.Attempted,
			"succeeded": r.Succeeded,
			"failed":    r.Failed,
		},
	})
	if err != nil {
		slog.Default().Error("failed to append derivation audit entry", "rule", r.Rule, "error", err)
	}
}

// runOverEntities is the common per-rule fan-out shape: list entities,
// process each in its own transaction with bounded concurrency, isolate
// per-entity failures.
func runOverEntities(ctx context.Context, ruleName string, entities []model.Entity, concurrency int, process func(context.Context, model.Entity) error) RuleReport {
	report := RuleReport{Rule: ruleName, Attempted: len(entities)}
	if len(entities) == 0 {
		return report
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, ent := range entities {
		entity := ent
		g.Go(func() error {
			err := process(gctx, entity)
			mu.Lock()
			if err != nil {
				report.Failed++
				slog.Default().Warn("derivation rule failed for entity",
					"rule", ruleName, "entity_id", entity.ID.String(), "error", err)
			} else {
				report.Succeeded++
			}
			mu.Unlock()
			// A per-entity failure is isolated: always return nil so the
			// errgroup keeps processing the remaining entities.
			return nil
		})
	}
	_ = g.Wait()
	return report
}
