// Package halo is the public API for embedding the Halo entity-resolution
// and derived-intelligence core.
//
// Consumers construct an Engine and call its transport-agnostic operations
// directly — Halo does not own an HTTP server or any wire protocol; callers
// choose how (if at all) to expose these methods over a network:
//
//	engine, err := halo.New(
//	    halo.WithDatabaseURL(dsn),
//	    halo.WithLogger(logger),
//	    halo.WithEventHook(myAuditSink{}),
//	)
//	if err != nil { ... }
//	defer engine.Close()
//
//	view, err := engine.GetEntity(ctx, id)
//
// The import graph enforces a strict no-cycle rule: halo (root) imports
// internal/*, but internal/* never imports halo (root). Public types
// (EntityView, RelationshipGraph, ...) are standalone structs with no
// internal imports; conversion between them and internal/model lives here
// because this is the only file that sees both sides of the boundary.
package halo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"

	"github.com/halo-intel/halo/internal/auditlog"
	"github.com/halo-intel/halo/internal/blocking"
	"github.com/halo-intel/halo/internal/config"
	"github.com/halo-intel/halo/internal/cryptoutil"
	"github.com/halo-intel/halo/internal/derive"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/normalize"
	"github.com/halo-intel/halo/internal/patterns"
	"github.com/halo-intel/halo/internal/resolver"
	"github.com/halo-intel/halo/internal/storage"
	"github.com/halo-intel/halo/migrations"
)

// Engine is the Halo core's lifecycle and public entry point. Construct
// with New(). Engine has no public fields — use New()'s options to
// configure it.
type Engine struct {
	db       *storage.DB
	keys     cryptoutil.KeySet
	audit    *auditlog.Writer
	blocking *blocking.Index
	resolver *resolver.Resolver
	derive   *derive.Engine
	patterns *patterns.Detector
	hooks    []EventHook
	logger   *slog.Logger
	version  string
}

// New initializes the Halo core: it connects to the database, runs
// migrations, derives the cryptographic key set, and wires the resolver,
// derivation engine, and pattern detector. It does not start any
// background loop — callers that want the nightly derivation pass or the
// batch resolver loop run them explicitly (see cmd/halo for the reference
// driver).
func New(opts ...Option) (*Engine, error) {
	o := resolvedOptions{thresholds: map[EntityKind]resolver.Thresholds{}}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present; production deployments won't have one.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}

	version := o.version
	if version == "" {
		version = "dev"
	}
	logger.Info("halo starting", "version", version)

	masterKey := o.masterKey
	if len(masterKey) == 0 {
		masterKey, err = os.ReadFile(cfg.MasterKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read master key: %w", err)
		}
	}
	keys, err := cryptoutil.DeriveKeySet(masterKey)
	if err != nil {
		return nil, fmt.Errorf("derive key set: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	if !cfg.SkipEmbeddedMigrations {
		if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close()
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	auditWriter := auditlog.NewWriter(keys.AuditChainKey)

	caps := blocking.Caps{
		PhoneticTrigramLimit:     cfg.PhoneticTrigramLimit,
		NamePrefixBirthYearLimit: cfg.NamePrefixBirthYearLimit,
		PostalCodePrefixLimit:    cfg.PostalCodePrefixLimit,
		TrigramMinSimilarity:     cfg.TrigramMinSimilarity,
	}
	if o.blockingCapsSet {
		caps = o.blockingCaps
	}
	blockingIdx := blocking.New(db, caps)

	res := resolver.New(db, blockingIdx, keys, auditWriter)
	for kind, t := range map[EntityKind]resolver.Thresholds{
		EntityPerson:  {AutoMatch: cfg.PersonAutoMatch, HumanReviewMin: cfg.PersonHumanReviewMin},
		EntityCompany: {AutoMatch: cfg.CompanyAutoMatch, HumanReviewMin: cfg.CompanyHumanReviewMin},
		EntityAddress: {AutoMatch: cfg.AddressAutoMatch, HumanReviewMin: cfg.AddressHumanReviewMin},
	} {
		res.WithThresholds(toModelKind(kind), t)
	}
	for kind, t := range o.thresholds {
		res.WithThresholds(toModelKind(kind), t)
	}

	deriveCfg := derive.DefaultConfig
	if o.deriveConfigSet {
		deriveCfg = o.deriveConfig
	}
	deriveEngine := derive.New(db, auditWriter, deriveCfg)

	patternsCfg := patterns.Config{
		StatementTimeout: cfg.PatternStatementTimeout,
		MaxResults:       cfg.PatternMaxResults,
	}
	if o.patternsConfigSet {
		patternsCfg = o.patternsConfig
	}
	patternsDet := patterns.New(db, patternsCfg)

	return &Engine{
		db:       db,
		keys:     keys,
		audit:    auditWriter,
		blocking: blockingIdx,
		resolver: res,
		derive:   deriveEngine,
		patterns: patternsDet,
		hooks:    o.eventHooks,
		logger:   logger,
		version:  version,
	}, nil
}

// Close releases the database connection pool.
func (e *Engine) Close() {
	e.db.Close()
}

// RunNightlyDerivation runs the full derivation rule set once. Callers
// that want a periodic schedule drive this from their own ticker (see
// cmd/halo).
func (e *Engine) RunNightlyDerivation(ctx context.Context) (derive.Report, error) {
	return e.derive.RunNightly(ctx)
}

// ResolvePending runs one batch of pending-mention resolution (spec.md
// §4.4). Callers that want a periodic schedule drive this from their own
// ticker (see cmd/halo).
func (e *Engine) ResolvePending(ctx context.Context, limit int) (resolver.BatchResult, error) {
	return e.resolver.ResolvePending(ctx, limit)
}

func toModelKind(k EntityKind) model.EntityKind { return model.EntityKind(k) }

func fromModelKind(k model.EntityKind) EntityKind { return EntityKind(k) }

// GetEntity returns the curated, decrypted view of one entity.
func (e *Engine) GetEntity(ctx context.Context, id uuid.UUID) (EntityView, error) {
	entity, err := e.db.GetEntity(ctx, id)
	if err != nil {
		return EntityView{}, fmt.Errorf("halo: get entity: %w", err)
	}
	idents, err := e.db.ListIdentifiers(ctx, id)
	if err != nil {
		return EntityView{}, fmt.Errorf("halo: list identifiers: %w", err)
	}
	return e.toEntityView(entity, idents), nil
}

func (e *Engine) toEntityView(entity model.Entity, idents []model.EntityIdentifier) EntityView {
	view := EntityView{
		ID:                   entity.ID,
		Kind:                 fromModelKind(entity.Kind),
		CanonicalName:        entity.CanonicalName,
		ResolutionConfidence: entity.ResolutionConfidence,
		Status:               string(entity.Status),
		MergedInto:           entity.MergedInto,
		CreatedAt:            entity.CreatedAt,
		UpdatedAt:            entity.UpdatedAt,
	}
	for _, ident := range idents {
		if ident.ValidTo != nil {
			continue // superseded; GetEntity surfaces only live identifiers
		}
		plaintext, err := cryptoutil.DecryptPII(e.keys.PIIEncryptionKey, ident.EncryptedValue)
		if err != nil {
			e.logger.Warn("halo: decrypt identifier failed", "entity_id", entity.ID, "error", err)
			continue
		}
		view.Identifiers = append(view.Identifiers, IdentifierView{
			Kind:       IdentifierKind(ident.Kind),
			Value:      plaintext,
			Confidence: ident.Confidence,
			ValidFrom:  ident.ValidFrom,
			ValidTo:    ident.ValidTo,
		})
	}
	return view
}

// LookupByIdentifier resolves entities currently bound to the given
// identifier. value is normalized the same way mention extraction
// normalizes it before the blind index is computed, so a raw personnummer
// with or without dashes resolves to the same entities.
func (e *Engine) LookupByIdentifier(ctx context.Context, kind IdentifierKind, value string) ([]EntityView, error) {
	normalizedValue, err := normalizeIdentifierValue(kind, value)
	if err != nil {
		return nil, fmt.Errorf("halo: normalize identifier: %w", err)
	}
	blindIndex := cryptoutil.BlindIndex(e.keys.BlindIndexKey, normalizedValue)

	ids, err := e.db.FindEntitiesByBlindIndex(ctx, model.IdentifierKind(kind), blindIndex)
	if err != nil {
		return nil, fmt.Errorf("halo: find by blind index: %w", err)
	}

	views := make([]EntityView, 0, len(ids))
	for _, id := range ids {
		view, err := e.GetEntity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("halo: hydrate entity %s: %w", id, err)
		}
		views = append(views, view)
	}
	return views, nil
}

// normalizeIdentifierValue mirrors internal/resolver.identifierForMention's
// normalization exactly, since the blind index stored alongside an entity's
// identifier was computed over that same normalized form.
func normalizeIdentifierValue(kind IdentifierKind, value string) (string, error) {
	switch kind {
	case IdentifierPersonnummer, IdentifierSamordningsnummer:
		pnr, err := normalize.ParsePersonnummer(value)
		if err != nil {
			return "", err
		}
		return pnr.Normalized, nil
	case IdentifierOrganisationsnummer:
		org, err := normalize.ParseOrganisationsnummer(value)
		if err != nil {
			return "", err
		}
		return org.Normalized, nil
	default:
		return value, nil
	}
}

// Relationships returns the bounded subgraph reachable from id within
// depth hops (clamped to [1,3]), optionally filtered to predicates, capped
// at maxNodes. Truncated is set when maxNodes was reached before the
// traversal frontier emptied.
func (e *Engine) Relationships(ctx context.Context, id uuid.UUID, depth int, predicates []string, maxNodes int) (RelationshipGraph, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}
	if maxNodes <= 0 {
		maxNodes = 200
	}

	predicateFilter := map[string]bool{}
	for _, p := range predicates {
		predicateFilter[p] = true
	}

	root, err := e.db.GetEntity(ctx, id)
	if err != nil {
		return RelationshipGraph{}, fmt.Errorf("halo: get root entity: %w", err)
	}

	visited := map[uuid.UUID]bool{id: true}
	nodes := []RelationshipNode{{ID: root.ID, Kind: fromModelKind(root.Kind), CanonicalName: root.CanonicalName, Depth: 0}}
	edgeSeen := map[RelationshipEdge]bool{}
	var edges []RelationshipEdge
	frontier := []uuid.UUID{id}
	truncated := false

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []uuid.UUID
		for _, current := range frontier {
			facts, err := e.db.ListCurrentFacts(ctx, current)
			if err != nil {
				return RelationshipGraph{}, fmt.Errorf("halo: list current facts for %s: %w", current, err)
			}
			for _, f := range facts {
				if f.Object == nil {
					continue // attribute fact, not a relationship edge
				}
				if len(predicateFilter) > 0 && !predicateFilter[string(f.Predicate)] {
					continue
				}

				other := f.Subject
				if other == current {
					other = *f.Object
				}

				edge := RelationshipEdge{Subject: f.Subject, Predicate: string(f.Predicate), Object: *f.Object}
				if !edgeSeen[edge] {
					edgeSeen[edge] = true
					edges = append(edges, edge)
				}

				if visited[other] {
					continue
				}
				if len(nodes) >= maxNodes {
					truncated = true
					continue
				}
				otherEntity, err := e.db.GetEntity(ctx, other)
				if err != nil {
					return RelationshipGraph{}, fmt.Errorf("halo: get related entity %s: %w", other, err)
				}
				visited[other] = true
				nodes = append(nodes, RelationshipNode{
					ID: otherEntity.ID, Kind: fromModelKind(otherEntity.Kind),
					CanonicalName: otherEntity.CanonicalName, Depth: d + 1,
				})
				next = append(next, other)
			}
		}
		frontier = next
	}

	return RelationshipGraph{Nodes: nodes, Edges: edges, Truncated: truncated}, nil
}

// Search ranks ACTIVE entities by name similarity, optionally restricted
// to kind. Halo uses pg_trgm similarity over canonical_name.
func (e *Engine) Search(ctx context.Context, name string, kind *EntityKind) ([]SearchMatch, error) {
	const minSimilarity = 0.3
	const limit = 50

	var entities []model.Entity
	var err error
	if kind != nil {
		entities, err = e.db.SearchEntitiesByTrigram(ctx, toModelKind(*kind), name, minSimilarity, limit)
	} else {
		entities, err = e.db.SearchEntitiesByTrigramAnyKind(ctx, name, minSimilarity, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("halo: search by trigram: %w", err)
	}

	matches := make([]SearchMatch, 0, len(entities))
	for _, entity := range entities {
		idents, err := e.db.ListIdentifiers(ctx, entity.ID)
		if err != nil {
			return nil, fmt.Errorf("halo: list identifiers for %s: %w", entity.ID, err)
		}
		matches = append(matches, SearchMatch{Entity: e.toEntityView(entity, idents), MatchedOn: "name_trigram"})
	}
	return matches, nil
}

// ReviewQueue returns mentions awaiting human review, optionally filtered
// to kind, alongside the candidate decisions recorded for each.
func (e *Engine) ReviewQueue(ctx context.Context, kind *EntityKind, limit int) ([]ReviewItem, error) {
	var modelKind model.EntityKind
	if kind != nil {
		modelKind = toModelKind(*kind)
	}
	mentions, err := e.db.ListReviewQueue(ctx, modelKind, limit)
	if err != nil {
		return nil, fmt.Errorf("halo: list review queue: %w", err)
	}

	items := make([]ReviewItem, 0, len(mentions))
	for _, m := range mentions {
		decisions, err := e.db.ListDecisionsForMention(ctx, m.ID)
		if err != nil {
			return nil, fmt.Errorf("halo: list decisions for mention %s: %w", m.ID, err)
		}
		items = append(items, ReviewItem{Mention: toMentionView(m), Decisions: toDecisionViews(decisions)})
	}
	return items, nil
}

func toMentionView(m model.Mention) MentionView {
	return MentionView{
		ID: m.ID, Kind: fromModelKind(m.Kind), SurfaceForm: m.SurfaceForm, NormalizedForm: m.NormalizedForm,
		ResolutionStatus: string(m.ResolutionStatus), ResolvedTo: m.ResolvedTo,
		ResolutionConfidence: m.ResolutionConfidence, CreatedAt: m.CreatedAt,
	}
}

func toDecisionViews(decisions []model.ResolutionDecision) []ResolutionDecisionView {
	out := make([]ResolutionDecisionView, len(decisions))
	for i, d := range decisions {
		out[i] = ResolutionDecisionView{CandidateEntity: d.CandidateEntity, OverallScore: d.OverallScore, Decision: string(d.Decision)}
	}
	return out
}

// SubmitDecision records a reviewer's decision on a pending mention,
// applying it through the resolver so the mutation and its audit entry
// commit atomically.
func (e *Engine) SubmitDecision(ctx context.Context, mentionID uuid.UUID, reviewer string, decision HumanDecision, target *uuid.UUID, justification string) (MentionView, error) {
	var kind resolver.HumanDecisionKind
	switch decision {
	case HumanDecisionMatch:
		kind = resolver.HumanMatch
	case HumanDecisionReject:
		kind = resolver.HumanReject
	case HumanDecisionNew:
		kind = resolver.HumanNew
	default:
		return MentionView{}, fmt.Errorf("halo: submit decision: unknown decision %q", decision)
	}

	mention, err := e.resolver.ApplyHumanDecision(ctx, mentionID, kind, target, reviewer, justification)
	if err != nil {
		return MentionView{}, fmt.Errorf("halo: apply human decision: %w", err)
	}

	e.notifyMentionResolved(ctx, mention)
	return toMentionView(mention), nil
}

func (e *Engine) notifyMentionResolved(ctx context.Context, m model.Mention) {
	if len(e.hooks) == 0 {
		return
	}
	event := MentionResolvedEvent{MentionID: m.ID, EntityID: m.ResolvedTo, Status: string(m.ResolutionStatus), Confidence: m.ResolutionConfidence}
	for _, h := range e.hooks {
		go func(h EventHook) {
			if err := h.OnMentionResolved(ctx, event); err != nil {
				e.logger.Warn("halo: event hook failed", "hook", fmt.Sprintf("%T", h), "error", err)
			}
		}(h)
	}
}

// DetectShellNetworks runs the shell-network pattern query.
func (e *Engine) DetectShellNetworks(ctx context.Context, params patterns.ShellNetworkParams) (patterns.ShellNetworkResult, error) {
	result, err := e.patterns.ShellNetwork(ctx, params)
	if err != nil {
		return patterns.ShellNetworkResult{}, fmt.Errorf("halo: detect shell networks: %w", err)
	}
	return result, nil
}

// DetectRegistrationMills runs the registration-mill pattern query.
func (e *Engine) DetectRegistrationMills(ctx context.Context, params patterns.RegistrationMillParams) (patterns.RegistrationMillResult, error) {
	result, err := e.patterns.RegistrationMill(ctx, params)
	if err != nil {
		return patterns.RegistrationMillResult{}, fmt.Errorf("halo: detect registration mills: %w", err)
	}
	return result, nil
}

// DetectCircularDirectorships runs the circular-directorship pattern query.
func (e *Engine) DetectCircularDirectorships(ctx context.Context, params patterns.CircularDirectorshipsParams) (patterns.CircularDirectorshipsResult, error) {
	result, err := e.patterns.CircularDirectorships(ctx, params)
	if err != nil {
		return patterns.CircularDirectorshipsResult{}, fmt.Errorf("halo: detect circular directorships: %w", err)
	}
	return result, nil
}

// VerifyAuditChain recomputes the audit chain's hash links from fromSeq to
// toSeq. fromSeq<=0 means "from genesis"; toSeq<=0 means "to the tip".
// When fromSeq > 1, one entry before fromSeq is fetched so the
// previous-hash link into the requested range can still be checked; when
// fromSeq <= 1 verification starts from the literal genesis hash.
func (e *Engine) VerifyAuditChain(ctx context.Context, fromSeq, toSeq int64) (AuditVerification, error) {
	startSeq := fromSeq
	if startSeq < 1 {
		startSeq = 1
	}

	fetchFrom := startSeq - 1
	if fetchFrom < 1 {
		fetchFrom = 0 // ListAuditChainRange treats <=0 as "from the start"
	}
	entries, err := e.db.ListAuditChainRange(ctx, fetchFrom, toSeq)
	if err != nil {
		return AuditVerification{}, fmt.Errorf("halo: list audit chain range: %w", err)
	}

	verifyFrom := startSeq
	prevHash := "GENESIS"
	if fetchFrom > 0 && len(entries) > 0 && entries[0].SeqID == fetchFrom {
		prevHash = entries[0].EntryHash
		entries = entries[1:]
	}

	result := auditlog.VerifyChainFrom(e.keys.AuditChainKey, verifyFrom, prevHash, entries)
	return AuditVerification{OK: result.Valid, FirstInvalidSeq: result.FirstInvalidSeq, Reason: result.Reason}, nil
}

// Ingest records every mention a SourceAdapter yields as PENDING and every
// fact it asserts directly, stopping at the first error; the mentions are
// resolved later by ResolvePending. Adapters must
// not write entities directly — Ingest is the only path from a
// SourceRecord into the resolver and the fact store. Adapters yield raw
// surface forms; Ingest normalizes each mention the same way
// internal/normalize does for every other entry point before handing it to
// storage, since external SourceAdapter implementers cannot import
// internal/normalize themselves.
func (e *Engine) Ingest(ctx context.Context, adapter SourceAdapter) (int, error) {
	var processed int
	for {
		record, ok, err := adapter.Next(ctx)
		if err != nil {
			return processed, fmt.Errorf("halo: adapter: %w", err)
		}
		if !ok {
			return processed, nil
		}
		if err := e.ingestRecord(ctx, record); err != nil {
			return processed, fmt.Errorf("halo: ingest record: %w", err)
		}
		processed++
	}
}

func (e *Engine) ingestRecord(ctx context.Context, rec SourceRecord) error {
	return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		prov, err := storage.CreateProvenanceTx(ctx, tx, model.Provenance{
			SourceKind:          model.SourceKind(rec.Provenance.SourceKind),
			SourceID:            rec.Provenance.SourceID,
			URL:                 rec.Provenance.URL,
			DocumentHash:        rec.Provenance.DocumentHash,
			ExtractionMethod:    rec.Provenance.ExtractionMethod,
			ExtractionTimestamp: rec.Provenance.ExtractionTimestamp,
			ExtractionSystemVer: rec.Provenance.ExtractionSystemVer,
		})
		if err != nil {
			return fmt.Errorf("create provenance: %w", err)
		}

		for _, min := range rec.Mentions {
			_, err := storage.CreateMentionTx(ctx, tx, model.Mention{
				Kind:                  toModelKind(min.Kind),
				SurfaceForm:           min.SurfaceForm,
				NormalizedForm:        normalizedFormFor(min.Kind, min.SurfaceForm),
				ExtractedPersonnummer: min.ExtractedPersonnummer,
				ExtractedOrgnummer:    min.ExtractedOrgnummer,
				ExtractedAttributes:   min.ExtractedAttributes,
				ProvenanceID:          prov.ID,
				DocumentLocation:      min.DocumentLocation,
			})
			if err != nil {
				return fmt.Errorf("create mention: %w", err)
			}
		}

		for _, fin := range rec.Facts {
			_, err := storage.CreateFactTx(ctx, tx, model.Fact{
				Subject:                fin.Subject,
				Predicate:              model.Predicate(fin.Predicate),
				Object:                 fin.Object,
				ValueText:              fin.ValueText,
				ValueInt:               fin.ValueInt,
				ValueFloat:             fin.ValueFloat,
				ValueDate:              fin.ValueDate,
				ValueBool:              fin.ValueBool,
				ValueJSON:              fin.ValueJSON,
				RelationshipAttributes: fin.RelationshipAttributes,
				ValidFrom:              fin.ValidFrom,
				Confidence:             fin.Confidence,
				ProvenanceID:           prov.ID,
			})
			if err != nil {
				return fmt.Errorf("create fact: %w", err)
			}
		}
		return nil
	})
}

// normalizedFormFor mirrors the normalization internal/resolver expects a
// mention to already carry (internal/model.Mention's NormalizedForm doc
// comment), dispatched on entity kind since each kind normalizes
// differently.
func normalizedFormFor(kind EntityKind, surfaceForm string) string {
	switch kind {
	case EntityCompany:
		normalized, _ := normalize.NormalizeCompanyName(surfaceForm)
		return normalized
	case EntityAddress:
		return normalize.ParseAddress(surfaceForm).Normalized
	default:
		return strings.ToUpper(strings.TrimSpace(surfaceForm))
	}
}
