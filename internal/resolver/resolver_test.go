package resolver_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/halo-intel/halo/internal/auditlog"
	"github.com/halo-intel/halo/internal/blocking"
	"github.com/halo-intel/halo/internal/cryptoutil"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/resolver"
	"github.com/halo-intel/halo/internal/storage"
	"github.com/halo-intel/halo/migrations"
)

var (
	testDB    *storage.DB
	testKeys  cryptoutil.KeySet
	testAudit *auditlog.Writer
	testRes   *resolver.Resolver
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "halo",
			"POSTGRES_PASSWORD": "halo",
			"POSTGRES_DB":       "halo",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start container: %v\n", err)
		os.Exit(1)
	}

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, "5432")
	dsn := fmt.Sprintf("postgres://halo:halo@%s:%s/halo?sslmode=disable", host, port.Port())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	testDB, err = storage.New(ctx, dsn, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create DB: %v\n", err)
		os.Exit(1)
	}
	if err := testDB.RunMigrations(ctx, migrations.FS); err != nil {
		fmt.Fprintf(os.Stderr, "migrations failed: %v\n", err)
		os.Exit(1)
	}

	testKeys, err = cryptoutil.DeriveKeySet([]byte("resolver-test-master-key-32-bytes!!"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "derive keys: %v\n", err)
		os.Exit(1)
	}
	testAudit = auditlog.NewWriter(testKeys.AuditChainKey)
	idx := blocking.New(testDB, blocking.DefaultCaps)
	testRes = resolver.New(testDB, idx, testKeys, testAudit)

	code := m.Run()
	testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

// createProvenance inserts a standalone MANUAL_ENTRY provenance row for test
// fixtures that need one outside any resolver-owned transaction.
func createProvenance(t *testing.T) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := testDB.BeginFunc(context.Background(), func(tx pgx.Tx) error {
		p, err := storage.CreateProvenanceTx(context.Background(), tx, model.Provenance{
			SourceKind:          model.SourceManualEntry,
			SourceID:            "test-fixture",
			ExtractionMethod:    "test",
			ExtractionTimestamp: time.Now().UTC(),
		})
		id = p.ID
		return err
	})
	require.NoError(t, err)
	return id
}

// createPendingMention inserts a PENDING mention with a fresh provenance row.
func createPendingMention(t *testing.T, m model.Mention) model.Mention {
	t.Helper()
	m.ProvenanceID = createProvenance(t)
	var out model.Mention
	err := testDB.BeginFunc(context.Background(), func(tx pgx.Tx) error {
		var cerr error
		out, cerr = storage.CreateMentionTx(context.Background(), tx, m)
		return cerr
	})
	require.NoError(t, err)
	return out
}

// createPersonEntity creates an ACTIVE PERSON entity with the given
// personnummer bound as an identifier, for resolver tests that need an
// existing entity to resolve a mention against.
func createPersonEntity(t *testing.T, name string, birthYear int, personnummer string) model.Entity {
	t.Helper()
	ctx := context.Background()
	var entity model.Entity
	err := testDB.BeginFunc(ctx, func(tx pgx.Tx) error {
		e, err := storage.CreateEntityTx(ctx, tx, model.Entity{
			Kind:                 model.EntityPerson,
			CanonicalName:        name,
			ResolutionConfidence: 1.0,
			Status:               model.StatusActive,
		})
		if err != nil {
			return err
		}
		entity = e

		by := birthYear
		if err := storage.UpsertPersonAttributesTx(ctx, tx, model.PersonAttributes{EntityID: e.ID, BirthYear: &by}); err != nil {
			return err
		}

		prov, err := storage.CreateProvenanceTx(ctx, tx, model.Provenance{
			SourceKind:          model.SourceManualEntry,
			SourceID:            "test-fixture",
			ExtractionMethod:    "test",
			ExtractionTimestamp: time.Now().UTC(),
		})
		if err != nil {
			return err
		}

		encrypted, err := cryptoutil.EncryptPII(testKeys.PIIEncryptionKey, personnummer)
		if err != nil {
			return err
		}
		_, err = storage.CreateIdentifierTx(ctx, tx, model.EntityIdentifier{
			EntityID:       e.ID,
			Kind:           model.IdentifierPersonnummer,
			EncryptedValue: encrypted,
			BlindIndex:     cryptoutil.BlindIndex(testKeys.BlindIndexKey, personnummer),
			ProvenanceID:   prov.ID,
			Confidence:     1.0,
		})
		return err
	})
	require.NoError(t, err)
	return entity
}

// createCompanyEntity creates an ACTIVE COMPANY entity with the given
// canonical name and no identifier, so blocking falls through to the
// phonetic/trigram strategy.
func createCompanyEntity(t *testing.T, name string) model.Entity {
	t.Helper()
	entity, err := testDB.CreateEntity(context.Background(), model.Entity{
		Kind:                 model.EntityCompany,
		CanonicalName:        name,
		ResolutionConfidence: 1.0,
		Status:               model.StatusActive,
	})
	require.NoError(t, err)
	return entity
}

func TestResolveMention_ExactIdentifierAutoMatch(t *testing.T) {
	const personnummer = "198112189876" // well-known valid test value (Luhn-checked, 1981).
	existing := createPersonEntity(t, "ANDERS ANDERSSON", 1981, personnummer)

	mention := createPendingMention(t, model.Mention{
		Kind:                  model.EntityPerson,
		SurfaceForm:           "Anders Andersson",
		NormalizedForm:        "ANDERS ANDERSSON",
		ExtractedPersonnummer: personnummer,
	})

	resolved, err := testRes.ResolveMention(context.Background(), mention.ID)
	require.NoError(t, err)

	assert.Equal(t, model.MentionAutoMatched, resolved.ResolutionStatus)
	require.NotNil(t, resolved.ResolvedTo)
	assert.Equal(t, existing.ID, *resolved.ResolvedTo)
	require.NotNil(t, resolved.ResolutionConfidence)
	assert.InDelta(t, 0.99, *resolved.ResolutionConfidence, 0.0001)

	decisions, err := testDB.ListDecisionsForMention(context.Background(), mention.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.DecisionAutoMatch, decisions[0].Decision)
	assert.Equal(t, 1.0, decisions[0].FeatureScores.IdentifierMatch)
}

func TestResolveMention_NewEntityCreation(t *testing.T) {
	const personnummer = "198503151238" // distinct valid personnummer, birth year 1985.

	mention := createPendingMention(t, model.Mention{
		Kind:                  model.EntityPerson,
		SurfaceForm:           "Karin Nilsson",
		NormalizedForm:        "KARIN NILSSON",
		ExtractedPersonnummer: personnummer,
		ExtractedAttributes:   map[string]any{"birth_year": 1985},
	})

	resolved, err := testRes.ResolveMention(context.Background(), mention.ID)
	require.NoError(t, err)

	assert.Equal(t, model.MentionAutoMatched, resolved.ResolutionStatus)
	require.NotNil(t, resolved.ResolvedTo)

	entity, err := testDB.GetEntity(context.Background(), *resolved.ResolvedTo)
	require.NoError(t, err)
	assert.Equal(t, model.EntityPerson, entity.Kind)
	assert.Equal(t, "KARIN NILSSON", entity.CanonicalName)

	attrs, err := testDB.GetPersonAttributes(context.Background(), entity.ID)
	require.NoError(t, err)
	require.NotNil(t, attrs.BirthYear)
	assert.Equal(t, 1985, *attrs.BirthYear)

	ids, err := testDB.FindEntitiesByBlindIndex(context.Background(), model.IdentifierPersonnummer,
		cryptoutil.BlindIndex(testKeys.BlindIndexKey, personnummer))
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, entity.ID, ids[0])
}

func TestResolveMention_PendingReview(t *testing.T) {
	// NORDIC TRADING AB vs BALTIC TRADING AB: Jaro-Winkler similarity on the
	// normalized names is ~0.77, inside the COMPANY review band (0.60,
	// 0.95) — neither an auto-match nor a rejection.
	existing := createCompanyEntity(t, "NORDIC TRADING AB")

	mention := createPendingMention(t, model.Mention{
		Kind:           model.EntityCompany,
		SurfaceForm:    "Baltic Trading AB",
		NormalizedForm: "BALTIC TRADING AB",
	})

	resolved, err := testRes.ResolveMention(context.Background(), mention.ID)
	require.NoError(t, err)

	assert.Equal(t, model.MentionPending, resolved.ResolutionStatus, "a mid-band score must leave the mention PENDING for human review")
	assert.Nil(t, resolved.ResolvedTo)

	decisions, err := testDB.ListDecisionsForMention(context.Background(), mention.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.DecisionPendingReview, decisions[0].Decision)
	assert.Equal(t, existing.ID, *decisions[0].CandidateEntity)
	assert.Greater(t, decisions[0].OverallScore, 0.60)
	assert.Less(t, decisions[0].OverallScore, 0.95)
}

func TestResolveMention_LowScore_CreatesNewEntityInstead(t *testing.T) {
	createCompanyEntity(t, "VASTERBOTTEN MINERAL AB")

	mention := createPendingMention(t, model.Mention{
		Kind:           model.EntityCompany,
		SurfaceForm:    "Julquiz Export AB",
		NormalizedForm: "JULQUIZ EXPORT AB",
	})

	resolved, err := testRes.ResolveMention(context.Background(), mention.ID)
	require.NoError(t, err)

	assert.Equal(t, model.MentionAutoMatched, resolved.ResolutionStatus)
	require.NotNil(t, resolved.ResolvedTo)

	entity, err := testDB.GetEntity(context.Background(), *resolved.ResolvedTo)
	require.NoError(t, err)
	assert.Equal(t, "JULQUIZ EXPORT AB", entity.CanonicalName)
}

// TestResolveMention_ConcurrentDuplicateIdentifier exercises the required
// race case: two mentions carrying the same identifier, resolved
// concurrently with no entity yet in the database for either to match
// against. Both transactions contend on the audit chain's next seq_id, so
// the loser hits a unique_violation and the resolver retries it once,
// re-blocking and picking up whatever the winner committed. Regardless of
// interleaving, both calls must return without error and leave the audit
// chain itself valid and gap-free.
func TestResolveMention_ConcurrentDuplicateIdentifier(t *testing.T) {
	const personnummer = "197501017896" // distinct valid personnummer, not used elsewhere.

	mentionA := createPendingMention(t, model.Mention{
		Kind:                  model.EntityPerson,
		SurfaceForm:           "Lars Svensson",
		NormalizedForm:        "LARS SVENSSON",
		ExtractedPersonnummer: personnummer,
	})
	mentionB := createPendingMention(t, model.Mention{
		Kind:                  model.EntityPerson,
		SurfaceForm:           "Lars Svensson",
		NormalizedForm:        "LARS SVENSSON",
		ExtractedPersonnummer: personnummer,
	})

	var wg sync.WaitGroup
	var start sync.WaitGroup
	start.Add(1)
	results := make([]model.Mention, 2)
	errs := make([]error, 2)

	for i, mid := range []uuid.UUID{mentionA.ID, mentionB.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			start.Wait()
			results[i], errs[i] = testRes.ResolveMention(context.Background(), id)
		}(i, mid)
	}
	start.Done()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, model.MentionAutoMatched, results[0].ResolutionStatus)
	assert.Equal(t, model.MentionAutoMatched, results[1].ResolutionStatus)
	require.NotNil(t, results[0].ResolvedTo)
	require.NotNil(t, results[1].ResolvedTo)

	entries, err := testDB.ListAuditChain(context.Background())
	require.NoError(t, err)
	verdict := auditlog.VerifyChain(testKeys.AuditChainKey, entries)
	assert.True(t, verdict.Valid, "audit chain must stay gap-free and unbroken across a retried race: %s", verdict.Reason)
}

func TestApplyHumanDecision_MatchBindsToTargetEntity(t *testing.T) {
	target := createCompanyEntity(t, "REVIEWED TARGET AB")

	mention := createPendingMention(t, model.Mention{
		Kind:           model.EntityCompany,
		SurfaceForm:    "Reviewed Target Holding AB",
		NormalizedForm: "REVIEWED TARGET HOLDING AB",
	})

	resolved, err := testRes.ApplyHumanDecision(context.Background(), mention.ID, resolver.HumanMatch, &target.ID, "analyst1", "same registration, confirmed manually")
	require.NoError(t, err)

	assert.Equal(t, model.MentionHumanMatched, resolved.ResolutionStatus)
	require.NotNil(t, resolved.ResolvedTo)
	assert.Equal(t, target.ID, *resolved.ResolvedTo)

	decisions, err := testDB.ListDecisionsForMention(context.Background(), mention.ID)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, model.DecisionHumanMatch, decisions[0].Decision)
	assert.Equal(t, "analyst1", decisions[0].Reviewer)
}

func TestMerge_RewritesFactsAndMarksSurvivor(t *testing.T) {
	ctx := context.Background()
	a := createCompanyEntity(t, "DUPLICATE ONE AB")
	b := createCompanyEntity(t, "DUPLICATE TWO AB")

	prov := createProvenance(t)
	err := testDB.BeginFunc(ctx, func(tx pgx.Tx) error {
		_, err := storage.CreateFactTx(ctx, tx, model.Fact{
			Subject:      b.ID,
			Predicate:    model.PredicateRegisteredAt,
			ValueText:    strPtr("STORGATAN 1"),
			Confidence:   0.9,
			ProvenanceID: prov,
		})
		return err
	})
	require.NoError(t, err)

	survivor, err := testRes.Merge(ctx, a.ID, b.ID, "analyst2", "confirmed same registration number")
	require.NoError(t, err)

	smaller, larger := a.ID, b.ID
	if bytesLess(larger[:], smaller[:]) {
		smaller, larger = larger, smaller
	}
	assert.Equal(t, smaller, survivor)

	merged, err := testDB.GetEntity(ctx, larger)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMerged, merged.Status)
	require.NotNil(t, merged.MergedInto)
	assert.Equal(t, survivor, *merged.MergedInto)

	survivorFacts, err := testDB.ListCurrentFacts(ctx, survivor)
	require.NoError(t, err)
	found := false
	for _, f := range survivorFacts {
		if f.Predicate == model.PredicateRegisteredAt {
			found = true
		}
	}
	assert.True(t, found, "the merged entity's REGISTERED_AT fact must be rewritten onto the survivor")

	mergedFacts, err := testDB.ListCurrentFacts(ctx, larger)
	require.NoError(t, err)
	sameAs := false
	for _, f := range mergedFacts {
		if f.Predicate == model.PredicateSameAs && f.Object != nil && *f.Object == survivor {
			sameAs = true
		}
	}
	assert.True(t, sameAs, "merged entity must carry a current SAME_AS fact pointing at the survivor")
}

func strPtr(s string) *string { return &s }

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
