package patterns_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/patterns"
	"github.com/halo-intel/halo/internal/storage"
	"github.com/halo-intel/halo/migrations"
)

var (
	testDB  *storage.DB
	testDet *patterns.Detector
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

	testDet = patterns.New(testDB, patterns.DefaultConfig)

	code := m.Run()
	testDB.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createProvenance(t *testing.T, tx pgx.Tx) uuid.UUID {
	t.Helper()
	p, err := storage.CreateProvenanceTx(context.Background(), tx, model.Provenance{
		SourceKind:          model.SourceManualEntry,
		SourceID:            "test-fixture",
		ExtractionMethod:    "test",
		ExtractionTimestamp: time.Now().UTC(),
	})
	require.NoError(t, err)
	return p.ID
}

func createPerson(t *testing.T, name string) model.Entity {
	t.Helper()
	entity, err := testDB.CreateEntity(context.Background(), model.Entity{
		Kind:                 model.EntityPerson,
		CanonicalName:        name,
		ResolutionConfidence: 1.0,
		Status:               model.StatusActive,
	})
	require.NoError(t, err)
	return entity
}

// createCompany creates an ACTIVE company with the given headcount/revenue
// and registers registrationDate, used to exercise both ShellNetwork's size
// caps and RegistrationMill's age computation.
func createCompany(t *testing.T, name string, employees int, revenue float64, registrationDate time.Time, indicators []string) model.Entity {
	t.Helper()
	ctx := context.Background()
	var entity model.Entity
	err := testDB.BeginFunc(ctx, func(tx pgx.Tx) error {
		e, err := storage.CreateEntityTx(ctx, tx, model.Entity{
			Kind:                 model.EntityCompany,
			CanonicalName:        name,
			ResolutionConfidence: 1.0,
			Status:               model.StatusActive,
		})
		if err != nil {
			return err
		}
		entity = e
		emp := employees
		rev := revenue
		return storage.UpsertCompanyAttributesTx(ctx, tx, model.CompanyAttributes{
			EntityID:         e.ID,
			Status:           model.CompanyStatusActive,
			RegistrationDate: &registrationDate,
			LatestEmployees:  &emp,
			LatestRevenue:    &rev,
			ShellIndicators:  indicators,
			UpdatedAt:        time.Now().UTC(),
		})
	})
	require.NoError(t, err)
	return entity
}

func createDirectorOf(t *testing.T, person, company model.Entity) {
	t.Helper()
	ctx := context.Background()
	err := testDB.BeginFunc(ctx, func(tx pgx.Tx) error {
		provID := createProvenance(t, tx)
		obj := company.ID
		_, err := storage.CreateFactTx(ctx, tx, model.Fact{
			Subject:      person.ID,
			Predicate:    model.PredicateDirectorOf,
			Object:       &obj,
			ValidFrom:    time.Now().UTC(),
			Confidence:   1.0,
			ProvenanceID: provID,
		})
		return err
	})
	require.NoError(t, err)
}

func createRegisteredAt(t *testing.T, company, address model.Entity) {
	t.Helper()
	ctx := context.Background()
	err := testDB.BeginFunc(ctx, func(tx pgx.Tx) error {
		provID := createProvenance(t, tx)
		obj := address.ID
		_, err := storage.CreateFactTx(ctx, tx, model.Fact{
			Subject:      company.ID,
			Predicate:    model.PredicateRegisteredAt,
			Object:       &obj,
			ValidFrom:    time.Now().UTC(),
			Confidence:   1.0,
			ProvenanceID: provID,
		})
		return err
	})
	require.NoError(t, err)
}

func createAddress(t *testing.T, street string) model.Entity {
	t.Helper()
	entity, err := testDB.CreateEntity(context.Background(), model.Entity{
		Kind:                 model.EntityAddress,
		CanonicalName:        street,
		ResolutionConfidence: 1.0,
		Status:               model.StatusActive,
	})
	require.NoError(t, err)
	return entity
}

func TestShellNetwork_FindsPersonDirectingSeveralShellSizedCompanies(t *testing.T) {
	person := createPerson(t, "Shell Network Subject")
	for i := 0; i < 3; i++ {
		company := createCompany(t, fmt.Sprintf("shell-co-%d", i), 1, 1000, time.Now().UTC(), []string{"LOW_HEADCOUNT"})
		createDirectorOf(t, person, company)
	}

	result, err := testDet.ShellNetwork(context.Background(), patterns.DefaultShellNetworkParams)
	require.NoError(t, err)

	found := false
	for _, m := range result.Matches {
		if m.PersonID == person.ID {
			found = true
			assert.Len(t, m.CompanyIDs, 3)
			assert.Contains(t, m.ShellIndicators, "LOW_HEADCOUNT")
		}
	}
	assert.True(t, found, "expected %s in shell network results", person.ID)
}

func TestShellNetwork_ExcludesCompaniesAboveSizeCap(t *testing.T) {
	person := createPerson(t, "Large Company Director")
	for i := 0; i < 3; i++ {
		company := createCompany(t, fmt.Sprintf("large-co-%d", i), 500, 50_000_000, time.Now().UTC(), nil)
		createDirectorOf(t, person, company)
	}

	result, err := testDet.ShellNetwork(context.Background(), patterns.DefaultShellNetworkParams)
	require.NoError(t, err)
	for _, m := range result.Matches {
		assert.NotEqual(t, person.ID, m.PersonID)
	}
}

func TestRegistrationMill_FlagsAddressWithManyYoungCompanies(t *testing.T) {
	address := createAddress(t, "Mill Street 1")
	for i := 0; i < 12; i++ {
		company := createCompany(t, fmt.Sprintf("young-co-%d", i), 1, 0, time.Now().UTC().Add(-10*24*time.Hour), nil)
		createRegisteredAt(t, company, address)
	}

	result, err := testDet.RegistrationMill(context.Background(), patterns.DefaultRegistrationMillParams)
	require.NoError(t, err)

	found := false
	for _, m := range result.Matches {
		if m.AddressID == address.ID {
			found = true
			assert.Equal(t, 12, m.CompanyCount)
			assert.Less(t, m.MedianAgeDays, 180.0)
		}
	}
	assert.True(t, found, "expected %s in registration mill results", address.ID)
}

func TestRegistrationMill_IgnoresAddressBelowCompanyCountThreshold(t *testing.T) {
	address := createAddress(t, "Quiet Street 1")
	company := createCompany(t, "quiet-co", 1, 0, time.Now().UTC().Add(-10*24*time.Hour), nil)
	createRegisteredAt(t, company, address)

	result, err := testDet.RegistrationMill(context.Background(), patterns.DefaultRegistrationMillParams)
	require.NoError(t, err)
	for _, m := range result.Matches {
		assert.NotEqual(t, address.ID, m.AddressID)
	}
}

func TestCircularDirectorships_FindsTwoCompanyCycle(t *testing.T) {
	personA := createPerson(t, "Cycle Director A")
	companyX := createCompany(t, "cycle-co-x", 1, 0, time.Now().UTC(), nil)
	companyY := createCompany(t, "cycle-co-y", 1, 0, time.Now().UTC(), nil)

	// personA directs X, X (as a "person" stand-in via its own DIRECTOR_OF
	// fact) directs Y, Y directs back to personA, forming a length-3 cycle.
	createDirectorOf(t, personA, companyX)
	createDirectorOf(t, model.Entity{ID: companyX.ID}, companyY)
	createDirectorOf(t, model.Entity{ID: companyY.ID}, personA)

	result, err := testDet.CircularDirectorships(context.Background(), patterns.DefaultCircularDirectorshipsParams)
	require.NoError(t, err)

	found := false
	for _, m := range result.Matches {
		if m.Length == 3 {
			ids := map[string]bool{}
			for _, id := range m.EntityIDs {
				ids[id.String()] = true
			}
			if ids[personA.ID.String()] && ids[companyX.ID.String()] && ids[companyY.ID.String()] {
				found = true
			}
		}
	}
	assert.True(t, found, "expected a 3-entity cycle among %s, %s, %s", personA.ID, companyX.ID, companyY.ID)
}
