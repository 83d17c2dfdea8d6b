package derive

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/halo-intel/halo/internal/model"
)

func intPtr(v int) *int { return &v }

func TestPersonRiskV1_CapsAtOne(t *testing.T) {
	in := PersonRiskInputs{
		DirectorshipCount:         6,
		ShellCompanyDirectorCount: 2,
		AvgCompanyVelocity:        3.0,
		VulnerableAreaCompanies:   true,
		DissolvedHistoryCount:     4,
		BirthYear:                 intPtr(2005),
	}
	score, factors := personRiskV1(in, DefaultConfig, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 1.0, score)
	assert.ElementsMatch(t, []string{
		riskFactorManyDirectorships,
		riskFactorShellCompanyDirector,
		riskFactorHighVelocityNetwork,
		riskFactorVulnerableAreaCompany,
		riskFactorDissolvedHistory,
		riskFactorYoungDirector,
	}, factors)
}

func TestPersonRiskV1_NoFactorsTriggered(t *testing.T) {
	in := PersonRiskInputs{
		DirectorshipCount:  1,
		AvgCompanyVelocity: 0.1,
		BirthYear:          intPtr(1970),
	}
	score, factors := personRiskV1(in, DefaultConfig, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, 0.0, score)
	assert.Empty(t, factors)
}

func TestPersonRiskV1_SingleFactorNotCapped(t *testing.T) {
	in := PersonRiskInputs{ShellCompanyDirectorCount: 1}
	score, factors := personRiskV1(in, DefaultConfig, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.InDelta(t, 0.3, score, 1e-9)
	assert.Equal(t, []string{riskFactorShellCompanyDirector}, factors)
}

func TestShellIndicatorsFor(t *testing.T) {
	cfg := DefaultConfig
	attrs := model.CompanyAttributes{
		LatestEmployees:        intPtr(0),
		LatestRevenue:          floatPtr(0),
		SNICodes:               []string{"70221"},
		DirectorChangeVelocity: 5.0,
	}
	got := shellIndicatorsFor(attrs, true, cfg)
	assert.ElementsMatch(t, []string{
		shellIndicatorLowHeadcount,
		shellIndicatorLowRevenue,
		shellIndicatorRegistrationHub,
		shellIndicatorShellProneSNI,
		shellIndicatorHighVelocity,
	}, got)
}

func TestShellIndicatorsFor_CleanCompanyHasNoTags(t *testing.T) {
	cfg := DefaultConfig
	attrs := model.CompanyAttributes{
		LatestEmployees:        intPtr(50),
		LatestRevenue:          floatPtr(10_000_000),
		SNICodes:               []string{"41200"},
		DirectorChangeVelocity: 0.3,
	}
	got := shellIndicatorsFor(attrs, false, cfg)
	assert.Empty(t, got)
}

func floatPtr(v float64) *float64 { return &v }

func TestDirectorChangeVelocity_CountsOnlyWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := 365 * 24 * time.Hour

	history := []model.Fact{
		{ValidFrom: now.Add(-10 * 24 * time.Hour)},  // inside window
		{ValidFrom: now.Add(-400 * 24 * time.Hour)}, // outside window
		{ValidFrom: now.Add(-30 * 24 * time.Hour)},  // inside window
	}
	got := directorChangeVelocity(history, now, window)
	assert.InDelta(t, 2.0, got, 1e-9)
}

func TestDirectorChangeVelocity_EmptyHistoryIsZero(t *testing.T) {
	got := directorChangeVelocity(nil, time.Now(), 365*24*time.Hour)
	assert.Equal(t, 0.0, got)
}

func TestCountCurrentFacts(t *testing.T) {
	supersededAt := time.Now()
	history := []model.Fact{
		{},
		{SupersededBy: uuidPtr(uuid.New())},
		{ValidTo: &supersededAt},
		{},
	}
	assert.Equal(t, 2, countCurrentFacts(history))
}

func uuidPtr(u uuid.UUID) *uuid.UUID { return &u }

func TestNetworkClustersFor_ConnectedComponentsShareALabel(t *testing.T) {
	a, b, c, isolated := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	edges := []graphEdge{
		{factID: uuid.New(), a: a, b: b},
		{factID: uuid.New(), a: b, b: c},
	}
	clusters := networkClustersFor([]uuid.UUID{a, b, c, isolated}, edges)

	assert.Equal(t, clusters[a], clusters[b])
	assert.Equal(t, clusters[b], clusters[c])
	assert.NotEqual(t, clusters[a], clusters[isolated])
}

func TestNetworkClustersFor_IsDeterministicAcrossEdgeOrder(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	edges1 := []graphEdge{{factID: uuid.New(), a: a, b: b}, {factID: uuid.New(), a: b, b: c}}
	edges2 := []graphEdge{{factID: uuid.New(), a: b, b: c}, {factID: uuid.New(), a: a, b: b}}

	c1 := networkClustersFor([]uuid.UUID{a, b, c}, edges1)
	c2 := networkClustersFor([]uuid.UUID{a, b, c}, edges2)
	assert.Equal(t, c1, c2)
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 0.0, average(nil))
	assert.InDelta(t, 2.0, average([]float64{1, 2, 3}), 1e-9)
}

func TestCurrentAndAllDirectedCompanies(t *testing.T) {
	current, past := uuid.New(), uuid.New()
	history := []model.Fact{
		{Object: &current},
		{Object: &past, SupersededBy: uuidPtr(uuid.New())},
		{Object: &current}, // duplicate, must dedupe
	}
	assert.ElementsMatch(t, []uuid.UUID{current}, currentDirectedCompanies(history))
	assert.ElementsMatch(t, []uuid.UUID{current, past}, allDirectedCompanies(history))
}
