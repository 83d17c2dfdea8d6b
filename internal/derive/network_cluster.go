package derive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// network_cluster_v1: a connected-components pass over every current
// DIRECTOR_OF and SHAREHOLDER_OF edge, persisting a cluster id onto every
// person and company (including singletons) and emitting a NETWORK_CLUSTER
// fact. Runs last, since it is the one rule whose fan-out cannot be
// parallel-across-entities in isolation — the clustering itself is computed
// once over the whole graph, then persistence is parallelized per entity.

type graphEdge struct {
	factID uuid.UUID
	a, b   uuid.UUID
}

func (e *Engine) runNetworkCluster(ctx context.Context) (RuleReport, error) {
	persons, err := e.db.ListActiveEntitiesByKind(ctx, model.EntityPerson)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list persons: %w", err)
	}
	companies, err := e.db.ListActiveEntitiesByKind(ctx, model.EntityCompany)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list companies: %w", err)
	}
	directorFacts, err := e.db.ListFactsByPredicate(ctx, model.PredicateDirectorOf)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list director_of facts: %w", err)
	}
	shareholderFacts, err := e.db.ListFactsByPredicate(ctx, model.PredicateShareholderOf)
	if err != nil {
		return RuleReport{}, fmt.Errorf("list shareholder_of facts: %w", err)
	}

	entities := make([]model.Entity, 0, len(persons)+len(companies))
	entities = append(entities, persons...)
	entities = append(entities, companies...)

	ids := make([]uuid.UUID, len(entities))
	for i, ent := range entities {
		ids[i] = ent.ID
	}

	var edges []graphEdge
	inputsByEntity := map[uuid.UUID][]uuid.UUID{}
	for _, f := range append(append([]model.Fact{}, directorFacts...), shareholderFacts...) {
		if f.Object == nil {
			continue
		}
		edges = append(edges, graphEdge{factID: f.ID, a: f.Subject, b: *f.Object})
		inputsByEntity[f.Subject] = append(inputsByEntity[f.Subject], f.ID)
		inputsByEntity[*f.Object] = append(inputsByEntity[*f.Object], f.ID)
	}

	clusters := networkClustersFor(ids, edges)

	return runOverEntities(ctx, "network_cluster_v1", entities, e.config.RuleConcurrency, func(ctx context.Context, ent model.Entity) error {
		return e.persistNetworkCluster(ctx, ent, clusters[ent.ID], inputsByEntity[ent.ID])
	}), nil
}

// networkClustersFor assigns each id in ids a stable cluster label from the
// connected component it belongs to under edges, a pure function so
// re-running over unchanged edges reproduces identical labels.
func networkClustersFor(ids []uuid.UUID, edges []graphEdge) map[uuid.UUID]string {
	uf := newUnionFind()
	for _, id := range ids {
		uf.find(id)
	}
	for _, e := range edges {
		uf.union(e.a, e.b)
	}
	clusters := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		clusters[id] = "cluster-" + uf.find(id).String()
	}
	return clusters
}

func (e *Engine) persistNetworkCluster(ctx context.Context, entity model.Entity, clusterID string, inputs []uuid.UUID) error {
	prior, hasPrior, err := e.db.GetCurrentFact(ctx, entity.ID, model.PredicateNetworkCluster, uuid.Nil)
	if err != nil {
		return fmt.Errorf("get current network-cluster fact: %w", err)
	}

	switch entity.Kind {
	case model.EntityPerson:
		attrs, err := e.db.GetPersonAttributes(ctx, entity.ID)
		if err != nil {
			return fmt.Errorf("get person attributes: %w", err)
		}
		if attrs.NetworkClusterID != nil && *attrs.NetworkClusterID == clusterID {
			return nil
		}
		cid := clusterID
		attrs.NetworkClusterID = &cid
		return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
			prov, err := derivedProvenance(ctx, tx, "network_cluster_v1", inputs)
			if err != nil {
				return fmt.Errorf("create provenance: %w", err)
			}
			if err := storage.UpsertPersonAttributesTx(ctx, tx, attrs); err != nil {
				return fmt.Errorf("upsert person attributes: %w", err)
			}
			return supersedeDerivedFact(ctx, tx, prior, hasPrior, model.Fact{
				Subject:        entity.ID,
				Predicate:      model.PredicateNetworkCluster,
				ValueText:      &cid,
				Confidence:     1.0,
				ProvenanceID:   prov.ID,
				DerivationRule: "network_cluster_v1",
				DerivedFrom:    inputs,
			})
		})
	case model.EntityCompany:
		attrs, err := e.db.GetCompanyAttributes(ctx, entity.ID)
		if err != nil {
			return fmt.Errorf("get company attributes: %w", err)
		}
		if attrs.NetworkClusterID != nil && *attrs.NetworkClusterID == clusterID {
			return nil
		}
		cid := clusterID
		attrs.NetworkClusterID = &cid
		return e.db.BeginFunc(ctx, func(tx pgx.Tx) error {
			prov, err := derivedProvenance(ctx, tx, "network_cluster_v1", inputs)
			if err != nil {
				return fmt.Errorf("create provenance: %w", err)
			}
			if err := storage.UpsertCompanyAttributesTx(ctx, tx, attrs); err != nil {
				return fmt.Errorf("upsert company attributes: %w", err)
			}
			return supersedeDerivedFact(ctx, tx, prior, hasPrior, model.Fact{
				Subject:        entity.ID,
				Predicate:      model.PredicateNetworkCluster,
				ValueText:      &cid,
				Confidence:     1.0,
				ProvenanceID:   prov.ID,
				DerivationRule: "network_cluster_v1",
				DerivedFrom:    inputs,
			})
		})
	default:
		return nil
	}
}

// unionFind is a standard union-by-deterministic-root disjoint-set, grounded
// in the resolver's own smaller-uuid-wins tie-break (internal/resolver/
// resolver.go's argmax, internal/resolver/merge.go's survivor selection) so
// cluster labeling is reproducible without depending on map iteration order.
type unionFind struct {
	parent map[uuid.UUID]uuid.UUID
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[uuid.UUID]uuid.UUID{}}
}

func (u *unionFind) find(x uuid.UUID) uuid.UUID {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		return x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b uuid.UUID) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if bytes.Compare(ra[:], rb[:]) < 0 {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
