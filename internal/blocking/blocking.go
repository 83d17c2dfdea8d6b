// Package blocking produces a bounded candidate set of entities for a
// mention so the resolver's pairwise comparison stays cheap. Strategies run
// in order and the first exact hit short-circuits the rest; otherwise the
// block set is the union of the remaining strategies.
package blocking

import (
	"context"
	"fmt"

	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// Caps bounds each strategy's result size. Process-wide configuration, read
// once at startup and never mutated.
type Caps struct {
	PhoneticTrigramLimit    int
	NamePrefixBirthYearLimit int
	PostalCodePrefixLimit   int
	TrigramMinSimilarity    float64
}

// DefaultCaps is the baseline used when no override is configured.
var DefaultCaps = Caps{
	PhoneticTrigramLimit:     50,
	NamePrefixBirthYearLimit: 50,
	PostalCodePrefixLimit:    100,
	TrigramMinSimilarity:     0.3,
}

// Index holds the store handle and caps needed to compute a mention's
// candidate set.
type Index struct {
	db   *storage.DB
	caps Caps
}

// New builds an Index over db using caps.
func New(db *storage.DB, caps Caps) *Index {
	return &Index{db: db, caps: caps}
}

// MentionInput is the subset of a Mention (plus its blind-index-keyed
// identifier, already computed by the caller) blocking needs.
type MentionInput struct {
	Kind           model.EntityKind
	NormalizedForm string
	BirthYear      *int
	PostalCode     string

	IdentifierKind  model.IdentifierKind
	IdentifierBlind string // empty if the mention carries no identifier
}

// Result is the candidate set blocking produced, and whether strategy 1
// (exact identifier) short-circuited the rest.
type Result struct {
	Candidates     []model.Entity
	ExactIdentifier bool
}

// Candidates computes the candidate entity set for in: an exact identifier
// match short-circuits everything else; otherwise it unions a
// phonetic/trigram name search, a name-prefix + birth-year search for
// persons, and a postal-code-prefix search for addresses.
func (idx *Index) Candidates(ctx context.Context, in MentionInput) (Result, error) {
	if in.IdentifierBlind != "" {
		ids, err := idx.db.FindEntitiesByBlindIndex(ctx, in.IdentifierKind, in.IdentifierBlind)
		if err != nil {
			return Result{}, fmt.Errorf("blocking: exact identifier lookup: %w", err)
		}
		if len(ids) > 0 {
			e, err := idx.db.GetEntity(ctx, ids[0])
			if err != nil {
				return Result{}, fmt.Errorf("blocking: fetch exact-identifier entity: %w", err)
			}
			return Result{Candidates: []model.Entity{e}, ExactIdentifier: true}, nil
		}
	}

	seen := map[string]model.Entity{}
	add := func(entities []model.Entity) {
		for _, e := range entities {
			seen[e.ID.String()] = e
		}
	}

	trigramQuery := PhoneticCode(in.NormalizedForm)
	trigramCandidates, err := idx.db.SearchEntitiesByTrigram(ctx, in.Kind, trigramQuery, idx.caps.TrigramMinSimilarity, idx.caps.PhoneticTrigramLimit)
	if err != nil {
		return Result{}, fmt.Errorf("blocking: phonetic/trigram search: %w", err)
	}
	add(trigramCandidates)

	if in.Kind == model.EntityPerson && in.BirthYear != nil {
		prefix := namePrefix(in.NormalizedForm, 4)
		prefixCandidates, err := idx.db.SearchEntitiesByName(ctx, in.Kind, prefix, idx.caps.NamePrefixBirthYearLimit)
		if err != nil {
			return Result{}, fmt.Errorf("blocking: name-prefix search: %w", err)
		}
		for _, e := range prefixCandidates {
			attrs, err := idx.db.GetPersonAttributes(ctx, e.ID)
			if err != nil {
				continue
			}
			if attrs.BirthYear != nil && *attrs.BirthYear == *in.BirthYear {
				seen[e.ID.String()] = e
			}
		}
	}

	if in.Kind == model.EntityAddress && len(in.PostalCode) >= 3 {
		prefixCandidates, err := idx.db.SearchEntitiesByName(ctx, in.Kind, "", idx.caps.PostalCodePrefixLimit)
		if err != nil {
			return Result{}, fmt.Errorf("blocking: postal-code search: %w", err)
		}
		postalPrefix := in.PostalCode[:3]
		for _, e := range prefixCandidates {
			attrs, err := idx.db.GetAddressAttributes(ctx, e.ID)
			if err != nil {
				continue
			}
			if len(attrs.PostalCode) >= 3 && attrs.PostalCode[:3] == postalPrefix {
				seen[e.ID.String()] = e
			}
		}
	}

	out := make([]model.Entity, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	return Result{Candidates: out}, nil
}

// namePrefix returns the first n characters of name. Callers must already
// have passed name through full normalization (Mention.NormalizedForm is
// produced by internal/normalize before reaching the resolver), so the
// prefix is taken after normalization rather than before it.
func namePrefix(name string, n int) string {
	runes := []rune(name)
	if len(runes) <= n {
		return name
	}
	return string(runes[:n])
}
