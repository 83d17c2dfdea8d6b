package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/cryptoutil"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// createNewEntity implements the new-entity-creation path: insert an Entity
// named after the mention's normalized form, insert the kind-appropriate
// attribute row from extracted_attributes, insert an identifier row for any
// extracted personnummer/orgnummer, and mark the mention AUTO_MATCHED to
// the new entity with the given method.
func (r *Resolver) createNewEntity(ctx context.Context, mention model.Mention, method string) (model.Mention, error) {
	var resolved model.Mention
	err := r.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		entity, err := storage.CreateEntityTx(ctx, tx, model.Entity{
			Kind:                 mention.Kind,
			CanonicalName:        mention.NormalizedForm,
			ResolutionConfidence: 1.0,
			Status:               model.StatusActive,
		})
		if err != nil {
			return fmt.Errorf("create entity: %w", err)
		}

		if err := r.insertAttributesTx(ctx, tx, entity.ID, mention); err != nil {
			return fmt.Errorf("insert attributes: %w", err)
		}

		if err := r.insertIdentifierTx(ctx, tx, entity.ID, mention); err != nil {
			return fmt.Errorf("insert identifier: %w", err)
		}

		confidence := 1.0
		if err := storage.ResolveMentionTx(ctx, tx, mention.ID, model.MentionAutoMatched, &entity.ID, &confidence, method, "resolver"); err != nil {
			return fmt.Errorf("resolve mention: %w", err)
		}

		if _, err := storage.CreateResolutionDecisionTx(ctx, tx, model.ResolutionDecision{
			MentionID:       mention.ID,
			CandidateEntity: &entity.ID,
			OverallScore:    1.0,
			Decision:        model.DecisionAutoMatch,
		}); err != nil {
			return fmt.Errorf("log decision: %w", err)
		}

		if _, err := r.appendAudit(ctx, tx, "mention.new_entity", mention.ID.String(), entity.ID.String(), map[string]any{
			"method": method,
		}); err != nil {
			return fmt.Errorf("audit: %w", err)
		}

		var getErr error
		resolved, getErr = getMentionTx(ctx, tx, mention.ID)
		return getErr
	})
	if err != nil {
		return model.Mention{}, err
	}
	return resolved, nil
}

func (r *Resolver) insertAttributesTx(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, mention model.Mention) error {
	switch mention.Kind {
	case model.EntityPerson:
		attrs := model.PersonAttributes{EntityID: entityID, BirthYear: extractBirthYear(mention)}
		if g, ok := attrString(mention.ExtractedAttributes, "gender"); ok {
			attrs.Gender = &g
		}
		return storage.UpsertPersonAttributesTx(ctx, tx, attrs)
	case model.EntityCompany:
		attrs := model.CompanyAttributes{EntityID: entityID, Status: model.CompanyStatusActive}
		if lf, ok := attrString(mention.ExtractedAttributes, "legal_form"); ok {
			attrs.LegalForm = lf
		}
		return storage.UpsertCompanyAttributesTx(ctx, tx, attrs)
	case model.EntityAddress:
		attrs := model.AddressAttributes{EntityID: entityID}
		if snap := extractAddressSnapshot(mention); snap != nil {
			attrs.PostalCode = snap.PostalCode
			attrs.Street = snap.Street
			attrs.StreetNumber = snap.StreetNumber
		}
		if city, ok := attrString(mention.ExtractedAttributes, "city"); ok {
			attrs.City = city
		}
		return storage.UpsertAddressAttributesTx(ctx, tx, attrs)
	default:
		return nil
	}
}

func (r *Resolver) insertIdentifierTx(ctx context.Context, tx pgx.Tx, entityID uuid.UUID, mention model.Mention) error {
	kind, normalized, ok, err := identifierForMention(mention)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	encrypted, err := cryptoutil.EncryptPII(r.keys.PIIEncryptionKey, normalized)
	if err != nil {
		return fmt.Errorf("encrypt identifier: %w", err)
	}

	_, err = storage.CreateIdentifierTx(ctx, tx, model.EntityIdentifier{
		EntityID:       entityID,
		Kind:           kind,
		EncryptedValue: encrypted,
		BlindIndex:     cryptoutil.BlindIndex(r.keys.BlindIndexKey, normalized),
		ProvenanceID:   mention.ProvenanceID,
		Confidence:     1.0,
	})
	return err
}
