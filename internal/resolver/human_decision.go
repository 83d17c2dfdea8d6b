package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/halo-intel/halo/internal/herr"
	"github.com/halo-intel/halo/internal/model"
	"github.com/halo-intel/halo/internal/storage"
)

// HumanDecisionKind enumerates the outcomes a reviewer can choose for a
// PENDING mention.
type HumanDecisionKind string

const (
	HumanMatch  HumanDecisionKind = "MATCH"
	HumanReject HumanDecisionKind = "REJECT"
	HumanNew    HumanDecisionKind = "NEW"
)

// ApplyHumanDecision resolves mentionID per a reviewer's call: MATCH binds
// it to targetEntity, REJECT leaves it unmatched to any candidate, NEW
// creates a fresh entity exactly like the automatic new-entity path. Every
// transition writes an audit entry: the MATCH and REJECT entries name the
// reviewer and justification, while NEW writes the new-entity path's entry
// (method "human_new"), which records neither.
func (r *Resolver) ApplyHumanDecision(ctx context.Context, mentionID uuid.UUID, decision HumanDecisionKind, targetEntity *uuid.UUID, reviewer, justification string) (model.Mention, error) {
	mention, err := r.db.GetMention(ctx, mentionID)
	if err != nil {
		return model.Mention{}, fmt.Errorf("resolver: load mention: %w", err)
	}

	switch decision {
	case HumanMatch:
		if targetEntity == nil {
			return model.Mention{}, fmt.Errorf("resolver: %w: MATCH requires a target entity", herr.ErrValidation)
		}
		return r.finalizeHumanDecision(ctx, mention, model.MentionHumanMatched, targetEntity, model.DecisionHumanMatch, reviewer, justification)
	case HumanReject:
		return r.finalizeHumanDecision(ctx, mention, model.MentionHumanRejected, nil, model.DecisionHumanReject, reviewer, justification)
	case HumanNew:
		return r.createNewEntity(ctx, mention, "human_new")
	default:
		return model.Mention{}, fmt.Errorf("resolver: %w: unknown human decision %q", herr.ErrValidation, decision)
	}
}

func (r *Resolver) finalizeHumanDecision(ctx context.Context, mention model.Mention, status model.ResolutionStatus, targetEntity *uuid.UUID, decision model.Decision, reviewer, justification string) (model.Mention, error) {
	var resolved model.Mention
	err := r.db.BeginFunc(ctx, func(tx pgx.Tx) error {
		confidence := 1.0
		if err := storage.ResolveMentionTx(ctx, tx, mention.ID, status, targetEntity, &confidence, "human_review", reviewer); err != nil {
			return err
		}

		if _, err := storage.CreateResolutionDecisionTx(ctx, tx, model.ResolutionDecision{
			MentionID:       mention.ID,
			CandidateEntity: targetEntity,
			OverallScore:    confidence,
			Decision:        decision,
			Reviewer:        reviewer,
		}); err != nil {
			return err
		}

		targetID := ""
		if targetEntity != nil {
			targetID = targetEntity.String()
		}
		if _, err := r.appendAudit(ctx, tx, "mention.human_decision", mention.ID.String(), targetID, map[string]any{
			"reviewer":      reviewer,
			"decision":      string(decision),
			"justification": justification,
		}); err != nil {
			return err
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
