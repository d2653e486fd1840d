// Package enrich materializes completed scan results into the entity graph
// and announces discoveries on the event bus.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/nightshade-io/nightshade/pkg/events"
	"github.com/nightshade-io/nightshade/pkg/graph"
	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/tracing"
)

// Recorder consumes completed scan tasks and writes discovered entities and
// relationships into the graph store. Wired as the task engine's completion
// hook, so recording failures only log; the task itself stays completed.
type Recorder struct {
	repo    graph.EntityRepository
	emitter *events.Emitter
	logger  ectologger.Logger
}

// NewRecorder creates a scan result recorder. The emitter may be nil when
// Kafka is disabled.
func NewRecorder(repo graph.EntityRepository, emitter *events.Emitter, logger ectologger.Logger) *Recorder {
	return &Recorder{
		repo:    repo,
		emitter: emitter,
		logger:  logger,
	}
}

// Record materializes one completed task. Implements tasks.CompletionHook.
func (r *Recorder) Record(ctx context.Context, task *models.Task) {
	ctx, span := tracing.StartSpan(ctx, "enrich.Recorder.Record")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"task_id": task.ID,
		"kind":    task.Kind,
	})

	var err error
	switch task.Kind {
	case models.TaskKindEmailScan:
		err = r.recordEmailScan(ctx, task)
	case models.TaskKindPhoneScan:
		err = r.recordPhoneScan(ctx, task)
	case models.TaskKindSocialScan:
		err = r.recordSocialScan(ctx, task)
	case models.TaskKindImageScan:
		err = r.recordImageScan(ctx, task)
	default:
		// Nothing to materialize, the completion event still goes out
		log.Debugf("No graph mapping for kind %q", task.Kind)
	}
	if err != nil {
		log.WithError(err).Error("Failed to materialize scan result")
		return
	}

	if r.emitter != nil {
		if err := r.emitter.EmitScanCompleted(ctx, task); err != nil {
			log.WithError(err).Warn("Failed to emit scan.completed event")
		}
	}

	log.Debug("Materialized scan result")
}

func (r *Recorder) upsertEntity(ctx context.Context, investigationID string, entity *graph.Entity) error {
	if err := r.repo.UpsertEntity(ctx, investigationID, entity); err != nil {
		return err
	}
	if r.emitter != nil {
		if err := r.emitter.EmitEntityDiscovered(ctx, investigationID, entity); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit entity.discovered event")
		}
	}
	return nil
}

func (r *Recorder) upsertRelationship(ctx context.Context, rel *graph.Relationship) error {
	if err := r.repo.UpsertRelationship(ctx, rel); err != nil {
		return err
	}
	if r.emitter != nil {
		if err := r.emitter.EmitRelationshipDiscovered(ctx, rel); err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit relationship.discovered event")
		}
	}
	return nil
}

func (r *Recorder) recordEmailScan(ctx context.Context, task *models.Task) error {
	var result models.EmailScanResult
	if err := json.Unmarshal(task.Result, &result); err != nil {
		return fmt.Errorf("failed to parse email scan result: %w", err)
	}

	emailID := "email:" + result.Email
	email := &graph.Entity{
		ID:   emailID,
		Name: result.Email,
		Type: "email",
		Properties: map[string]any{
			"confidence": result.Confidence,
		},
	}
	if err := r.upsertEntity(ctx, task.InvestigationID, email); err != nil {
		return err
	}

	for _, breach := range result.Breaches {
		breachEntity := &graph.Entity{
			ID:   "breach:" + breach.Name,
			Name: breach.Name,
			Type: "breach",
			Properties: map[string]any{
				"date": breach.Date,
			},
		}
		if err := r.upsertEntity(ctx, task.InvestigationID, breachEntity); err != nil {
			return err
		}
		rel := &graph.Relationship{
			SourceID: emailID,
			TargetID: breachEntity.ID,
			Type:     "APPEARED_IN",
			Properties: map[string]any{
				"data_classes": breach.DataClasses,
			},
		}
		if err := r.upsertRelationship(ctx, rel); err != nil {
			return err
		}
	}

	for _, profile := range result.SocialProfiles {
		profileEntity := &graph.Entity{
			ID:   "profile:" + profile.URL,
			Name: profile.Platform,
			Type: "social_media",
			Properties: map[string]any{
				"url":              profile.URL,
				"match_confidence": profile.MatchConfidence,
			},
		}
		if err := r.upsertEntity(ctx, task.InvestigationID, profileEntity); err != nil {
			return err
		}
		rel := &graph.Relationship{
			SourceID:   emailID,
			TargetID:   profileEntity.ID,
			Type:       "HAS_PROFILE",
			Properties: map[string]any{},
		}
		if err := r.upsertRelationship(ctx, rel); err != nil {
			return err
		}
	}

	return nil
}

func (r *Recorder) recordPhoneScan(ctx context.Context, task *models.Task) error {
	var result models.PhoneScanResult
	if err := json.Unmarshal(task.Result, &result); err != nil {
		return fmt.Errorf("failed to parse phone scan result: %w", err)
	}

	phone := &graph.Entity{
		ID:   "phone:" + result.Phone,
		Name: result.Phone,
		Type: "phone",
		Properties: map[string]any{
			"valid":      result.Valid,
			"carrier":    result.Carrier,
			"country":    result.Country,
			"line_type":  result.LineType,
			"location":   result.Location,
			"confidence": result.Confidence,
		},
	}
	return r.upsertEntity(ctx, task.InvestigationID, phone)
}

func (r *Recorder) recordSocialScan(ctx context.Context, task *models.Task) error {
	var result models.SocialScanResult
	if err := json.Unmarshal(task.Result, &result); err != nil {
		return fmt.Errorf("failed to parse social scan result: %w", err)
	}

	usernameID := "username:" + result.Username
	username := &graph.Entity{
		ID:   usernameID,
		Name: result.Username,
		Type: "username",
		Properties: map[string]any{
			"confidence": result.Confidence,
		},
	}
	if err := r.upsertEntity(ctx, task.InvestigationID, username); err != nil {
		return err
	}

	for _, profile := range result.Profiles {
		account := &graph.Entity{
			ID:   "profile:" + profile.URL,
			Name: profile.Platform,
			Type: "social_media",
			Properties: map[string]any{
				"url":      profile.URL,
				"username": profile.Username,
			},
		}
		if err := r.upsertEntity(ctx, task.InvestigationID, account); err != nil {
			return err
		}
		rel := &graph.Relationship{
			SourceID:   usernameID,
			TargetID:   account.ID,
			Type:       "HAS_ACCOUNT",
			Properties: map[string]any{},
		}
		if err := r.upsertRelationship(ctx, rel); err != nil {
			return err
		}
	}

	return nil
}

func (r *Recorder) recordImageScan(ctx context.Context, task *models.Task) error {
	var result models.ImageScanResult
	if err := json.Unmarshal(task.Result, &result); err != nil {
		return fmt.Errorf("failed to parse image scan result: %w", err)
	}

	imageID := "image:" + result.ImagePath
	image := &graph.Entity{
		ID:   imageID,
		Name: result.ImagePath,
		Type: "image",
		Properties: map[string]any{
			"faces_detected": result.FacesDetected,
			"confidence":     result.Confidence,
		},
	}
	if err := r.upsertEntity(ctx, task.InvestigationID, image); err != nil {
		return err
	}

	for _, match := range result.ReverseMatches {
		matchEntity := &graph.Entity{
			ID:   "match:" + match.URL,
			Name: match.Source,
			Type: "image_match",
			Properties: map[string]any{
				"url": match.URL,
			},
		}
		if err := r.upsertEntity(ctx, task.InvestigationID, matchEntity); err != nil {
			return err
		}
		rel := &graph.Relationship{
			SourceID: imageID,
			TargetID: matchEntity.ID,
			Type:     "MATCHES",
			Properties: map[string]any{
				"similarity": match.Similarity,
			},
		}
		if err := r.upsertRelationship(ctx, rel); err != nil {
			return err
		}
	}

	return nil
}
