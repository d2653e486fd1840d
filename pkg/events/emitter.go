// Package events handles event emission for scan lifecycle and discovery
package events

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/nightshade-io/nightshade/pkg/graph"
	"github.com/nightshade-io/nightshade/pkg/kafka"
	"github.com/nightshade-io/nightshade/pkg/models"
	"github.com/nightshade-io/nightshade/pkg/tracing"
)

// Emitter publishes scan and discovery events to Kafka
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitScanCompleted emits a scan.completed event for a terminal task
func (e *Emitter) EmitScanCompleted(ctx context.Context, task *models.Task) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitScanCompleted")
	defer span.End()

	event := &kafka.ScanEvent{
		EventType:       "scan.completed",
		TaskID:          task.ID,
		Kind:            task.Kind,
		Target:          task.Target,
		InvestigationID: task.InvestigationID,
		Status:          task.Status,
		Result:          task.Result,
	}

	if err := e.producer.PublishScanEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit scan.completed event")
		return err
	}

	return nil
}

// EmitEntityDiscovered emits an entity.discovered event
func (e *Emitter) EmitEntityDiscovered(ctx context.Context, investigationID string, entity *graph.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityDiscovered")
	defer span.End()

	event := &kafka.EntityEvent{
		EventType:       "entity.discovered",
		EntityID:        entity.ID,
		EntityType:      entity.Type,
		InvestigationID: investigationID,
		Properties:      entity.Properties,
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit entity.discovered event")
		return err
	}

	return nil
}

// EmitRelationshipDiscovered emits a relationship.discovered event
func (e *Emitter) EmitRelationshipDiscovered(ctx context.Context, rel *graph.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipDiscovered")
	defer span.End()

	event := &kafka.RelationshipEvent{
		EventType:        "relationship.discovered",
		SourceEntityID:   rel.SourceID,
		TargetEntityID:   rel.TargetID,
		RelationshipType: rel.Type,
		Properties:       rel.Properties,
	}

	if err := e.producer.PublishRelationshipEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit relationship.discovered event")
		return err
	}

	return nil
}
