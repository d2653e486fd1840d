package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nightshade-io/nightshade/pkg/tracing"
)

// ErrRepositoryUnavailable is returned when the graph store cannot be
// queried. Callers must treat it as a build failure, never as an empty graph.
var ErrRepositoryUnavailable = errors.New("entity repository unavailable")

// RawEntity is an entity as returned by the backing store. A record carrying
// only an ID (no labels, no properties) is a bare endpoint reference.
type RawEntity struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// RawRelationship is a typed connection as returned by the backing store
type RawRelationship struct {
	Type  string
	Props map[string]any
}

// Triple is one (entity, relationship, entity) row from a graph query.
// Rel and Target may be nil when an entity has no connections.
type Triple struct {
	Source *RawEntity
	Rel    *RawRelationship
	Target *RawEntity
}

// Entity is the write model for discovered entities
type Entity struct {
	ID         string
	Name       string
	Type       string
	Properties map[string]any
}

// Relationship is the write model for discovered connections
type Relationship struct {
	SourceID   string
	TargetID   string
	Type       string
	Properties map[string]any
}

// EntityRepository is the query/write contract against the graph store
type EntityRepository interface {
	InvestigationTriples(ctx context.Context, investigationID string, limit int) ([]Triple, error)
	EntityTriples(ctx context.Context, entityID string, depth, limit int) ([]Triple, error)
	UpsertEntity(ctx context.Context, investigationID string, entity *Entity) error
	UpsertRelationship(ctx context.Context, rel *Relationship) error
}

// Neo4jRepository implements EntityRepository over the Bolt client
type Neo4jRepository struct {
	client *Client
	logger ectologger.Logger
}

// NewNeo4jRepository creates a Neo4j-backed entity repository
func NewNeo4jRepository(client *Client, logger ectologger.Logger) *Neo4jRepository {
	return &Neo4jRepository{
		client: client,
		logger: logger,
	}
}

// InvestigationTriples streams entity/relationship/entity rows scoped to an
// investigation; an empty investigationID samples across all entities.
func (r *Neo4jRepository) InvestigationTriples(ctx context.Context, investigationID string, limit int) ([]Triple, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Neo4jRepository.InvestigationTriples")
	defer span.End()

	var cypher string
	params := map[string]any{"limit": limit}

	if investigationID != "" {
		cypher = `
			MATCH (i:Investigation {id: $investigation_id})
			MATCH (i)-[:CONTAINS]->(e)
			OPTIONAL MATCH (e)-[r]-(related)
			WHERE NOT related:Investigation
			RETURN e, r, related
			LIMIT $limit
		`
		params["investigation_id"] = investigationID
	} else {
		cypher = `
			MATCH (e)
			WHERE NOT e:Investigation
			OPTIONAL MATCH (e)-[r]-(related)
			WHERE NOT related:Investigation
			RETURN e, r, related
			LIMIT $limit
		`
	}

	return r.queryTriples(ctx, cypher, params, "e", "r", "related")
}

// EntityTriples streams rows for the subgraph within depth hops of an entity
func (r *Neo4jRepository) EntityTriples(ctx context.Context, entityID string, depth, limit int) ([]Triple, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Neo4jRepository.EntityTriples")
	defer span.End()

	if depth < 1 {
		depth = 1
	}
	if depth > 3 {
		depth = 3
	}

	// Variable-length patterns can't be parameterized, depth is clamped above
	cypher := fmt.Sprintf(`
		MATCH p = (e {id: $id})-[*1..%d]-(related)
		WHERE NOT related:Investigation
		UNWIND relationships(p) AS rel
		RETURN DISTINCT startNode(rel) AS a, rel AS r, endNode(rel) AS b
		LIMIT $limit
	`, depth)

	return r.queryTriples(ctx, cypher, params(entityID, limit), "a", "r", "b")
}

func params(entityID string, limit int) map[string]any {
	return map[string]any{"id": entityID, "limit": limit}
}

func (r *Neo4jRepository) queryTriples(ctx context.Context, cypher string, qparams map[string]any, sourceKey, relKey, targetKey string) ([]Triple, error) {
	result, err := r.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		rows, err := tx.Run(ctx, cypher, qparams)
		if err != nil {
			return nil, err
		}

		triples := make([]Triple, 0)
		for rows.Next(ctx) {
			record := rows.Record()

			triple := Triple{
				Source: rawEntity(record, sourceKey),
				Rel:    rawRelationship(record, relKey),
				Target: rawEntity(record, targetKey),
			}
			if triple.Source == nil && triple.Target == nil {
				continue
			}
			triples = append(triples, triple)
		}
		return triples, rows.Err()
	})

	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to query graph triples")
		return nil, fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	return result.([]Triple), nil
}

func rawEntity(record *neo4j.Record, key string) *RawEntity {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	node, ok := val.(neo4j.Node)
	if !ok {
		return nil
	}

	id := node.ElementId
	if propID, ok := node.Props["id"].(string); ok && propID != "" {
		id = propID
	}

	return &RawEntity{
		ID:     id,
		Labels: node.Labels,
		Props:  node.Props,
	}
}

func rawRelationship(record *neo4j.Record, key string) *RawRelationship {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return nil
	}
	rel, ok := val.(neo4j.Relationship)
	if !ok {
		return nil
	}

	return &RawRelationship{
		Type:  rel.Type,
		Props: rel.Props,
	}
}

// UpsertEntity MERGEs an entity node and links it to its investigation
func (r *Neo4jRepository) UpsertEntity(ctx context.Context, investigationID string, entity *Entity) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Neo4jRepository.UpsertEntity")
	defer span.End()

	props := map[string]any{
		"id":   entity.ID,
		"name": entity.Name,
	}
	for k, v := range entity.Properties {
		props[k] = v
	}

	cypher := fmt.Sprintf(`
		MERGE (e:%s {id: $id})
		SET e += $props
	`, sanitizeLabel(entity.Type))

	qparams := map[string]any{
		"id":    entity.ID,
		"props": props,
	}

	if investigationID != "" {
		cypher += `
		WITH e
		MERGE (i:Investigation {id: $investigation_id})
		MERGE (i)-[:CONTAINS]->(e)
		`
		qparams["investigation_id"] = investigationID
	}

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, qparams)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert entity in graph")
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.ID,
		"entity_type": entity.Type,
	}).Debug("Upserted entity in graph")
	return nil
}

// UpsertRelationship MERGEs a typed edge between two entities
func (r *Neo4jRepository) UpsertRelationship(ctx context.Context, rel *Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Neo4jRepository.UpsertRelationship")
	defer span.End()

	cypher := fmt.Sprintf(`
		MATCH (a {id: $source_id})
		MATCH (b {id: $target_id})
		MERGE (a)-[r:%s]->(b)
		SET r += $props
	`, sanitizeLabel(rel.Type))

	_, err := r.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"source_id": rel.SourceID,
			"target_id": rel.TargetID,
			"props":     rel.Properties,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert relationship in graph")
		return fmt.Errorf("%w: %v", ErrRepositoryUnavailable, err)
	}

	return nil
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label string) string {
	result := ""
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result += string(c)
		}
	}
	if result == "" {
		return "Entity"
	}
	return result
}
