package graph

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/nightshade-io/nightshade/pkg/metrics"
	"github.com/nightshade-io/nightshade/pkg/tracing"
)

const (
	// DefaultNodeLimit caps graph builds when the caller gives no limit
	DefaultNodeLimit = 100

	// MaxNodeLimit is the hard ceiling on nodes per build
	MaxNodeLimit = 500
)

// Node is a deduplicated graph node shaped for visualization
type Node struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Link is a deduplicated graph edge shaped for visualization
type Link struct {
	Source     string         `json:"source"`
	Target     string         `json:"target"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
}

// Graph is the node/link structure returned to the UI
type Graph struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// BuildRequest scopes a graph build. EntityID takes precedence over
// InvestigationID; with neither set the build samples across all entities.
type BuildRequest struct {
	InvestigationID string
	EntityID        string
	Depth           int
	Limit           int
}

// AssemblerConfig tunes build limits. Zero values fall back to the package
// defaults.
type AssemblerConfig struct {
	// NodeLimit caps builds when the caller gives no limit
	NodeLimit int
	// MaxNodeLimit is the hard ceiling on nodes per build
	MaxNodeLimit int
}

// Assembler turns raw triples from the entity repository into a deduplicated,
// bounded node/link structure. It holds no mutable state between builds.
type Assembler struct {
	repo   EntityRepository
	config AssemblerConfig
	logger ectologger.Logger
}

// NewAssembler creates a graph assembler
func NewAssembler(repo EntityRepository, config AssemblerConfig, logger ectologger.Logger) *Assembler {
	if config.NodeLimit <= 0 {
		config.NodeLimit = DefaultNodeLimit
	}
	if config.MaxNodeLimit <= 0 {
		config.MaxNodeLimit = MaxNodeLimit
	}

	return &Assembler{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Build queries the repository and assembles the graph. Repository failures
// surface as errors, never as a silently empty graph.
func (a *Assembler) Build(ctx context.Context, req BuildRequest) (*Graph, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Assembler.Build")
	defer span.End()

	limit := req.Limit
	if limit < 1 {
		limit = a.config.NodeLimit
	}
	if limit > a.config.MaxNodeLimit {
		limit = a.config.MaxNodeLimit
	}

	start := time.Now()

	var (
		triples []Triple
		scope   string
		err     error
	)
	switch {
	case req.EntityID != "":
		scope = "entity"
		triples, err = a.repo.EntityTriples(ctx, req.EntityID, req.Depth, limit*4)
	case req.InvestigationID != "":
		scope = "investigation"
		triples, err = a.repo.InvestigationTriples(ctx, req.InvestigationID, limit*4)
	default:
		scope = "sample"
		triples, err = a.repo.InvestigationTriples(ctx, "", limit*4)
	}
	if err != nil {
		return nil, err
	}

	result := assemble(triples, limit)

	metrics.RecordGraphBuild(scope, len(result.Nodes), time.Since(start))

	a.logger.WithContext(ctx).WithFields(map[string]any{
		"scope": scope,
		"nodes": len(result.Nodes),
		"links": len(result.Links),
	}).Debug("Assembled graph")

	return result, nil
}

type linkKey struct {
	source string
	target string
	kind   string
}

// assemble folds triples into a deduplicated graph. Nodes merge property bags
// with last-write-wins on conflicting keys; links dedupe on (source, target,
// type). Once limit distinct nodes exist, triples needing a new node are
// skipped, but links between already-included nodes are still emitted.
func assemble(triples []Triple, limit int) *Graph {
	nodes := make(map[string]*Node)
	order := make([]string, 0, limit)
	links := make([]Link, 0)
	seenLinks := make(map[linkKey]int)

	// include upserts an entity into the node map, honoring the limit.
	// Returns false when the node is absent and no capacity remains.
	include := func(raw *RawEntity) bool {
		if raw == nil || raw.ID == "" {
			return false
		}
		if existing, ok := nodes[raw.ID]; ok {
			mergeNode(existing, raw)
			return true
		}
		if len(nodes) >= limit {
			return false
		}
		nodes[raw.ID] = newNode(raw)
		order = append(order, raw.ID)
		return true
	}

	for _, triple := range triples {
		sourceOK := include(triple.Source)
		targetOK := include(triple.Target)

		if triple.Rel == nil || triple.Source == nil || triple.Target == nil {
			continue
		}
		if !sourceOK || !targetOK {
			// Link would dangle outside the bounded node set
			continue
		}

		key := linkKey{source: triple.Source.ID, target: triple.Target.ID, kind: triple.Rel.Type}
		if idx, ok := seenLinks[key]; ok {
			for k, v := range triple.Rel.Props {
				links[idx].Properties[k] = v
			}
			continue
		}

		link := Link{
			Source:     triple.Source.ID,
			Target:     triple.Target.ID,
			Type:       triple.Rel.Type,
			Properties: make(map[string]any, len(triple.Rel.Props)),
		}
		for k, v := range triple.Rel.Props {
			link.Properties[k] = v
		}
		seenLinks[key] = len(links)
		links = append(links, link)
	}

	result := &Graph{
		Nodes: make([]Node, 0, len(order)),
		Links: links,
	}
	for _, id := range order {
		result.Nodes = append(result.Nodes, *nodes[id])
	}
	return result
}

// newNode shapes a raw entity for visualization. Entities returned as bare
// endpoint references (no name, no labels) become "Unknown" placeholders.
func newNode(raw *RawEntity) *Node {
	node := &Node{
		ID:         raw.ID,
		Name:       "Unknown",
		Type:       "entity",
		Properties: make(map[string]any),
	}

	if name, ok := raw.Props["name"].(string); ok && name != "" {
		node.Name = name
	}
	if len(raw.Labels) > 0 {
		node.Type = raw.Labels[0]
	}
	for k, v := range raw.Props {
		if k == "name" {
			continue
		}
		node.Properties[k] = v
	}

	return node
}

// mergeNode folds a repeated sighting of an entity into its node.
// Property conflicts resolve last-write-wins; a placeholder upgrades to a
// real node when a later triple carries its name or labels.
func mergeNode(node *Node, raw *RawEntity) {
	if name, ok := raw.Props["name"].(string); ok && name != "" {
		node.Name = name
	}
	if node.Type == "entity" && len(raw.Labels) > 0 {
		node.Type = raw.Labels[0]
	}
	for k, v := range raw.Props {
		if k == "name" {
			continue
		}
		node.Properties[k] = v
	}
}
