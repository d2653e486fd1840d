package scans

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// PhoneProvider looks up carrier, location, and ownership details for a phone
// number. Simulates a PhoneInfoga-style lookup service.
type PhoneProvider struct {
	stepDelay time.Duration
}

func NewPhoneProvider(stepDelay time.Duration) *PhoneProvider {
	return &PhoneProvider{stepDelay: stepDelay}
}

func (p *PhoneProvider) Kind() models.TaskKind {
	return models.TaskKindPhoneScan
}

func (p *PhoneProvider) Run(ctx context.Context, target string, report ProgressFunc) (json.RawMessage, error) {
	if err := report(10); err != nil {
		return nil, err
	}

	result := models.PhoneScanResult{
		Phone: target,
	}

	if err := report(40); err != nil {
		return nil, err
	}
	if err := pause(ctx, p.stepDelay); err != nil {
		return nil, err
	}

	seed := targetHash(target)
	result.Valid = seed%10 != 0
	if result.Valid {
		carriers := []string{"Verizon Wireless", "AT&T", "T-Mobile"}
		locations := []string{"New York, NY", "Chicago, IL", "Austin, TX"}
		result.Carrier = carriers[seed%uint64(len(carriers))]
		result.Country = "United States"
		result.LineType = "Mobile"
		result.Location = locations[(seed>>8)%uint64(len(locations))]
		result.OwnerDetails = models.OwnerDetails{
			AgeRange:         "30-40",
			AssociatedEmails: 1,
		}
	}

	confidence := 0
	if result.Valid {
		confidence += 30
	}
	if result.Carrier != "" {
		confidence += 15
	}
	if result.Location != "" {
		confidence += 20
	}
	if result.OwnerDetails != (models.OwnerDetails{}) {
		confidence += 25
	}
	result.Confidence = clampConfidence(confidence)

	if err := report(100); err != nil {
		return nil, err
	}

	return json.Marshal(result)
}
