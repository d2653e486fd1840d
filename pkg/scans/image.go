package scans

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// ImageProvider runs metadata extraction, face detection, and reverse image
// search over an uploaded image. All three stages are simulated.
type ImageProvider struct {
	stepDelay time.Duration
}

func NewImageProvider(stepDelay time.Duration) *ImageProvider {
	return &ImageProvider{stepDelay: stepDelay}
}

func (p *ImageProvider) Kind() models.TaskKind {
	return models.TaskKindImageScan
}

func (p *ImageProvider) Run(ctx context.Context, target string, report ProgressFunc) (json.RawMessage, error) {
	if err := report(10); err != nil {
		return nil, err
	}

	result := models.ImageScanResult{
		ImagePath:      target,
		FaceData:       []models.FaceData{},
		ReverseMatches: []models.ReverseMatch{},
	}

	// Metadata extraction
	if err := report(30); err != nil {
		return nil, err
	}
	if err := pause(ctx, p.stepDelay); err != nil {
		return nil, err
	}
	result.Metadata = models.ImageMetadata{
		Camera:        "iPhone 13 Pro",
		DateTaken:     "2023-09-15T14:30:22",
		Location:      &models.GeoCoordinate{Latitude: 40.7128, Longitude: -74.0060},
		Dimensions:    "3024x4032",
		HasBeenEdited: true,
	}

	// Face detection
	if err := report(50); err != nil {
		return nil, err
	}
	if err := pause(ctx, p.stepDelay); err != nil {
		return nil, err
	}
	seed := targetHash(target)
	if seed%4 != 0 {
		result.FacesDetected = 1
		result.FaceData = append(result.FaceData, models.FaceData{
			Confidence:  0.92,
			AgeEstimate: "30-35",
			Gender:      "male",
			FacialFeatures: map[string]string{
				"eyes":        "brown",
				"hair":        "brown",
				"facial_hair": "beard",
			},
		})
	}

	// Reverse image search
	if err := report(80); err != nil {
		return nil, err
	}
	if err := pause(ctx, p.stepDelay); err != nil {
		return nil, err
	}
	matches := []models.ReverseMatch{
		{URL: "https://example.com/profile1.jpg", Source: "Facebook", Similarity: 0.88},
		{URL: "https://example.com/profile2.jpg", Source: "Twitter", Similarity: 0.75},
		{URL: "https://example.com/profile3.jpg", Source: "Instagram", Similarity: 0.67},
	}
	matchCount := int(seed%4) // 0..3 stable per target
	result.ReverseMatches = matches[:matchCount]

	confidence := 0.0
	if result.FacesDetected > 0 {
		confidence += 40
	}
	confidence += 20 // metadata always present in simulation
	if len(result.ReverseMatches) > 0 {
		ratio := float64(len(result.ReverseMatches)) / 5
		if ratio > 1 {
			ratio = 1
		}
		confidence += 30 * ratio
	}
	result.Confidence = clampConfidence(int(confidence))

	if err := report(100); err != nil {
		return nil, err
	}

	return json.Marshal(result)
}
