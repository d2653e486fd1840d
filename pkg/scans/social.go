package scans

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nightshade-io/nightshade/pkg/models"
)

// socialPlatforms are the platforms probed for a username
var socialPlatforms = []string{
	"twitter", "instagram", "facebook", "linkedin", "github", "reddit",
	"tiktok", "pinterest", "snapchat", "youtube", "twitch",
}

// SocialProvider probes platforms for a username. Simulates a Sherlock-style
// username enumerator with a stable per-target hit set.
type SocialProvider struct {
	stepDelay time.Duration
}

func NewSocialProvider(stepDelay time.Duration) *SocialProvider {
	return &SocialProvider{stepDelay: stepDelay}
}

func (p *SocialProvider) Kind() models.TaskKind {
	return models.TaskKindSocialScan
}

func (p *SocialProvider) Run(ctx context.Context, target string, report ProgressFunc) (json.RawMessage, error) {
	if err := report(10); err != nil {
		return nil, err
	}

	result := models.SocialScanResult{
		Username:          target,
		PlatformsChecked:  socialPlatforms,
		PlatformsFound:    []string{},
		PlatformsNotFound: []string{},
		Profiles:          []models.SocialProfile{},
	}

	progress := 10
	step := 80 / len(socialPlatforms)

	for _, platform := range socialPlatforms {
		if err := report(progress); err != nil {
			return nil, err
		}
		if err := pause(ctx, p.stepDelay); err != nil {
			return nil, err
		}

		if platformHasUser(target, platform) {
			result.PlatformsFound = append(result.PlatformsFound, platform)
			result.Profiles = append(result.Profiles, models.SocialProfile{
				Platform: platform,
				URL:      fmt.Sprintf("https://%s.com/%s", platform, target),
				Username: target,
			})
		} else {
			result.PlatformsNotFound = append(result.PlatformsNotFound, platform)
		}

		progress += step
	}

	foundRatio := float64(len(result.PlatformsFound)) / float64(len(socialPlatforms))
	result.Confidence = clampConfidence(int(foundRatio * 100))

	if err := report(100); err != nil {
		return nil, err
	}

	return json.Marshal(result)
}

// platformHasUser is a stand-in for a real platform probe. Deterministic per
// (username, platform) pair with roughly a 70% hit rate.
func platformHasUser(username, platform string) bool {
	return targetHash(username, ":", platform)%10 < 7
}
