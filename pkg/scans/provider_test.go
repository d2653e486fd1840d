package scans

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightshade-io/nightshade/pkg/models"
)

func collectProgress(reports *[]int) ProgressFunc {
	return func(progress int) error {
		*reports = append(*reports, progress)
		return nil
	}
}

func TestDefaultRegistry_CoversAllKinds(t *testing.T) {
	registry := DefaultRegistry(0)

	for _, kind := range []models.TaskKind{
		models.TaskKindEmailScan,
		models.TaskKindPhoneScan,
		models.TaskKindSocialScan,
		models.TaskKindImageScan,
		models.TaskKindGeneric,
	} {
		assert.NotNil(t, registry.Get(kind), "no provider for %s", kind)
	}
	assert.Nil(t, registry.Get(models.TaskKind("dns_scan")))
	assert.Len(t, registry.Kinds(), 5)
}

func TestEmailProvider_Run(t *testing.T) {
	provider := NewEmailProvider(0)

	var reports []int
	raw, err := provider.Run(context.Background(), "alice@example.com", collectProgress(&reports))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 30, 50, 80, 100}, reports)

	var result models.EmailScanResult
	require.NoError(t, json.Unmarshal(raw, &result))

	assert.Equal(t, "alice@example.com", result.Email)
	assert.Equal(t, []string{"example.com"}, result.Domains)
	assert.Equal(t, []string{"breach_database", "social_profiles"}, result.SourcesChecked)
	assert.NotEmpty(t, result.Breaches)
	require.Len(t, result.SocialProfiles, 2)
	assert.Equal(t, "https://linkedin.com/in/alice", result.SocialProfiles[0].URL)
	assert.LessOrEqual(t, result.Confidence, 95)
	assert.GreaterOrEqual(t, result.Confidence, 40)
}

func TestEmailProvider_Deterministic(t *testing.T) {
	provider := NewEmailProvider(0)
	noop := func(int) error { return nil }

	first, err := provider.Run(context.Background(), "bob@example.com", noop)
	require.NoError(t, err)
	second, err := provider.Run(context.Background(), "bob@example.com", noop)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
}

func TestEmailProvider_NoDomainForBareTarget(t *testing.T) {
	provider := NewEmailProvider(0)

	raw, err := provider.Run(context.Background(), "not-an-email", func(int) error { return nil })
	require.NoError(t, err)

	var result models.EmailScanResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Empty(t, result.Domains)
}

func TestPhoneProvider_Run(t *testing.T) {
	provider := NewPhoneProvider(0)

	var reports []int
	raw, err := provider.Run(context.Background(), "+15551234567", collectProgress(&reports))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 40, 100}, reports)

	var result models.PhoneScanResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "+15551234567", result.Phone)
	if result.Valid {
		assert.NotEmpty(t, result.Carrier)
		assert.Equal(t, "United States", result.Country)
		assert.Equal(t, 90, result.Confidence)
	} else {
		assert.Empty(t, result.Carrier)
		assert.Equal(t, 0, result.Confidence)
	}
}

func TestSocialProvider_Run(t *testing.T) {
	provider := NewSocialProvider(0)

	var reports []int
	raw, err := provider.Run(context.Background(), "ghost", collectProgress(&reports))
	require.NoError(t, err)

	// First and last checkpoints are fixed, the rest advance monotonically
	require.NotEmpty(t, reports)
	assert.Equal(t, 10, reports[0])
	assert.Equal(t, 100, reports[len(reports)-1])
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1])
	}

	var result models.SocialScanResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "ghost", result.Username)
	assert.Len(t, result.PlatformsChecked, len(socialPlatforms))
	assert.Equal(t, len(socialPlatforms), len(result.PlatformsFound)+len(result.PlatformsNotFound))
	assert.Len(t, result.Profiles, len(result.PlatformsFound))

	for _, profile := range result.Profiles {
		assert.Contains(t, profile.URL, profile.Platform)
		assert.Equal(t, "ghost", profile.Username)
	}
}

func TestImageProvider_Run(t *testing.T) {
	provider := NewImageProvider(0)

	var reports []int
	raw, err := provider.Run(context.Background(), "/uploads/photo.jpg", collectProgress(&reports))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 30, 50, 80, 100}, reports)

	var result models.ImageScanResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "/uploads/photo.jpg", result.ImagePath)
	assert.Equal(t, "iPhone 13 Pro", result.Metadata.Camera)
	require.NotNil(t, result.Metadata.Location)
	assert.InDelta(t, 40.7128, result.Metadata.Location.Latitude, 0.0001)
	assert.Equal(t, len(result.FaceData), result.FacesDetected)
	assert.LessOrEqual(t, len(result.ReverseMatches), 3)
	assert.LessOrEqual(t, result.Confidence, 95)
}

func TestGenericProvider_Run(t *testing.T) {
	provider := NewGenericProvider(0)

	var reports []int
	raw, err := provider.Run(context.Background(), "acme corp", collectProgress(&reports))
	require.NoError(t, err)

	assert.Equal(t, []int{10, 60, 100}, reports)

	var result models.GenericScanResult
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.Equal(t, "acme corp", result.Target)
	assert.Equal(t, []string{"web_search", "public_records"}, result.SourcesChecked)
	assert.GreaterOrEqual(t, result.Findings, 0)
	assert.Less(t, result.Findings, 5)
	assert.Equal(t, clampConfidence(20+result.Findings*15), result.Confidence)
}

func TestProviders_StopOnReportError(t *testing.T) {
	cancelErr := errors.New("cancelled")
	failAfter := func(n int) ProgressFunc {
		calls := 0
		return func(int) error {
			calls++
			if calls > n {
				return cancelErr
			}
			return nil
		}
	}

	providers := []Provider{
		NewEmailProvider(0),
		NewPhoneProvider(0),
		NewSocialProvider(0),
		NewImageProvider(0),
		NewGenericProvider(0),
	}

	for _, provider := range providers {
		raw, err := provider.Run(context.Background(), "target", failAfter(1))
		assert.ErrorIs(t, err, cancelErr, "provider %s ignored report error", provider.Kind())
		assert.Nil(t, raw)
	}
}

func TestProviders_HonorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A non-zero delay forces every provider through pause, which must
	// observe the cancelled context.
	provider := NewEmailProvider(10 * time.Millisecond)
	_, err := provider.Run(ctx, "alice@example.com", func(int) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTargetHash_Stable(t *testing.T) {
	assert.Equal(t, targetHash("a", "b"), targetHash("a", "b"))
	assert.NotEqual(t, targetHash("alice"), targetHash("bob"))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 95, clampConfidence(120))
	assert.Equal(t, 0, clampConfidence(-5))
	assert.Equal(t, 50, clampConfidence(50))
}
