package publish

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"server/internal/domain"
)

// Coordinator fans a publish request out to the selected platforms,
// strictly sequentially in selection order. One platform's failure never
// blocks or reverts another's publish; each outcome stands on its own.
type Coordinator struct {
	adapters map[string]Adapter
	tokens   domain.TokenProvider
	logger   zerolog.Logger
}

// NewCoordinator registers the given adapters under their platform names.
func NewCoordinator(tokens domain.TokenProvider, logger zerolog.Logger, adapters ...Adapter) *Coordinator {
	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Platform()] = a
	}
	return &Coordinator{adapters: byName, tokens: tokens, logger: logger}
}

// PublishAll filters the selected platforms down to those with a connected
// account and invokes each adapter in turn, running every platform to
// completion before starting the next. The returned outcomes follow
// selection order. Each platform receives its own composited slide set when
// one exists, otherwise the full set.
func (c *Coordinator) PublishAll(ctx context.Context, ownerID string, platforms []string, slides []domain.Slide, caption string) ([]Outcome, error) {
	connected, err := c.tokens.Connected(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("resolve connected platforms: %w", err)
	}

	var outcomes []Outcome
	for _, platform := range platforms {
		if !connected[platform] {
			c.logger.Debug().Str("platform", platform).Msg("publish: skipping unconnected platform")
			continue
		}
		outcomes = append(outcomes, c.publishOne(ctx, ownerID, platform, imagesFor(platform, slides), caption))
	}
	return outcomes, nil
}

// imagesFor collects the composited bytes targeted at the platform, in
// slide order, falling back to every slide when the compositor did not
// produce a platform-specific set.
func imagesFor(platform string, slides []domain.Slide) [][]byte {
	sorted := append([]domain.Slide(nil), slides...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SlideIndex < sorted[j].SlideIndex })
	var images [][]byte
	for _, s := range sorted {
		if s.Platform == platform {
			images = append(images, s.ImageBytes)
		}
	}
	if len(images) > 0 {
		return images
	}
	for _, s := range sorted {
		images = append(images, s.ImageBytes)
	}
	return images
}

func (c *Coordinator) publishOne(ctx context.Context, ownerID, platform string, images [][]byte, caption string) Outcome {
	adapter, ok := c.adapters[platform]
	if !ok {
		return Outcome{Platform: platform, Error: "unknown platform"}
	}
	creds, err := c.tokens.Credentials(ctx, ownerID, platform)
	if err != nil {
		return Outcome{Platform: platform, Error: fmt.Sprintf("credentials: %v", err)}
	}

	outcome, err := runAdapter(ctx, adapter, Request{
		Images:      images,
		Caption:     caption,
		Credentials: *creds,
	})
	if err != nil {
		c.logger.Error().Err(err).Str("platform", platform).Msg("publish: platform failed")
		return Outcome{Platform: platform, Error: err.Error()}
	}
	c.logger.Info().Str("platform", platform).Msg("publish: platform succeeded")
	return *outcome
}

// runAdapter shields the sequential loop from a panicking adapter so the
// remaining platforms still get their attempt.
func runAdapter(ctx context.Context, adapter Adapter, req Request) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("%s adapter panic: %v", adapter.Platform(), r)
		}
	}()
	return adapter.Publish(ctx, req)
}
