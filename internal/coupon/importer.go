package coupon

import (
	"context"
	"fmt"
	"sync"

	"petshop/internal/repository"

	"github.com/rs/zerolog"
)

// Importer loads coupon definition files and upserts them into a repository.
type Importer struct {
	loader  Loader
	coupons repository.CouponRepository
	logger  zerolog.Logger
}

// NewImporter creates a new coupon importer.
func NewImporter(loader Loader, coupons repository.CouponRepository, logger zerolog.Logger) *Importer {
	return &Importer{
		loader:  loader,
		coupons: coupons,
		logger:  logger.With().Str("component", "coupon-importer").Logger(),
	}
}

// Import loads every file concurrently and upserts the merged definitions.
// When several files define the same code, the file listed last wins.
// Usage counters of existing coupons are preserved.
func (im *Importer) Import(ctx context.Context, filePaths []string) (int, error) {
	if len(filePaths) == 0 {
		return 0, nil
	}

	im.logger.Info().Int("file_count", len(filePaths)).Msg("importing coupon files")

	type loadResult struct {
		index int
		set   Set
		err   error
	}

	resultChan := make(chan loadResult, len(filePaths))
	var wg sync.WaitGroup

	for i, filePath := range filePaths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			set, err := im.loader.Load(ctx, path)
			resultChan <- loadResult{index: index, set: set, err: err}
		}(i, filePath)
	}

	wg.Wait()
	close(resultChan)

	results := make([]loadResult, len(filePaths))
	for result := range resultChan {
		results[result.index] = result
	}

	merged := newMapSet(64)
	for i, result := range results {
		if result.err != nil {
			im.logger.Error().
				Err(result.err).
				Str("file", filePaths[i]).
				Msg("failed to load coupon file")
			return 0, fmt.Errorf("failed to load coupon file %s: %w", filePaths[i], result.err)
		}
		merged.merge(result.set)
	}

	for _, c := range merged.Coupons() {
		c := c
		if err := im.coupons.Upsert(ctx, &c); err != nil {
			return 0, fmt.Errorf("failed to upsert coupon %s: %w", c.Code, err)
		}
	}

	im.logger.Info().Int("coupons_imported", merged.Size()).Msg("coupon files imported")

	return merged.Size(), nil
}
