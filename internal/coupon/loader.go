package coupon

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"petshop/internal/model"

	"github.com/rs/zerolog"
)

// fileLoader implements Loader for reading gzipped coupon files.
type fileLoader struct {
	logger zerolog.Logger
}

// NewFileLoader creates a new file-based coupon loader.
func NewFileLoader(logger zerolog.Logger) Loader {
	return &fileLoader{
		logger: logger.With().Str("component", "coupon-loader").Logger(),
	}
}

func (l *fileLoader) Load(ctx context.Context, filePath string) (Set, error) {
	l.logger.Info().Str("file", filePath).Msg("loading coupon file")

	file, err := os.Open(filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("failed to open coupon file")
		return nil, fmt.Errorf("failed to open coupon file %s: %w", filePath, err)
	}
	defer file.Close()

	set, err := readSet(ctx, file, filePath)
	if err != nil {
		l.logger.Error().Err(err).Str("file", filePath).Msg("error reading coupon file")
		return nil, err
	}

	l.logger.Info().
		Str("file", filePath).
		Int("coupons_loaded", set.Size()).
		Msg("coupon file loaded successfully")

	return set, nil
}

// readSet decodes a gzipped stream of JSON coupon definitions, one per line.
// Blank lines are skipped; a malformed or invalid definition fails the whole file.
func readSet(ctx context.Context, r io.Reader, source string) (*mapSet, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gzipReader.Close()

	set := newMapSet(64)

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%10_000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var c model.Coupon
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("invalid coupon at %s:%d: %w", source, lineNo, err)
		}
		if err := validateDefinition(c); err != nil {
			return nil, fmt.Errorf("invalid coupon at %s:%d: %w", source, lineNo, err)
		}
		set.Add(c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading coupon file %s: %w", source, err)
	}

	return set, nil
}

func validateDefinition(c model.Coupon) error {
	switch {
	case model.NormalizeCouponCode(c.Code) == "":
		return fmt.Errorf("code is required")
	case !c.Type.Valid():
		return fmt.Errorf("unknown type %q", c.Type)
	case c.Value.IsNegative():
		return fmt.Errorf("value must not be negative")
	case c.Type == model.CouponBuyXGetY && (c.BuyQuantity < 1 || c.GetQuantity < 1):
		return fmt.Errorf("buy and get quantities must be positive")
	case !c.ValidTo.IsZero() && c.ValidTo.Before(c.ValidFrom):
		return fmt.Errorf("validTo is before validFrom")
	}
	return nil
}
