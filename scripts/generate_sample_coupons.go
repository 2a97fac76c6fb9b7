package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"petshop/internal/model"

	"github.com/shopspring/decimal"
)

// Writes sample coupon files for COUPON_FILES, one JSON definition per line:
//
//	data/coupons/base.jsonl.gz          evergreen coupons
//	data/coupons/black-friday.jsonl.gz  a campaign that also overrides FRETEGRATIS
//
// Later files win on duplicate codes, so importing both in that order keeps
// the campaign's version of FRETEGRATIS.
func main() {
	dataDir := "data/coupons"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	yearEnd := time.Date(now.Year(), 12, 31, 23, 59, 59, 0, time.UTC)
	blackFriday := time.Date(now.Year(), 11, 24, 0, 0, 0, 0, time.UTC)

	files := map[string][]model.Coupon{
		"base.jsonl.gz": {
			{
				Code:         "BEMVINDO10",
				Description:  "10% na primeira compra",
				Type:         model.CouponPercentage,
				Value:        decimal.NewFromInt(10),
				MaxDiscount:  ptr(decimal.NewFromInt(50)),
				PerUserLimit: ptr(1),
				Active:       true,
			},
			{
				Code:           "FRETEGRATIS",
				Description:    "Frete grátis acima de R$ 199",
				Type:           model.CouponFreeShipping,
				MinOrderAmount: ptr(decimal.NewFromInt(199)),
				Active:         true,
			},
			{
				Code:                 "RACAO15",
				Description:          "R$ 15 off em rações",
				Type:                 model.CouponFixed,
				Value:                decimal.NewFromInt(15),
				MinOrderAmount:       ptr(decimal.NewFromInt(100)),
				ApplicableCategories: []string{"racao"},
				Active:               true,
				ValidFrom:            now,
				ValidTo:              yearEnd,
			},
			{
				Code:               "PETISCO3X2",
				Description:        "Leve 3 petiscos, pague 2",
				Type:               model.CouponBuyXGetY,
				ApplicableProducts: []string{"petisco-bifinho-500g"},
				BuyQuantity:        2,
				GetQuantity:        1,
				Active:             true,
			},
		},
		"black-friday.jsonl.gz": {
			{
				Code:        "BLACKPET30",
				Description: "30% em tudo na Black Friday",
				Type:        model.CouponPercentage,
				Value:       decimal.NewFromInt(30),
				MaxDiscount: ptr(decimal.NewFromInt(150)),
				UsageLimit:  ptr(1000),
				Active:      true,
				ValidFrom:   blackFriday,
				ValidTo:     blackFriday.Add(4 * 24 * time.Hour),
			},
			{
				Code:        "FRETEGRATIS",
				Description: "Frete grátis sem mínimo na Black Friday",
				Type:        model.CouponFreeShipping,
				Active:      true,
				ValidFrom:   blackFriday,
				ValidTo:     blackFriday.Add(4 * 24 * time.Hour),
			},
		},
	}

	for filename, coupons := range files {
		filePath := filepath.Join(dataDir, filename)

		if err := createCouponFile(filePath, coupons); err != nil {
			log.Fatalf("Failed to create %s: %v", filename, err)
		}

		fmt.Printf("Created %s with %d coupons\n", filePath, len(coupons))
	}

	fmt.Println("\nSample coupon files created successfully!")
	fmt.Println("Import them with:")
	fmt.Println("  COUPON_FILES=data/coupons/base.jsonl.gz,data/coupons/black-friday.jsonl.gz")
}

func createCouponFile(filePath string, coupons []model.Coupon) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	enc := json.NewEncoder(gzipWriter)
	for _, coupon := range coupons {
		if err := enc.Encode(coupon); err != nil {
			return fmt.Errorf("failed to write coupon %s: %w", coupon.Code, err)
		}
	}

	return nil
}

func ptr[T any](v T) *T {
	return &v
}
