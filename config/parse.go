package config

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a duration string (e.g. "10m", "1h30m", "7d").
// Supports the standard time.ParseDuration units plus 'd' for days.
// The duration must be positive.
func ParseDuration(durationStr string) (time.Duration, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return 0, errors.New("duration string cannot be empty")
	}

	// Handle the 'd' suffix manually.
	if strings.HasSuffix(strings.ToLower(durationStr), "d") {
		numStr := strings.TrimSuffix(strings.ToLower(durationStr), "d")
		days, err := strconv.ParseInt(numStr, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number format for days in '%s': %w", durationStr, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
		}
		d := time.Duration(days) * 24 * time.Hour
		if d <= 0 {
			return 0, fmt.Errorf("duration %dd results in overflow", days)
		}
		return d, nil
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration format '%s': %w", durationStr, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: '%s'", durationStr)
	}
	return d, nil
}

// ParseSize parses a size string (e.g. "10MB", "5k", "1G") into bytes.
// Supports K, M, G suffixes with an optional trailing B,
// case-insensitive.
func ParseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(strings.ToUpper(sizeStr))
	if sizeStr == "" {
		return 0, errors.New("size string cannot be empty")
	}

	var multiplier int64 = 1
	suffix := ""
	switch {
	case strings.HasSuffix(sizeStr, "KB"):
		multiplier, suffix = 1024, "KB"
	case strings.HasSuffix(sizeStr, "K"):
		multiplier, suffix = 1024, "K"
	case strings.HasSuffix(sizeStr, "MB"):
		multiplier, suffix = 1024*1024, "MB"
	case strings.HasSuffix(sizeStr, "M"):
		multiplier, suffix = 1024*1024, "M"
	case strings.HasSuffix(sizeStr, "GB"):
		multiplier, suffix = 1024*1024*1024, "GB"
	case strings.HasSuffix(sizeStr, "G"):
		multiplier, suffix = 1024*1024*1024, "G"
	}

	numStr := strings.TrimSpace(strings.TrimSuffix(sizeStr, suffix))

	// big.Int catches both malformed input and overflow.
	numBig := new(big.Int)
	if _, ok := numBig.SetString(numStr, 10); !ok {
		return 0, fmt.Errorf("invalid number format in size string '%s'", sizeStr)
	}
	if numBig.Sign() < 0 {
		return 0, fmt.Errorf("size cannot be negative: %s", numBig.String())
	}
	if numBig.Sign() == 0 {
		return 0, nil
	}

	resultBig := new(big.Int).Mul(numBig, big.NewInt(multiplier))
	if !resultBig.IsInt64() {
		return 0, fmt.Errorf("size value %s%s exceeds max int64", numBig.String(), suffix)
	}
	return resultBig.Int64(), nil
}
