package book

import (
	"fmt"

	"github.com/shopspring/decimal"

	"truex-fixmd/pkg/types"
)

// Normalize converts one of the three recognized non-FIX payload shapes
// into an Update. Accepted shapes, per spec.md §4.4:
//
//  1. Standard: {"bids": [...], "asks": [...]}
//  2. Kraken snapshot: {"bs": [...], "as": [...]}
//  3. Kraken incremental: {"b": [...], "a": [...]}
//
// Each entry may be a two-element array [price, size] or an object with
// "price"/"qty" (or "size") keys; both numeric and string representations
// are accepted. Unknown shapes return ErrUnknownFormat and the caller
// should drop the update.
func Normalize(source string, raw map[string]any) (Update, error) {
	if bids, asks, ok := extractPair(raw, "bids", "asks"); ok {
		return buildUpdate(source, bids, asks)
	}
	if bids, asks, ok := extractPair(raw, "bs", "as"); ok {
		return buildUpdate(source, bids, asks)
	}
	if bids, asks, ok := extractPair(raw, "b", "a"); ok {
		return buildUpdate(source, bids, asks)
	}
	return Update{}, fmt.Errorf("%w: no recognized bid/ask keys in payload", ErrUnknownFormat)
}

func extractPair(raw map[string]any, bidKey, askKey string) (bidRaw, askRaw any, ok bool) {
	bidRaw, hasBid := raw[bidKey]
	askRaw, hasAsk := raw[askKey]
	return bidRaw, askRaw, hasBid || hasAsk
}

func buildUpdate(source string, bidRaw, askRaw any) (Update, error) {
	u := Update{Source: source}
	if bidRaw != nil {
		levels, err := parseLevels(bidRaw)
		if err != nil {
			return Update{}, fmt.Errorf("%w: bids: %v", ErrUnknownFormat, err)
		}
		u.Bids = levels
		u.HasBids = true
	}
	if askRaw != nil {
		levels, err := parseLevels(askRaw)
		if err != nil {
			return Update{}, fmt.Errorf("%w: asks: %v", ErrUnknownFormat, err)
		}
		u.Asks = levels
		u.HasAsks = true
	}
	if !u.HasBids && !u.HasAsks {
		return Update{}, fmt.Errorf("%w: neither side present", ErrUnknownFormat)
	}
	return u, nil
}

func parseLevels(raw any) ([]types.PriceLevel, error) {
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of levels, got %T", raw)
	}
	out := make([]types.PriceLevel, 0, len(entries))
	for _, e := range entries {
		level, err := parseLevel(e)
		if err != nil {
			return nil, err
		}
		out = append(out, level)
	}
	return out, nil
}

func parseLevel(raw any) (types.PriceLevel, error) {
	switch v := raw.(type) {
	case []any:
		if len(v) < 2 {
			return types.PriceLevel{}, fmt.Errorf("level array has %d elements, want >= 2", len(v))
		}
		price, err := toDecimal(v[0])
		if err != nil {
			return types.PriceLevel{}, fmt.Errorf("price: %w", err)
		}
		size, err := toDecimal(v[1])
		if err != nil {
			return types.PriceLevel{}, fmt.Errorf("size: %w", err)
		}
		return types.PriceLevel{Price: price, Size: size}, nil
	case map[string]any:
		priceRaw, ok := v["price"]
		if !ok {
			return types.PriceLevel{}, fmt.Errorf("level object missing %q", "price")
		}
		sizeRaw, ok := v["qty"]
		if !ok {
			sizeRaw, ok = v["size"]
		}
		if !ok {
			return types.PriceLevel{}, fmt.Errorf("level object missing %q or %q", "qty", "size")
		}
		price, err := toDecimal(priceRaw)
		if err != nil {
			return types.PriceLevel{}, fmt.Errorf("price: %w", err)
		}
		size, err := toDecimal(sizeRaw)
		if err != nil {
			return types.PriceLevel{}, fmt.Errorf("size: %w", err)
		}
		return types.PriceLevel{Price: price, Size: size}, nil
	default:
		return types.PriceLevel{}, fmt.Errorf("unsupported level shape %T", raw)
	}
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case decimal.Decimal:
		return v, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported numeric type %T", raw)
	}
}
