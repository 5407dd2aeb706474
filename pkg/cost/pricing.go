// Package cost tracks token spend across a session and the current billing
// cycle. Dollar amounts are always derived from the price table at record
// time; usage snapshots themselves carry only token counts.
package cost

import "github.com/entrhq/vouch/pkg/types"

// ModelPrice is the USD price per million tokens for one model.
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// priceTable lists per-model rates. Unknown models fall back to
// defaultPrice so cost accounting degrades to an estimate instead of zero.
var priceTable = map[string]ModelPrice{
	"gpt-4o":        {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":   {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4.1":       {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"gpt-4.1-mini":  {InputPerMTok: 0.40, OutputPerMTok: 1.60},
	"gpt-4.1-nano":  {InputPerMTok: 0.10, OutputPerMTok: 0.40},
	"o4-mini":       {InputPerMTok: 1.10, OutputPerMTok: 4.40},
}

var defaultPrice = ModelPrice{InputPerMTok: 2.50, OutputPerMTok: 10.00}

// PriceFor returns the rate for a model, falling back to the default rate
// for unknown models.
func PriceFor(model string) ModelPrice {
	if price, ok := priceTable[model]; ok {
		return price
	}
	return defaultPrice
}

// USD converts a usage snapshot to dollars using the snapshot's model rate.
func USD(usage types.Usage) float64 {
	price := PriceFor(usage.Model)
	return float64(usage.InputTokens)/1e6*price.InputPerMTok +
		float64(usage.OutputTokens)/1e6*price.OutputPerMTok
}
