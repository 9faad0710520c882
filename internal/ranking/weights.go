package ranking

import (
	"encoding/json"
	"math"

	"evade-competitive/internal/apperr"
)

// Weights maps a category to a percentage in 0..100
type Weights map[Category]float64

// DefaultWeights is used until an admin stores a setting
var DefaultWeights = Weights{
	CategorySpeed:     50,
	CategoryEconomy:   30,
	CategoryCosmetics: 20,
}

// Validate enforces the admin-editable rule: every weight within 0..100, summing to 100
func (w Weights) Validate() error {
	total := 0.0
	for _, c := range WeightedCategories {
		v, ok := w[c]
		if !ok {
			return apperr.Validation("missing weight for %s", c)
		}
		if math.IsNaN(v) || v < 0 || v > 100 {
			return apperr.Validation("weight for %s must be between 0 and 100", c)
		}
		total += v
	}
	if math.Abs(total-100) > 1e-9 {
		return apperr.Validation("weights must sum to 100, got %g", total)
	}
	return nil
}

// ParseWeights decodes the stored setting, e.g. {"Speed":50,"Economy":30,"Cosmetics":20}
func ParseWeights(raw []byte) (Weights, error) {
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, err
	}
	w := make(Weights, len(decoded))
	for k, v := range decoded {
		w[Category(k)] = v
	}
	return w, nil
}

// Marshal encodes the weights for the settings table
func (w Weights) Marshal() ([]byte, error) {
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[string(k)] = v
	}
	return json.Marshal(out)
}
