package types

// Usage records token consumption for one or more LLM-backed actions.
// Dollar cost is derived from a price table at read time and is not stored
// here, so snapshots from different models can be summed safely.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// Model is the model the tokens were billed against. When usages for
	// different models are summed the field keeps the first non-empty value;
	// mixed-model totals are priced per-addend by the cost tracker.
	Model string `json:"model,omitempty"`
}

// Add returns the sum of u and other. The model name is kept from u unless
// u has none.
func (u Usage) Add(other Usage) Usage {
	sum := Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		Model:        u.Model,
	}
	if sum.Model == "" {
		sum.Model = other.Model
	}
	return sum
}

// IsZero reports whether no tokens have been recorded.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0
}
