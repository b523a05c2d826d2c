package adaptor

import "creatorlab/internal/domain"

// ModelInfo describes one catalog entry of an adaptor. Catalogs are static
// per adaptor and never mutated after registration.
type ModelInfo struct {
	ID                string              `json:"id"`
	ContextWindow     int                 `json:"context_window"`
	MaxOutputTokens   int                 `json:"max_output_tokens"`
	InputCostPerMTok  float64             `json:"input_cost_per_mtok"`
	OutputCostPerMTok float64             `json:"output_cost_per_mtok"`
	Capabilities      []domain.Capability `json:"capabilities"`
	Deprecated        bool                `json:"deprecated"`
}

// Supports reports whether the model carries the given capability flag.
func (m ModelInfo) Supports(cap domain.Capability) bool {
	for _, c := range m.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Descriptor identifies an adaptor and its static model catalog. The
// capability list is ordered (display order); the catalog keeps registration
// order for ListModels determinism.
type Descriptor struct {
	ID           string              `json:"id"`
	Capabilities []domain.Capability `json:"capabilities"`
	Models       []ModelInfo         `json:"models"`
}

// Model looks up a catalog entry by model id.
func (d Descriptor) Model(modelID string) (ModelInfo, bool) {
	for _, m := range d.Models {
		if m.ID == modelID {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// CostPerTokens computes the price of a call against a catalog entry. An
// unknown model falls back to the default tier, which prices at zero;
// cost estimation degrades, it never errors.
func CostPerTokens(info ModelInfo, inputTokens, outputTokens int) float64 {
	in := float64(inputTokens) * info.InputCostPerMTok / 1_000_000.0
	out := float64(outputTokens) * info.OutputCostPerMTok / 1_000_000.0
	return in + out
}
