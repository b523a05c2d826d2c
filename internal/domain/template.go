package domain

// Capability identifies the unit of adaptor selection.
type Capability string

const (
	CapabilityText  Capability = "text"
	CapabilityImage Capability = "image"
	CapabilityVideo Capability = "video"
)

// OutputFormat tags what shape a template's generation is expected to yield.
type OutputFormat string

const (
	OutputText  OutputFormat = "text"
	OutputJSON  OutputFormat = "json"
	OutputImage OutputFormat = "image"
	OutputVideo OutputFormat = "video"
)

// VariableType is a loose tag used for documentation and coercion hints.
type VariableType string

const (
	VariableString VariableType = "string"
	VariableNumber VariableType = "number"
	VariableList   VariableType = "list"
)

// VariableSpec declares one variable a template expects.
type VariableSpec struct {
	Name     string       `json:"name"`
	Required bool         `json:"required"`
	Type     VariableType `json:"type"`
}

// ModelConfig names the adaptor and model a template defaults to, plus the
// generation knobs passed through to the provider.
type ModelConfig struct {
	AdaptorID   string   `json:"adaptor_id"`
	ModelID     string   `json:"model_id"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// PromptTemplate is an immutable named template. Versioning happens outside
// the core: a loaded template is never mutated, a new version is a new row.
type PromptTemplate struct {
	ID           string         `json:"id"`
	Version      int            `json:"version"`
	Capability   Capability     `json:"capability"`
	SystemPrompt string         `json:"system_prompt"`
	UserPrompt   string         `json:"user_prompt"`
	Variables    []VariableSpec `json:"variables"`
	Output       OutputFormat   `json:"output"`
	DefaultModel ModelConfig    `json:"default_model"`
}

// VariableByName returns the declared spec for a variable, if any. Variables
// referenced in the prompt bodies but not declared are treated as required.
func (t PromptTemplate) VariableByName(name string) (VariableSpec, bool) {
	for _, v := range t.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return VariableSpec{}, false
}
