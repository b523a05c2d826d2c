package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"creatorlab/internal/domain"
)

// DefaultDefinitions returns the built-in pipeline set used when no
// definitions file is configured.
func DefaultDefinitions() map[string]Definition {
	return map[string]Definition{
		"idea-board": {
			Name:            "idea-board",
			BatchTemplateID: "idea-batch",
			ItemTemplateID:  "idea-image",
			AssetCapability: domain.CapabilityImage,
		},
		"promo-reel": {
			Name:            "promo-reel",
			BatchTemplateID: "promo-batch",
			ItemTemplateID:  "promo-video",
			AssetCapability: domain.CapabilityVideo,
		},
	}
}

// LoadDefinitions reads a JSON array of definitions from path. An empty path
// yields the defaults.
func LoadDefinitions(path string) (map[string]Definition, error) {
	if path == "" {
		return DefaultDefinitions(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline definitions: %w", err)
	}

	var defs []Definition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("decode pipeline definitions: %w", err)
	}

	out := make(map[string]Definition, len(defs))
	for _, def := range defs {
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		if _, dup := out[def.Name]; dup {
			return nil, fmt.Errorf("pipeline %q defined twice", def.Name)
		}
		out[def.Name] = def
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pipeline definitions file %q is empty", path)
	}
	return out, nil
}

func validateDefinition(def Definition) error {
	switch {
	case def.Name == "":
		return fmt.Errorf("pipeline definition without a name")
	case def.BatchTemplateID == "":
		return fmt.Errorf("pipeline %q: batch template id is required", def.Name)
	case def.ItemTemplateID == "":
		return fmt.Errorf("pipeline %q: item template id is required", def.Name)
	case def.AssetCapability != domain.CapabilityImage && def.AssetCapability != domain.CapabilityVideo:
		return fmt.Errorf("pipeline %q: asset capability must be image or video", def.Name)
	}
	return nil
}
