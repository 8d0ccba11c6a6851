package models

// ModelDescriptor is static, process-wide model configuration. Descriptors
// are immutable after startup and looked up by ID; an unknown ID is a
// terminal client error.
type ModelDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	// ProviderRoute is the identifier sent to the inference gateway. It
	// defaults to ID when empty.
	ProviderRoute string `json:"provider_route,omitempty" yaml:"provider_route"`
	// SupportsReasoning enables forwarding of reasoning fragments for
	// models that emit them.
	SupportsReasoning bool `json:"supports_reasoning,omitempty" yaml:"supports_reasoning"`
}

// Route returns the gateway-facing model identifier.
func (m ModelDescriptor) Route() string {
	if m.ProviderRoute != "" {
		return m.ProviderRoute
	}
	return m.ID
}

// Catalog is the set of configured models.
type Catalog []ModelDescriptor

// Find returns the descriptor with the given ID.
func (c Catalog) Find(id string) (ModelDescriptor, bool) {
	for _, m := range c {
		if m.ID == id {
			return m, true
		}
	}
	return ModelDescriptor{}, false
}
