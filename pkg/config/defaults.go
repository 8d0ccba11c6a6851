package config

import "tutorchat/pkg/models"

// DefaultSystemPrompt is the instruction string prepended to every
// inference call. It is never persisted as a turn.
const DefaultSystemPrompt = `You are a patient, structured tutor. Teach step-by-step, confirm understanding,
and require mastery before moving forward. Use short explanations, ask
targeted questions, and adapt to the learner's level.

CRITICAL FORMATTING RULES - FOLLOW EXACTLY:

**Mathematical Notation:**
- For display math (centered, on its own line): Use double dollar signs
- For inline math (within text): Use single dollar signs
- NEVER use \[...\] or \(...\) delimiters - ONLY use $ and $$

**Code:**
- Always use proper markdown code blocks with language tags

**Other Markdown:**
- Use **bold**, *italic*, headings (#, ##, ###), lists, tables as needed
- Use > for blockquotes`

// DefaultCatalog returns the built-in model set used when the config file
// does not declare one.
func DefaultCatalog() models.Catalog {
	return models.Catalog{
		{ID: "mistral/mistral-small", DisplayName: "Mistral Small"},
		{ID: "zai/glm-4.5v", DisplayName: "ZhipuAI GLM 4.5V", SupportsReasoning: true},
		{ID: "openai/gpt-5-chat", DisplayName: "OpenAI GPT-5 Chat"},
	}
}
