package character

// Character captures one named AI interviewer configuration: the pair of
// prompts plus the presentation attributes the frontend needs.
type Character struct {
	AgentName           string `yaml:"agent_name" json:"agent_name"`
	Role                string `yaml:"role" json:"role"`
	Description         string `yaml:"description" json:"description"`
	Tone                string `yaml:"tone" json:"tone"`
	DynamicPromptPrefix string `yaml:"dynamic_prompt_prefix" json:"dynamic_prompt_prefix"`
	AnalysisPrompt      string `yaml:"analysis_prompt" json:"analysis_prompt"`
	VoiceID             string `yaml:"voice_id,omitempty" json:"voice_id,omitempty"`
	AvatarURL           string `yaml:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Version             string `yaml:"version,omitempty" json:"version,omitempty"`
	Greeting            string `yaml:"greeting,omitempty" json:"greeting,omitempty"`
}
