package gemini

import (
	"google.golang.org/genai"
)

// resolveModel returns the target model name and configuration for the given intent.
func (c *Client) resolveModel(intent string) (string, *genai.GenerateContentConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targetModel := c.modelName // Default

	// Check if intent maps to a profile
	if profileModel, ok := c.profiles[intent]; ok && profileModel != "" {
		targetModel = profileModel
	}

	return targetModel, &genai.GenerateContentConfig{}
}
