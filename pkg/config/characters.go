package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CharactersConfig holds the character roster loaded from YAML.
type CharactersConfig struct {
	Characters []CharacterSeed `yaml:"characters"`
}

// CharacterSeed describes one AI character to seed into the store at startup.
type CharacterSeed struct {
	Name      string `yaml:"name"`
	Handle    string `yaml:"handle"`
	Persona   string `yaml:"persona"`
	AvatarURL string `yaml:"avatar_url"`
	PostStyle string `yaml:"post_style"`
}

// LoadCharacters loads the character roster from a YAML file.
func LoadCharacters(path string) (*CharactersConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read characters file: %w", err)
	}

	var cfg CharactersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse characters file: %w", err)
	}

	for i, c := range cfg.Characters {
		if c.Name == "" && c.Handle == "" {
			return nil, fmt.Errorf("character %d has neither name nor handle", i)
		}
	}

	return &cfg, nil
}
