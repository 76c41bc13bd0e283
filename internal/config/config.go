package config

import (
	"fmt"
	"os"

	"github.com/cuygur/llm-council/internal/council"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultCouncilModels is the roster used when no roster file overrides it.
var DefaultCouncilModels = []string{
	"openai/gpt-5.2",
	"anthropic/claude-sonnet-4.5",
	"google/gemini-3-pro-preview",
	"x-ai/grok-4",
}

// DefaultChairmanModel synthesizes the final answer.
const DefaultChairmanModel = "google/gemini-3-pro-preview"

// Config carries process-level settings plus the council roster loaded at
// startup. The roster portion is handed to callers as a council.Config
// snapshot; it is never mutated in place.
type Config struct {
	APIKey     string
	DataDir    string
	ListenAddr string
	Council    council.Config
}

// Roster is the shape of an optional council.yaml roster file.
type Roster struct {
	CouncilModels  []string          `yaml:"council_models"`
	ChairmanModel  string            `yaml:"chairman_model"`
	AuxiliaryModel string            `yaml:"auxiliary_model"`
	Personas       map[string]string `yaml:"model_personas"`
	Mode           string            `yaml:"mode"`
}

// Load reads the environment (after merging .env, if present) and the
// optional roster file at rosterPath. Pass "" to skip the roster file.
func Load(rosterPath string) (*Config, error) {
	// godotenv never overrides variables already set in the environment
	_ = godotenv.Load()

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("config: OPENROUTER_API_KEY is required")
	}

	dataDir := os.Getenv("COUNCIL_DATA_DIR")
	if dataDir == "" {
		dataDir = "data/conversations"
	}

	listenAddr := os.Getenv("COUNCIL_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8001"
	}

	cfg := &Config{
		APIKey:     apiKey,
		DataDir:    dataDir,
		ListenAddr: listenAddr,
		Council: council.Config{
			CouncilModels: append([]string(nil), DefaultCouncilModels...),
			ChairmanModel: DefaultChairmanModel,
		},
	}

	if rosterPath == "" {
		rosterPath = os.Getenv("COUNCIL_ROSTER_FILE")
	}
	if rosterPath != "" {
		if err := cfg.applyRosterFile(rosterPath); err != nil {
			return nil, err
		}
	}

	if len(cfg.Council.CouncilModels) == 0 {
		return nil, fmt.Errorf("config: council roster is empty")
	}
	if cfg.Council.ChairmanModel == "" {
		return nil, fmt.Errorf("config: chairman model is empty")
	}
	return cfg, nil
}

func (c *Config) applyRosterFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: reading roster file: %w", err)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if len(r.CouncilModels) > 0 {
		c.Council.CouncilModels = r.CouncilModels
	}
	if r.ChairmanModel != "" {
		c.Council.ChairmanModel = r.ChairmanModel
	}
	if r.AuxiliaryModel != "" {
		c.Council.AuxiliaryModel = r.AuxiliaryModel
	}
	if len(r.Personas) > 0 {
		c.Council.Personas = r.Personas
	}
	if r.Mode != "" {
		c.Council.Mode = r.Mode
	}
	return nil
}
