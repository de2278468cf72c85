package config

import (
	"chatcore/internal/models"
	"fmt"
	"log"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads the config file at path (yaml or json, picked by extension) and
// applies environment overrides on top of it.
func Load(path string) (*models.ConfigFile, error) {
	// sqlite unless the file or the environment says otherwise
	cfg := &models.ConfigFile{SelfContained: true}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		desc, _ := cleanenv.GetDescription(cfg, nil)
		return nil, fmt.Errorf("config: %w; %s", err, desc)
	}

	if cfg.JwtSecret == "" {
		return nil, fmt.Errorf("config: jwt secret is not set")
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("config: store timeout must be positive")
	}
	if !cfg.SelfContained && cfg.DbDatabase == "" {
		return nil, fmt.Errorf("config: database name is required when not self contained")
	}

	return cfg, nil
}

func MustLoad(path string) *models.ConfigFile {
	cfg, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}
