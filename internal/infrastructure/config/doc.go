// Package config provides configuration loading for Greenhouse Core.
//
// Configuration is loaded in three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (defaultConfig)
//  2. YAML file (configs/config.yaml by default)
//  3. Environment variables (GREENHOUSE_SECTION_KEY pattern)
//
// Secrets (gateway credentials, cache password, telemetry token) should be
// supplied via environment variables rather than committed to the YAML file.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, ...})
package config
