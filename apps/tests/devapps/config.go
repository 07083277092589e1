// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the config.yaml required to run the samples. Secrets such as
// the client id can be kept out of the file and supplied through a .env file or
// the process environment instead.
type Config struct {
	ClientID          string   `yaml:"client_id"`
	Authority         string   `yaml:"authority"`
	ValidateAuthority bool     `yaml:"validate_authority"`
	Scopes            []string `yaml:"scopes"`
	RedirectURI       string   `yaml:"redirect_uri"`
	// Upn is only needed for ADFS authorities, where validation is per domain.
	Upn string `yaml:"upn"`
}

// CreateConfig creates the Config struct from a yaml file, layering .env and
// environment overrides on top.
func CreateConfig(fileName string) (*Config, error) {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", fileName, err)
	}

	config := &Config{ValidateAuthority: true}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", fileName, err)
	}

	if v := os.Getenv("MSAL_CLIENT_ID"); v != "" {
		config.ClientID = v
	}
	if v := os.Getenv("MSAL_AUTHORITY"); v != "" {
		config.Authority = v
	}

	if config.ClientID == "" {
		return nil, fmt.Errorf("client_id is not set in %s or MSAL_CLIENT_ID", fileName)
	}
	return config, nil
}
