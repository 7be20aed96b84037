package config

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults are the shipped lifecycle tunables. Environment variables
// override them at load time.
type Defaults struct {
	BinRetentionDays        int `yaml:"bin_retention_days"`
	SweepIntervalMinutes    int `yaml:"sweep_interval_minutes"`
	UploadCredentialMinutes int `yaml:"upload_credential_minutes"`
}

// loadDefaults parses the embedded defaults file. The file ships with the
// binary, so a parse failure is a build defect; hardcoded values keep the
// process usable anyway.
func loadDefaults() Defaults {
	defaults := Defaults{
		BinRetentionDays:        3,
		SweepIntervalMinutes:    60,
		UploadCredentialMinutes: 30,
	}
	_ = yaml.Unmarshal(defaultsYAML, &defaults)
	return defaults
}
