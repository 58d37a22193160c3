package config

import (
	"encoding/json"
	"os"

	"github.com/wordbank/lexstore/internal/flagx"
	"github.com/wordbank/lexstore/internal/timex"
)

// JsonConfig is the DTO used only for reading JSON configuration files.
// Duration fields accept both strings such as "48h" and integer
// nanoseconds (see timex.Duration). After unmarshalling, values are copied
// into the runtime Config.
type JsonConfig struct {
	DatabaseDSN      string         `json:"database_dsn"`
	LockExpiry       timex.Duration `json:"lock_expiry"`
	CollapseAge      timex.Duration `json:"collapse_age"`
	HideAge          timex.Duration `json:"hide_age"`
	ImplicitSubtypes []string       `json:"implicit_subtypes"`
	MaintenanceNoOp  bool           `json:"maintenance_noop"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
}

// parseJson overlays configuration from the JSON file named by the -c or
// -config flag, if any. Zero-valued JSON fields leave the defaults intact.
// Unreadable or invalid files panic: a half-applied config file is worse
// than no startup.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.LockExpiry.Duration != 0 {
		config.LockExpiry = c.LockExpiry.Duration
	}
	if c.CollapseAge.Duration != 0 {
		config.CollapseAge = c.CollapseAge.Duration
	}
	if c.HideAge.Duration != 0 {
		config.HideAge = c.HideAge.Duration
	}
	if len(c.ImplicitSubtypes) > 0 {
		config.ImplicitSubtypes = c.ImplicitSubtypes
	}
	if c.MaintenanceNoOp {
		config.MaintenanceNoOp = true
	}
	if c.S3RootUser != "" {
		config.S3RootUser = c.S3RootUser
	}
	if c.S3RootPassword != "" {
		config.S3RootPassword = c.S3RootPassword
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
