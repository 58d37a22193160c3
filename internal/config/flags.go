package config

import (
	"flag"
	"os"
	"time"

	"github.com/wordbank/lexstore/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-l int      lock expiry, hours
//	-k int      collapse-age threshold, days
//	-o int      hide-age threshold, days
//	-n          run maintenance jobs in dry-run (noop) mode
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 archive bucket
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. Duration
// flags are accepted as integers (hours or days) and converted.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-l", "-k", "-o", "-n", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	lockExpiryHours := fs.Int("l", int(config.LockExpiry.Hours()), "lock expiry (in hours)")
	collapseAgeDays := fs.Int("k", int(config.CollapseAge.Hours()/24), "collapse-age threshold (in days)")
	hideAgeDays := fs.Int("o", int(config.HideAge.Hours()/24), "hide-age threshold (in days)")

	fs.BoolVar(&config.MaintenanceNoOp, "n", config.MaintenanceNoOp, "maintenance dry-run mode")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 archive bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.LockExpiry = time.Duration(*lockExpiryHours) * time.Hour
	config.CollapseAge = time.Duration(*collapseAgeDays) * 24 * time.Hour
	config.HideAge = time.Duration(*hideAgeDays) * 24 * time.Hour
}
