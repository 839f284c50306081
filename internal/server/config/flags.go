package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/debtorkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-k string   encryption key (hex or base64, 32 bytes)
//	-P string   encryption passphrase (used when -k is empty)
//	-S string   encryption salt (used with -P)
//	-i int      scheduled refresh interval, minutes
//	-w int      scheduled refresh window, days
//	-m int      maximum period window, days
//	-n int      cache capacity, entries
//	-x int      cache TTL, minutes
//	-l string   log level
//	-a string   ops endpoint address
//
// Only the flags listed here are taken from os.Args (see flagx.FilterArgs),
// so -c/-config and unknown flags do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-k", "-P", "-S", "-i", "-w", "-m", "-n", "-x", "-l", "-a"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EncryptionKey, "k", config.EncryptionKey, "encryption key (hex or base64)")
	fs.StringVar(&config.EncryptionPassphrase, "P", config.EncryptionPassphrase, "encryption passphrase")
	fs.StringVar(&config.EncryptionSalt, "S", config.EncryptionSalt, "encryption salt")

	refreshInterval := fs.Int("i", int(config.RefreshInterval.Minutes()), "scheduled refresh interval (in minutes)")

	fs.IntVar(&config.DefaultWindowDays, "w", config.DefaultWindowDays, "scheduled refresh window (in days)")
	fs.IntVar(&config.MaxWindowDays, "m", config.MaxWindowDays, "maximum period window (in days)")
	fs.IntVar(&config.CacheCapacity, "n", config.CacheCapacity, "cache capacity")

	cacheTTL := fs.Int("x", int(config.CacheTTL.Minutes()), "cache TTL (in minutes)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.MetricsAddr, "a", config.MetricsAddr, "ops endpoint address")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RefreshInterval = time.Duration(*refreshInterval) * time.Minute
	config.CacheTTL = time.Duration(*cacheTTL) * time.Minute
}
