package config

import (
	"flag"
	"os"
	"time"

	custodia "github.com/docforensics/custodia"
	"github.com/docforensics/custodia/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string  data directory
//	-e         enable at-rest encryption
//	-p string  name of the env var holding the passphrase
//	-t int     session timeout, minutes
//
// Arguments are filtered through flagx.FilterArgs first so flags owned by
// other components (like -c for the JSON config) do not collide.
func parseFlags(cfg *custodia.Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-e", "-p", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "d", cfg.DataDir, "data directory")
	fs.BoolVar(&cfg.EncryptionEnabled, "e", cfg.EncryptionEnabled, "encrypt ledger files at rest")
	fs.StringVar(&cfg.PassphraseEnv, "p", cfg.PassphraseEnv, "env var holding the at-rest passphrase")

	sessionTimeout := fs.Int("t", int(cfg.SessionTimeout.Minutes()), "session timeout (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SessionTimeout = time.Duration(*sessionTimeout) * time.Minute
}
