// Command custodia-verify re-verifies ledger files at rest: the audit
// chain, every custody chain in the data directory, or a single exported
// JSON artifact. It prints one verification report per ledger and exits
// non-zero when any chain fails verification.
//
// With -o it additionally writes a plaintext JSON export of every readable
// ledger into the given directory, for handing chains to external reviewers.
//
// Usage:
//
//	custodia-verify [-c config.json] [-d datadir] [-e] [-p PASSPHRASE_ENV] [-f ledger.json] [-o exportdir]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/term"

	custodia "github.com/docforensics/custodia"
	"github.com/docforensics/custodia/cryptox"
	"github.com/docforensics/custodia/internal/config"
	"github.com/docforensics/custodia/internal/filex"
	"github.com/docforensics/custodia/internal/flagx"
	"github.com/docforensics/custodia/ledger"
	"github.com/docforensics/custodia/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()
	log := logging.NewDefault()
	ctx := context.Background()

	var file, exportDir string
	args := flagx.FilterArgs(os.Args[1:], []string{"-f", "-o"})
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.StringVar(&file, "f", "", "verify a single ledger file instead of the data directory")
	fs.StringVar(&exportDir, "o", "", "also write plaintext JSON exports into this directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cipher, err := buildCipher(cfg)
	if err != nil {
		log.Error(ctx, "cipher setup failed", "error", err)
		return 2
	}

	paths := []string{}
	if file != "" {
		paths = append(paths, file)
	} else {
		paths = append(paths, filepath.Join(cfg.DataDir, custodia.AuditChainFile))
		chains, err := filepath.Glob(filepath.Join(cfg.DataDir, custodia.CustodyDir, "custody_*.json"))
		if err != nil {
			log.Error(ctx, "custody scan failed", "error", err)
			return 2
		}
		paths = append(paths, chains...)
	}

	allValid := true
	for _, path := range paths {
		led, err := ledger.New(ledger.Options{Path: path, Cipher: cipher, Logger: log})
		if err != nil {
			log.Error(ctx, "ledger unreadable", "path", path, "error", err)
			allValid = false
			continue
		}
		report := led.Verify()
		printReport(path, report)
		if !report.IsValid {
			allValid = false
		}
		if exportDir != "" {
			if err := exportLedger(led, exportDir, path); err != nil {
				log.Error(ctx, "export failed", "path", path, "error", err)
				return 2
			}
		}
	}

	if !allValid {
		return 1
	}
	return 0
}

// exportLedger writes an unencrypted full-fidelity JSON copy of the chain,
// named after its source file.
func exportLedger(led *ledger.Ledger, dir, src string) error {
	if _, err := filex.EnsureDir(dir); err != nil {
		return err
	}
	out, err := led.ExportJSON()
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(filepath.Join(dir, filepath.Base(src)), out, 0o600)
}

func printReport(path string, report ledger.Report) {
	out, err := json.MarshalIndent(struct {
		Ledger string `json:"ledger"`
		ledger.Report
	}{Ledger: path, Report: report}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode report for %s: %v\n", path, err)
		return
	}
	fmt.Println(string(out))
}

// buildCipher derives the at-rest cipher for encrypted data directories.
// The passphrase comes from the configured environment variable, or from an
// interactive prompt when the variable is empty.
func buildCipher(cfg *custodia.Config) (cryptox.Cipher, error) {
	if !cfg.EncryptionEnabled {
		return nil, nil
	}
	passphrase := []byte(os.Getenv(cfg.PassphraseEnv))
	if len(passphrase) == 0 {
		fmt.Fprint(os.Stderr, "Passphrase: ")
		line, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		passphrase = line
	}
	defer cryptox.WipeBytes(passphrase)

	key := cryptox.DeriveKey(passphrase, []byte(cfg.KeySalt))
	defer cryptox.WipeBytes(key)
	return cryptox.NewAESGCM(key)
}
