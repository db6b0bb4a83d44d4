// smart-access-ctl runs one-shot maintenance tasks against the Smart
// Access database: relocking expired rooms, clearing lockouts, enrolling
// sealed biometric templates and generating keys.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/mohamed2108268/Smart-Access/internal/access/password"
	"github.com/mohamed2108268/Smart-Access/internal/access/sealed"
	"github.com/mohamed2108268/Smart-Access/internal/access/service"
	"github.com/mohamed2108268/Smart-Access/internal/access/store/sqlite"
	"github.com/mohamed2108268/Smart-Access/internal/db"
	"github.com/mohamed2108268/Smart-Access/internal/doorbus"
	"github.com/mohamed2108268/Smart-Access/internal/logging"
)

// ctlEnv holds the server settings the CLI shares.
type ctlEnv struct {
	DBPath          string        `env:"SMART_ACCESS_DB_PATH" envDefault:"./data/smart-access.db"`
	TemplateKeyPath string        `env:"SMART_ACCESS_TEMPLATE_KEY_PATH"`
	UnlockGrace     time.Duration `env:"SMART_ACCESS_UNLOCK_GRACE" envDefault:"30s"`
	LogLevel        string        `env:"SMART_ACCESS_LOG_LEVEL" envDefault:"warn"`
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, defaults ctlEnv, args []string) error
}

var commands = []command{
	{"lock-expired-rooms", "relock every room whose unlock grace period has elapsed", runLockExpired},
	{"unfreeze", "clear the lockout of an account: unfreeze USERNAME", runUnfreeze},
	{"enroll", "seal and store face and voice templates for an account", runEnroll},
	{"hash-password", "print an argon2id hash of a password read from stdin", runHashPassword},
	{"gen-key", "generate a template sealing key file", runGenKey},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(os.Stderr)
		return nil
	}

	var defaults ctlEnv
	if err := env.Parse(&defaults); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	for _, c := range commands {
		if c.name == args[0] {
			return c.run(context.Background(), defaults, args[1:])
		}
	}
	printUsage(os.Stderr)
	return fmt.Errorf("unknown command %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: smart-access-ctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-20s %s\n", c.name, c.summary)
	}
}

// parseFlags parses args into fs.  --help prints the flag set and returns
// errHelp so the command can exit quietly.
func parseFlags(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

var errHelp = errors.New("help requested")

func openDB(ctx context.Context, path string) (*dbHandle, error) {
	sqlDB, err := db.Open(ctx, db.Config{Path: path})
	if err != nil {
		return nil, err
	}
	return &dbHandle{DB: sqlDB, writer: db.NewWorker(sqlDB)}, nil
}

// ── lock-expired-rooms ───────────────────────────────────────────────────────

func runLockExpired(ctx context.Context, defaults ctlEnv, args []string) error {
	fs := pflag.NewFlagSet("lock-expired-rooms", pflag.ContinueOnError)
	dbPath := fs.String("db", defaults.DBPath, "sqlite database path")
	grace := fs.Duration("grace", defaults.UnlockGrace, "how long a room may stay unlocked")
	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}

	h, err := openDB(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer h.Close()

	logger := logging.New(defaults.LogLevel, "text", "smart-access-ctl")
	reaper := service.NewRoomReaper(sqlite.NewRoomStore(h.DB, h.writer), doorbus.Nop{}, service.ReaperConfig{Grace: *grace}, logger)
	n, err := reaper.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("relocked %d room(s)\n", n)
	return nil
}

// ── unfreeze ─────────────────────────────────────────────────────────────────

func runUnfreeze(ctx context.Context, defaults ctlEnv, args []string) error {
	fs := pflag.NewFlagSet("unfreeze", pflag.ContinueOnError)
	dbPath := fs.String("db", defaults.DBPath, "sqlite database path")
	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}
	if fs.NArg() != 1 {
		return errors.New("usage: smart-access-ctl unfreeze USERNAME")
	}

	h, err := openDB(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer h.Close()

	admin := h.admin(nil, defaults.LogLevel)
	if err := admin.UnfreezeAny(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("account %s unfrozen\n", fs.Arg(0))
	return nil
}

// ── enroll ───────────────────────────────────────────────────────────────────

func runEnroll(ctx context.Context, defaults ctlEnv, args []string) error {
	fs := pflag.NewFlagSet("enroll", pflag.ContinueOnError)
	dbPath := fs.String("db", defaults.DBPath, "sqlite database path")
	keyPath := fs.String("key", defaults.TemplateKeyPath, "template sealing key file")
	username := fs.StringP("username", "u", "", "account to enroll")
	facePath := fs.String("face", "", "face template file")
	voicePath := fs.String("voice", "", "voice template file")
	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}
	if *username == "" || *facePath == "" || *voicePath == "" || *keyPath == "" {
		return errors.New("enroll requires --username, --face, --voice and --key")
	}

	vault, err := sealed.LoadVault(*keyPath)
	if err != nil {
		return err
	}
	face, err := os.ReadFile(*facePath)
	if err != nil {
		return fmt.Errorf("read face template: %w", err)
	}
	voice, err := os.ReadFile(*voicePath)
	if err != nil {
		return fmt.Errorf("read voice template: %w", err)
	}

	h, err := openDB(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer h.Close()

	if err := h.admin(vault, defaults.LogLevel).EnrollTemplates(ctx, *username, face, voice); err != nil {
		return err
	}
	fmt.Printf("templates enrolled for %s\n", *username)
	return nil
}

// ── hash-password ────────────────────────────────────────────────────────────

func runHashPassword(_ context.Context, _ ctlEnv, args []string) error {
	fs := pflag.NewFlagSet("hash-password", pflag.ContinueOnError)
	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	plain := strings.TrimRight(line, "\r\n")
	if plain == "" {
		return errors.New("empty password")
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// ── gen-key ──────────────────────────────────────────────────────────────────

func runGenKey(_ context.Context, defaults ctlEnv, args []string) error {
	fs := pflag.NewFlagSet("gen-key", pflag.ContinueOnError)
	out := fs.StringP("out", "o", defaults.TemplateKeyPath, "where to write the key file (must not exist)")
	if err := parseFlags(fs, args); err != nil {
		return ignoreHelp(err)
	}
	if *out == "" {
		return errors.New("gen-key requires --out")
	}

	recipient, err := sealed.GenerateKeyFile(*out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\npublic key: %s\n", *out, recipient)
	return nil
}

func ignoreHelp(err error) error {
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}
