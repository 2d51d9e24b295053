package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dhcgn/application-tracker/credential"
	"github.com/dhcgn/application-tracker/gmail"
)

const (
	SourceGmail = "gmail"
	SourceIMAP  = "imap"
	SourceMbox  = "mbox"

	envPrefix = "APPTRACK"
)

// Config captures all options of a scan.
type Config struct {
	Source             string
	Query              string
	Max                int
	Out                string
	Append             bool
	CredentialsPath    string
	TokenPath          string
	MboxPath           string
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	IMAPFolder         string
	UseTLS             bool
	StartTLS           bool
	InsecureSkipVerify bool
	Location           *time.Location
	LogLevel           string
	LogDir             string
	IncludeHeader      []string
	IncludeBody        []string
	ExcludeHeader      []string
	ExcludeBody        []string
}

// imapPassword resolves a stored IMAP password when none was given.
var imapPassword = credential.IMAPPassword

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("config", "", "Config file (yaml, toml or json) with flag names as keys")
	flags.String("source", SourceGmail, "Mail source: gmail, imap or mbox")
	flags.String("query", "", "Search query (gmail defaults to a built-in application query)")
	flags.Int("max", 500, "Max messages to fetch")
	flags.String("out", "applications.csv", "CSV output file")
	flags.Bool("append", false, "Append to the existing CSV and skip message ids already in it")
	flags.String("credentials", "credentials.json", "Gmail OAuth client secret file")
	flags.String("token", "token.json", "Gmail OAuth token cache file")
	flags.String("mbox", "", "Path to the .mbox file to scan")
	flags.String("imap-host", "", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var, then the keyring)")
	flags.String("imap-folder", "INBOX", "IMAP folder to scan")
	flags.Bool("use-tls", true, "Use implicit TLS for the IMAP connection")
	flags.Bool("starttls", false, "Upgrade a plain IMAP connection with STARTTLS (with --use-tls=false)")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.String("timezone", "", "IANA time zone for the date column (default: local time)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (default: stdout only)")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")
	return nil
}

// LoadConfig resolves every option with the precedence flag, APPTRACK_*
// environment variable, config file, default, and validates the result.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := Config{
		Source:             strings.ToLower(strings.TrimSpace(v.GetString("source"))),
		Query:              v.GetString("query"),
		Max:                v.GetInt("max"),
		Out:                v.GetString("out"),
		Append:             v.GetBool("append"),
		CredentialsPath:    v.GetString("credentials"),
		TokenPath:          v.GetString("token"),
		MboxPath:           v.GetString("mbox"),
		IMAPHost:           v.GetString("imap-host"),
		IMAPPort:           v.GetInt("imap-port"),
		IMAPUser:           v.GetString("imap-user"),
		IMAPPass:           v.GetString("imap-pass"),
		IMAPFolder:         v.GetString("imap-folder"),
		UseTLS:             v.GetBool("use-tls"),
		StartTLS:           v.GetBool("starttls"),
		InsecureSkipVerify: v.GetBool("insecure-skip-verify"),
		LogLevel:           strings.ToLower(v.GetString("log-level")),
		LogDir:             v.GetString("log-dir"),
	}

	var err error
	for name, dst := range map[string]*[]string{
		"include-header": &cfg.IncludeHeader,
		"include-body":   &cfg.IncludeBody,
		"exclude-header": &cfg.ExcludeHeader,
		"exclude-body":   &cfg.ExcludeBody,
	} {
		if *dst, err = patterns(cmd, v, name); err != nil {
			return Config{}, err
		}
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	if cfg.Query == "" && cfg.Source == SourceGmail {
		cfg.Query = gmail.DefaultQuery
	}

	cfg.Location = time.Local
	if tz := v.GetString("timezone"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return Config{}, fmt.Errorf("invalid --timezone: %w", err)
		}
		cfg.Location = loc
	}

	if cfg.Source == SourceIMAP && cfg.IMAPPass == "" {
		cfg.IMAPPass = os.Getenv("IMAP_PASS")
	}
	if cfg.Source == SourceIMAP && cfg.IMAPPass == "" && cfg.IMAPUser != "" {
		pass, err := imapPassword(cfg.IMAPUser)
		if err != nil && !errors.Is(err, credential.ErrNotFound) {
			return Config{}, fmt.Errorf("read IMAP password from keyring: %w", err)
		}
		cfg.IMAPPass = pass
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// patterns prefers the repeated flag so regexes containing commas survive;
// env and config values are read as lists.
func patterns(cmd *cobra.Command, v *viper.Viper, name string) ([]string, error) {
	if cmd.Flags().Changed(name) {
		return cmd.Flags().GetStringArray(name)
	}
	return v.GetStringSlice(name), nil
}

func validateConfig(cfg Config) error {
	if cfg.Max <= 0 {
		return fmt.Errorf("--max must be positive")
	}
	if strings.TrimSpace(cfg.Out) == "" {
		return fmt.Errorf("--out is required")
	}

	switch cfg.Source {
	case SourceGmail:
		if cfg.CredentialsPath == "" {
			return fmt.Errorf("--credentials is required for --source gmail")
		}
		if cfg.TokenPath == "" {
			return fmt.Errorf("--token is required for --source gmail")
		}
	case SourceIMAP:
		if cfg.IMAPHost == "" {
			return fmt.Errorf("--imap-host is required for --source imap")
		}
		if cfg.IMAPUser == "" {
			return fmt.Errorf("--imap-user is required for --source imap")
		}
		if cfg.IMAPPass == "" {
			return fmt.Errorf("IMAP password must be provided via --imap-pass, IMAP_PASS env var or the keyring")
		}
		if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
			return fmt.Errorf("--imap-port must be between 1 and 65535")
		}
		if cfg.UseTLS && cfg.StartTLS {
			return fmt.Errorf("--starttls requires --use-tls=false")
		}
	case SourceMbox:
		if cfg.MboxPath == "" {
			return fmt.Errorf("--mbox is required for --source mbox")
		}
	default:
		return fmt.Errorf("invalid --source: %q (want gmail, imap or mbox)", cfg.Source)
	}

	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
