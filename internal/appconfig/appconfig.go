// Package appconfig holds the configuration of the document generator.
//
// Values are resolved in this order, the first one found wins: command line
// flags, environment variables, the YAML configuration file and the built-in
// defaults.
package appconfig

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/evidenceledger/docgen/internal/errl"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goccy/go-yaml"
)

// DevAdminPassword is used for the admin screens in development mode when no
// password is configured.
const DevAdminPassword = "pepe"

// Config is the configuration of the server.
type Config struct {
	Development bool   `yaml:"development"`
	Port        string `yaml:"port"`
	URL         string `yaml:"url"`

	// AdminPassword protects /admin. It can be a bcrypt hash or a plain password.
	AdminPassword string `yaml:"adminPassword"`
	SessionSecret string `yaml:"sessionSecret"`
	SessionTTL    string `yaml:"sessionTtl"`

	DBPath     string `yaml:"db"`
	UploadsDir string `yaml:"uploads"`

	LookupURL      string `yaml:"lookupUrl"`
	PostalURL      string `yaml:"postalUrl"`
	LookupInterval string `yaml:"lookupInterval"`
	Debounce       string `yaml:"debounce"`

	GeminiAPIKey string `yaml:"geminiApiKey"`
	GeminiModel  string `yaml:"geminiModel"`

	ChromeBin string `yaml:"chromeBin"`
	ChromeURL string `yaml:"chromeUrl"`

	HandoffPhone string `yaml:"handoffPhone"`

	// Seed loads sample catalog entries into an empty database.
	Seed bool `yaml:"seed"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port:           "8010",
		URL:            "http://localhost:8010",
		SessionTTL:     "2h",
		DBPath:         "docgen.sqlite",
		UploadsDir:     "uploads",
		LookupInterval: "200ms",
		Debounce:       "1s",
	}
}

// envVars maps environment variables to the fields they set.
var envVars = []struct {
	name string
	set  func(c *Config, v string)
}{
	{"DOCGEN_URL", func(c *Config, v string) { c.URL = v }},
	{"DOCGEN_PORT", func(c *Config, v string) { c.Port = v }},
	{"DOCGEN_ADMIN_PASSWORD", func(c *Config, v string) { c.AdminPassword = v }},
	{"DOCGEN_SESSION_SECRET", func(c *Config, v string) { c.SessionSecret = v }},
	{"DOCGEN_DB", func(c *Config, v string) { c.DBPath = v }},
	{"DOCGEN_UPLOADS", func(c *Config, v string) { c.UploadsDir = v }},
	{"DOCGEN_LOOKUP_URL", func(c *Config, v string) { c.LookupURL = v }},
	{"DOCGEN_POSTAL_URL", func(c *Config, v string) { c.PostalURL = v }},
	{"GEMINI_API_KEY", func(c *Config, v string) { c.GeminiAPIKey = v }},
	{"DOCGEN_CHROME_BIN", func(c *Config, v string) { c.ChromeBin = v }},
	{"DOCGEN_CHROME_URL", func(c *Config, v string) { c.ChromeURL = v }},
	{"DOCGEN_HANDOFF_PHONE", func(c *Config, v string) { c.HandoffPhone = v }},
}

// Load resolves the configuration from the command line arguments (without
// the program name) and the environment.
func Load(args []string, getenv func(string) string) (*Config, error) {

	flags := flag.NewFlagSet("docgen", flag.ContinueOnError)

	var (
		configFile string
		fromFlags  Config
	)
	flags.StringVar(&configFile, "config", "", "YAML configuration file")
	flags.BoolVar(&fromFlags.Development, "dev", false, "Development mode")
	flags.BoolVar(&fromFlags.Seed, "seed", false, "Load sample catalog entries into an empty database")
	flags.StringVar(&fromFlags.Port, "port", "", "Port for the web server")
	flags.StringVar(&fromFlags.URL, "url", "", "Public URL of the web server")
	flags.StringVar(&fromFlags.AdminPassword, "admin-password", "", "Admin password (plain or bcrypt hash)")
	flags.StringVar(&fromFlags.DBPath, "db", "", "SQLite database file")
	flags.StringVar(&fromFlags.UploadsDir, "uploads", "", "Directory where uploaded files are stored")
	flags.StringVar(&fromFlags.LookupURL, "lookup-url", "", "Base URL of the CPF/CNPJ registry")
	flags.StringVar(&fromFlags.ChromeBin, "chrome-bin", "", "Chrome binary used to print PDFs")
	flags.StringVar(&fromFlags.HandoffPhone, "handoff-phone", "", "WhatsApp number receiving the documents")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := Defaults()

	if configFile == "" {
		configFile = getenv("DOCGEN_CONFIG")
	}
	if configFile != "" {
		if err := cfg.loadFile(configFile); err != nil {
			return nil, err
		}
	}

	// The environment variable takes precedence over the file
	if strings.ToLower(getenv("DOCGEN_DEVELOPMENT")) == "true" {
		cfg.Development = true
	}
	for _, ev := range envVars {
		if v := getenv(ev.name); v != "" {
			ev.set(&cfg, v)
		}
	}

	// And the flags that were given take precedence over everything
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dev":
			cfg.Development = fromFlags.Development
		case "seed":
			cfg.Seed = fromFlags.Seed
		case "port":
			cfg.Port = fromFlags.Port
		case "url":
			cfg.URL = fromFlags.URL
		case "admin-password":
			cfg.AdminPassword = fromFlags.AdminPassword
		case "db":
			cfg.DBPath = fromFlags.DBPath
		case "uploads":
			cfg.UploadsDir = fromFlags.UploadsDir
		case "lookup-url":
			cfg.LookupURL = fromFlags.LookupURL
		case "chrome-bin":
			cfg.ChromeBin = fromFlags.ChromeBin
		case "handoff-phone":
			cfg.HandoffPhone = fromFlags.HandoffPhone
		}
	})

	if cfg.AdminPassword == "" && cfg.Development {
		cfg.AdminPassword = DevAdminPassword
	}
	if cfg.Development {
		cfg.Seed = true
	}

	// Sessions live in memory, so a secret generated at startup only costs
	// the open sessions on a restart
	if cfg.SessionSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.SessionSecret = secret
		slog.Debug("Generated session secret")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errl.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errl.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errl.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the resolved configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.AdminPassword, validation.Required.Error("admin password required, set DOCGEN_ADMIN_PASSWORD")),
		validation.Field(&c.SessionSecret, validation.Required, validation.Length(16, 0)),
		validation.Field(&c.SessionTTL, validation.By(durationRule)),
		validation.Field(&c.DBPath, validation.Required),
		validation.Field(&c.UploadsDir, validation.Required),
		validation.Field(&c.LookupURL, is.URL),
		validation.Field(&c.PostalURL, is.URL),
		validation.Field(&c.LookupInterval, validation.By(durationRule)),
		validation.Field(&c.Debounce, validation.By(durationRule)),
		validation.Field(&c.ChromeURL, is.URL),
		validation.Field(&c.HandoffPhone, is.Digit, validation.Length(10, 13)),
	)
}

func durationRule(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := time.ParseDuration(s); err != nil {
		return validation.NewError("validation_duration", "must be a duration like 2h or 500ms")
	}
	return nil
}

// Duration parses one of the duration fields, returning def when it is empty.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errl.Errorf("generating session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
