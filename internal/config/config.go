// Package config holds the command-line and environment configuration of
// the chat server.
package config

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CHATBOT_PORT.
const EnvPrefix = "CHATBOT"

// Config is the server configuration.
type Config struct {
	ConfigFile string

	Bind           string
	Port           int
	PublicURL      string
	AllowedOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DynamoTable   string
	DynamoRegion  string

	MediaURL     string
	MediaTimeout time.Duration
	Catalog      string

	MaxConns    int
	IdleTimeout time.Duration
	SessionTTL  time.Duration
	MessageRate int
	ConnectRate int
	LogFormat   string
	Verbose     bool
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.RedisAddr != "" && c.DynamoTable != "" {
		return errors.New("--redis-addr and --dynamo-table cannot be used together")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat)
	}
	if c.MaxConns < 0 || c.MessageRate < 0 || c.ConnectRate < 0 {
		return errors.New("limits cannot be negative")
	}
	if c.MediaURL != "" && c.MediaTimeout <= 0 {
		return errors.New("--media-timeout must be positive when --media-url is set")
	}
	return nil
}

// NewCommand builds the root command. Flags can also be set through
// CHATBOT_* environment variables or a YAML file given with --config;
// explicit flags win over the environment, which wins over the file.
func NewCommand(cfg *Config, run func(ctx context.Context, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "chatbot",
		Short: "Anonymous one-to-one chat with matchmaking and tic-tac-toe.",
		Args:  cobra.ExactArgs(0),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := apply(v, cmd.Flags(), cfg.ConfigFile); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.ConfigFile, "config", "c", "", "path to a YAML config file (env: CHATBOT_CONFIG)")
	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: CHATBOT_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: CHATBOT_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "URL shared through the QR code (env: CHATBOT_PUBLIC_URL)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", []string{"*"}, "origins allowed to call the HTTP API (env: CHATBOT_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "store profiles in Redis at this address (env: CHATBOT_REDIS_ADDR)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password (env: CHATBOT_REDIS_PASSWORD)")
	fs.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number (env: CHATBOT_REDIS_DB)")
	fs.StringVar(&cfg.DynamoTable, "dynamo-table", "", "store profiles in this DynamoDB table (env: CHATBOT_DYNAMO_TABLE)")
	fs.StringVar(&cfg.DynamoRegion, "dynamo-region", "", "AWS region of the DynamoDB table (env: CHATBOT_DYNAMO_REGION)")
	fs.StringVar(&cfg.MediaURL, "media-url", "", "base URL of a suggestion service (env: CHATBOT_MEDIA_URL)")
	fs.DurationVar(&cfg.MediaTimeout, "media-timeout", 3*time.Second, "suggestion service timeout (env: CHATBOT_MEDIA_TIMEOUT)")
	fs.StringVar(&cfg.Catalog, "catalog", "", "YAML suggestion catalog replacing the built-in one (env: CHATBOT_CATALOG)")
	fs.IntVar(&cfg.MaxConns, "max-conns", 0, "maximum concurrent WebSocket connections, 0 for unlimited (env: CHATBOT_MAX_CONNS)")
	fs.DurationVar(&cfg.IdleTimeout, "idle-timeout", 30*time.Minute, "close connections idle this long, 0 to disable (env: CHATBOT_IDLE_TIMEOUT)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 24*time.Hour, "how long a disconnected identity can be resumed (env: CHATBOT_SESSION_TTL)")
	fs.IntVar(&cfg.MessageRate, "message-rate", 30, "chat messages allowed per user per minute, 0 for unlimited (env: CHATBOT_MESSAGE_RATE)")
	fs.IntVar(&cfg.ConnectRate, "connect-rate", 20, "connections allowed per IP per minute, 0 for unlimited (env: CHATBOT_CONNECT_RATE)")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "log format: text or json (env: CHATBOT_LOG_FORMAT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "log debug output (env: CHATBOT_VERBOSE)")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// apply fills every flag not set on the command line from the environment
// or the config file.
func apply(v *viper.Viper, fs *pflag.FlagSet, configFile string) error {
	if env := v.GetString("config"); configFile == "" && env != "" {
		configFile = env
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindEnv(f.Name)
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		val := fmt.Sprintf("%v", v.Get(f.Name))
		if f.Value.Type() == "stringSlice" {
			val = strings.Join(v.GetStringSlice(f.Name), ",")
		}
		if err := fs.Set(f.Name, val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
