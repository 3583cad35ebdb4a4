// Package config provides configuration loading and validation for the bot.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// Default configuration constants.
const (
	DefaultWebHost         = "0.0.0.0"
	DefaultWebPort         = 5000
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultMongoDBTimeout     = 10 * time.Second
	DefaultMongoDBMaxPoolSize = 100

	DefaultRedisPoolSize = 10

	DefaultVoiceNickname   = "RegisterBot"
	DefaultVoiceClientName = "TeamTalkRegisterBot"
	DefaultServerName      = "TeamTalk Server"
	DefaultVoiceGender     = "neutral"

	DefaultGeneratedFileTTL = 10 * time.Minute
	DefaultRegisteredIPTTL  = 30 * 24 * time.Hour
	DefaultPendingRegTTL    = 7 * 24 * time.Hour
	DefaultCleanupInterval  = time.Hour
)

// Config sentinel errors.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrInvalidDuration = errors.New("invalid duration value")
)

// Config holds the complete application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Voice    VoiceConfig    `yaml:"teamtalk"`
	Web      WebConfig      `yaml:"web"`
	MongoDB  MongoDBConfig  `yaml:"mongodb"`
	Redis    RedisConfig    `yaml:"redis"`
	Files    FilesConfig    `yaml:"files"`
	Log      LogConfig      `yaml:"log"`
}

// TelegramConfig holds bot token and admin wiring.
type TelegramConfig struct {
	BotToken string  `yaml:"bot_token" env:"TG_BOT_TOKEN"`
	AdminIDs []int64 `yaml:"admin_ids"`
	// AdminLang is the language used for administrator notifications.
	AdminLang string `yaml:"admin_lang" env:"TG_ADMIN_LANG"`
	// ForceUserLang pins every dialogue to one language when set.
	ForceUserLang string `yaml:"force_user_lang" env:"TG_FORCE_USER_LANG"`
	// PublicRegistrationEnabled allows /start registration without a deeplink.
	PublicRegistrationEnabled bool `yaml:"public_registration_enabled" env:"TG_PUBLIC_REGISTRATION"`
	// DeeplinkRegistrationEnabled allows admin-generated one-shot invite links.
	DeeplinkRegistrationEnabled bool `yaml:"deeplink_registration_enabled" env:"TG_DEEPLINK_REGISTRATION"`
}

// AdminTelegramIDs returns admin chat ids as domain values.
func (c TelegramConfig) AdminTelegramIDs() []domain.TelegramID {
	ids := make([]domain.TelegramID, 0, len(c.AdminIDs))
	for _, id := range c.AdminIDs {
		ids = append(ids, domain.TelegramID(id))
	}
	return ids
}

// VoiceConfig holds the TeamTalk server connection and account settings.
type VoiceConfig struct {
	Host      string `yaml:"host" env:"TT_HOST"`
	TCPPort   int    `yaml:"tcp_port" env:"TT_TCP_PORT"`
	UDPPort   int    `yaml:"udp_port" env:"TT_UDP_PORT"`
	Encrypted bool   `yaml:"encrypted" env:"TT_ENCRYPTED"`

	Username   string `yaml:"username" env:"TT_USERNAME"`
	Password   string `yaml:"password" env:"TT_PASSWORD"`
	Nickname   string `yaml:"nickname" env:"TT_NICKNAME"`
	ClientName string `yaml:"client_name" env:"TT_CLIENT_NAME"`
	StatusText string `yaml:"status_text" env:"TT_STATUS_TEXT"`
	Gender     string `yaml:"gender" env:"TT_GENDER"`

	ServerName string `yaml:"server_name" env:"TT_SERVER_NAME"`
	// PublicHostname overrides Host in generated client configs and links.
	PublicHostname      string `yaml:"public_hostname" env:"TT_PUBLIC_HOSTNAME"`
	JoinChannel         string `yaml:"join_channel" env:"TT_JOIN_CHANNEL"`
	JoinChannelPassword string `yaml:"join_channel_password" env:"TT_JOIN_CHANNEL_PASSWORD"`

	// DefaultUserRights is the named-right list granted to created accounts.
	DefaultUserRights []string `yaml:"default_user_rights"`
	// RegistrationBroadcastEnabled announces new accounts to connected users.
	RegistrationBroadcastEnabled bool `yaml:"registration_broadcast_enabled" env:"TT_REGISTRATION_BROADCAST"`
}

// EffectiveUDPPort falls back to the TCP port when no UDP port is set.
func (c VoiceConfig) EffectiveUDPPort() int {
	if c.UDPPort > 0 {
		return c.UDPPort
	}
	return c.TCPPort
}

// EffectivePublicHost returns the hostname to embed in client artifacts.
func (c VoiceConfig) EffectivePublicHost() string {
	if c.PublicHostname != "" {
		return c.PublicHostname
	}
	return c.Host
}

// WebConfig holds the public registration web server configuration.
type WebConfig struct {
	Enabled         bool          `yaml:"enabled" env:"WEB_ENABLED"`
	Host            string        `yaml:"host" env:"WEB_HOST"`
	Port            int           `yaml:"port" env:"WEB_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"WEB_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WEB_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"WEB_SHUTDOWN_TIMEOUT"`
	// RootPath mounts all routes under a prefix when serving behind a proxy.
	RootPath string `yaml:"root_path" env:"WEB_ROOT_PATH"`
	// TrustProxyHeaders enables X-Forwarded-For / X-Real-IP client addressing.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"WEB_TRUST_PROXY_HEADERS"`
}

// Address returns the full listen address (host:port).
func (c WebConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MongoDBConfig holds MongoDB connection configuration.
type MongoDBConfig struct {
	URI         string        `yaml:"uri" env:"MONGODB_URI"`
	Database    string        `yaml:"database" env:"MONGODB_DATABASE"`
	Timeout     time.Duration `yaml:"timeout" env:"MONGODB_TIMEOUT"`
	MaxPoolSize uint64        `yaml:"max_pool_size" env:"MONGODB_MAX_POOL_SIZE"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	PoolSize int    `yaml:"pool_size" env:"REDIS_POOL_SIZE"`
}

// FilesConfig holds generated-artifact settings.
type FilesConfig struct {
	// ClientTemplateDir is an optional directory zipped together with the
	// generated .tt file into a ready-to-use client bundle.
	ClientTemplateDir string `yaml:"client_template_dir" env:"FILES_CLIENT_TEMPLATE_DIR"`
	// TempDir stores generated files awaiting download.
	TempDir string `yaml:"temp_dir" env:"FILES_TEMP_DIR"`
	// GeneratedFileTTL bounds the lifetime of generated files and their tokens.
	GeneratedFileTTL time.Duration `yaml:"generated_file_ttl" env:"FILES_GENERATED_TTL"`
	// RegisteredIPTTL bounds how long a web registration blocks its source IP.
	RegisteredIPTTL time.Duration `yaml:"registered_ip_ttl" env:"FILES_REGISTERED_IP_TTL"`
	// PendingRegistrationTTL bounds unconfirmed deeplink registrations.
	PendingRegistrationTTL time.Duration `yaml:"pending_registration_ttl" env:"FILES_PENDING_REG_TTL"`
	// CleanupInterval is the period of the temp-file cleanup task.
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"FILES_CLEANUP_INTERVAL"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"` // json | text
}

// DefaultConfig returns the configuration populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			AdminLang:                 domain.DefaultLanguage,
			PublicRegistrationEnabled: true,
		},
		Voice: VoiceConfig{
			Nickname:                     DefaultVoiceNickname,
			ClientName:                   DefaultVoiceClientName,
			ServerName:                   DefaultServerName,
			Gender:                       DefaultVoiceGender,
			RegistrationBroadcastEnabled: true,
		},
		Web: WebConfig{
			Host:            DefaultWebHost,
			Port:            DefaultWebPort,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		MongoDB: MongoDBConfig{
			URI:         "mongodb://localhost:27017",
			Database:    "teamtalk_reg",
			Timeout:     DefaultMongoDBTimeout,
			MaxPoolSize: DefaultMongoDBMaxPoolSize,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: DefaultRedisPoolSize,
		},
		Files: FilesConfig{
			TempDir:                "temp_files",
			GeneratedFileTTL:       DefaultGeneratedFileTTL,
			RegisteredIPTTL:        DefaultRegisteredIPTTL,
			PendingRegistrationTTL: DefaultPendingRegTTL,
			CleanupInterval:        DefaultCleanupInterval,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	var errs []error

	errs = c.validateTelegram(errs)
	errs = c.validateVoice(errs)
	errs = c.validateWeb(errs)
	errs = c.validateStorage(errs)
	errs = c.validateLog(errs)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
	}
	return nil
}

func (c *Config) validateTelegram(errs []error) []error {
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token is required"))
	}
	if _, ok := domain.ParseLanguageCode(c.Telegram.AdminLang); !ok {
		errs = append(errs, fmt.Errorf("telegram.admin_lang is not a valid language code: %q", c.Telegram.AdminLang))
	}
	if c.Telegram.ForceUserLang != "" {
		if _, ok := domain.ParseLanguageCode(c.Telegram.ForceUserLang); !ok {
			errs = append(errs, fmt.Errorf("telegram.force_user_lang is not a valid language code: %q", c.Telegram.ForceUserLang))
		}
	}
	return errs
}

func (c *Config) validateVoice(errs []error) []error {
	if c.Voice.Host == "" {
		errs = append(errs, errors.New("teamtalk.host is required"))
	}
	if c.Voice.TCPPort <= 0 || c.Voice.TCPPort > 65535 {
		errs = append(errs, fmt.Errorf("teamtalk.tcp_port must be between 1 and 65535, got %d", c.Voice.TCPPort))
	}
	if c.Voice.UDPPort < 0 || c.Voice.UDPPort > 65535 {
		errs = append(errs, fmt.Errorf("teamtalk.udp_port must be between 0 and 65535, got %d", c.Voice.UDPPort))
	}
	if c.Voice.Username == "" {
		errs = append(errs, errors.New("teamtalk.username is required"))
	}
	switch strings.ToLower(c.Voice.Gender) {
	case "male", "female", "neutral":
	default:
		errs = append(errs, fmt.Errorf("teamtalk.gender must be male, female or neutral, got %q", c.Voice.Gender))
	}
	return errs
}

func (c *Config) validateWeb(errs []error) []error {
	if !c.Web.Enabled {
		return errs
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("web.port must be between 1 and 65535, got %d", c.Web.Port))
	}
	if c.Web.ReadTimeout <= 0 {
		errs = append(errs, errors.New("web.read_timeout must be positive"))
	}
	if c.Web.WriteTimeout <= 0 {
		errs = append(errs, errors.New("web.write_timeout must be positive"))
	}
	return errs
}

func (c *Config) validateStorage(errs []error) []error {
	if c.MongoDB.URI == "" {
		errs = append(errs, errors.New("mongodb.uri is required"))
	}
	if c.MongoDB.Database == "" {
		errs = append(errs, errors.New("mongodb.database is required"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required"))
	}
	if c.Files.GeneratedFileTTL <= 0 {
		errs = append(errs, errors.New("files.generated_file_ttl must be positive"))
	}
	return errs
}

func (c *Config) validateLog(errs []error) []error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	return errs
}

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFromPath("")
}

// LoadFromPath loads configuration from a specific file path.
// If path is empty, it tries to find the config file in standard locations.
func LoadFromPath(path string) (*Config, error) {
	loader := NewLoader()
	return loader.Load(path)
}

// Loader handles configuration loading from files and environment variables.
type Loader struct {
	configPaths []string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		configPaths: []string{
			"configs/config.yaml",
			"config.yaml",
			"/etc/teamtalk-reg/config.yaml",
		},
	}
}

// WithConfigPaths sets custom config paths to search.
func (l *Loader) WithConfigPaths(paths []string) *Loader {
	l.configPaths = paths
	return l
}

// Load loads configuration from file and environment variables.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	configPath := path
	if configPath == "" {
		if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
			configPath = envPath
		} else {
			for _, p := range l.configPaths {
				if _, err := os.Stat(p); err == nil {
					configPath = p
					break
				}
			}
		}
	}

	if configPath != "" {
		if err := l.loadFromFile(cfg, configPath); err != nil {
			// Only fail hard when the path was explicitly requested.
			if path != "" || os.Getenv("CONFIG_PATH") != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
		return fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}
	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.loadEnvToStruct(reflect.ValueOf(cfg).Elem())
}

// loadEnvToStruct recursively loads environment variables into a struct.
func (l *Loader) loadEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.loadEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := l.setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}
	return nil
}

func (l *Loader) setFieldFromEnv(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrInvalidDuration, value)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %s", value)
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer value: %s", value)
		}
		field.SetUint(u)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		field.SetBool(b)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}
