package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database engines understood by bench new-site.
const (
	DBMariaDB  = "mariadb"
	DBPostgres = "postgres"
)

// Config is the root configuration for frappe-env. It is loaded once at
// process start and treated as read-only afterwards.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Site      SiteConfig      `mapstructure:"site"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Node      NodeConfig      `mapstructure:"node"`
	Python    PythonConfig    `mapstructure:"python"`
	Frappe    FrappeConfig    `mapstructure:"frappe"`
	Packages  PackagesConfig  `mapstructure:"packages"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Compose   ComposeConfig   `mapstructure:"compose"`
	History   HistoryConfig   `mapstructure:"history"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown_timeout"`
	BootstrapOnStart bool          `mapstructure:"bootstrap_on_start"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type WorkspaceConfig struct {
	Dir       string `mapstructure:"dir"`
	BenchName string `mapstructure:"bench_name"`
}

type SiteConfig struct {
	Name          string `mapstructure:"name"`
	AdminPassword string `mapstructure:"admin_password"`
	DeveloperMode bool   `mapstructure:"developer_mode"`
}

type DatabaseConfig struct {
	Type         string `mapstructure:"type"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	RootUser     string `mapstructure:"root_user"`
	RootPassword string `mapstructure:"root_password"`
}

// RedisConfig holds the three cache roles a bench expects.
type RedisConfig struct {
	Cache    RedisTarget `mapstructure:"cache"`
	Queue    RedisTarget `mapstructure:"queue"`
	SocketIO RedisTarget `mapstructure:"socketio"`
}

type RedisTarget struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// URL renders the target the way bench set-redis-*-host expects it.
func (r RedisTarget) URL() string {
	return fmt.Sprintf("redis://%s:%d", r.Host, r.Port)
}

type NodeConfig struct {
	Version     string `mapstructure:"version"`
	NVMDir      string `mapstructure:"nvm_dir"`
	NVMVersion  string `mapstructure:"nvm_version"`
	InstallYarn bool   `mapstructure:"install_yarn"`
}

type PythonConfig struct {
	Version             string `mapstructure:"version"`
	PyenvRoot           string `mapstructure:"pyenv_root"`
	AllowSystemFallback bool   `mapstructure:"allow_system_fallback"`
}

type FrappeConfig struct {
	Branch string   `mapstructure:"branch"`
	Repo   string   `mapstructure:"repo"`
	Apps   []string `mapstructure:"apps"`
}

type PackagesConfig struct {
	Install []string `mapstructure:"install"`
	Strict  bool     `mapstructure:"strict"`
}

type ProbeConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type ComposeConfig struct {
	File         string `mapstructure:"file"`
	Project      string `mapstructure:"project"`
	AppContainer string `mapstructure:"app_container"`
}

type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// legacyEnv maps config keys to the unprefixed variable names used by the
// devcontainer compose files. The FRAPPE_ENV_ form always wins.
var legacyEnv = map[string]string{
	"site.name":              "SITE_NAME",
	"site.admin_password":    "ADMIN_PASSWORD",
	"database.type":          "DB_TYPE",
	"database.host":          "DB_HOST",
	"database.root_password": "DB_ROOT_PASSWORD",
	"redis.cache.host":       "REDIS_CACHE",
	"redis.queue.host":       "REDIS_QUEUE",
	"redis.socketio.host":    "REDIS_SOCKETIO",
	"node.version":           "NODE_VERSION",
	"python.version":         "PYTHON_VERSION",
	"frappe.branch":          "FRAPPE_BRANCH",
	"frappe.apps":            "FRAPPE_APPS",
	"workspace.dir":          "WORKSPACE_DIR",
	"workspace.bench_name":   "BENCH_NAME",
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the FRAPPE_ENV_ prefix (e.g.
// FRAPPE_ENV_SITE_NAME) and the legacy unprefixed names.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("FRAPPE_ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "FRAPPE_ENV_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.expandPaths()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.bootstrap_on_start", false)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "frappe-env")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")

	v.SetDefault("workspace.dir", "/workspace/development")
	v.SetDefault("workspace.bench_name", "frappe-bench")

	v.SetDefault("site.developer_mode", true)

	v.SetDefault("database.type", DBMariaDB)
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.root_user", "root")

	v.SetDefault("redis.cache.port", 6379)
	v.SetDefault("redis.queue.port", 6379)
	v.SetDefault("redis.socketio.port", 6379)

	v.SetDefault("node.nvm_dir", filepath.Join(home, ".nvm"))
	v.SetDefault("node.nvm_version", "v0.39.7")
	v.SetDefault("node.install_yarn", true)

	v.SetDefault("python.pyenv_root", filepath.Join(home, ".pyenv"))
	v.SetDefault("python.allow_system_fallback", true)

	v.SetDefault("frappe.branch", "version-15")
	v.SetDefault("frappe.repo", "https://github.com/frappe/frappe")
	v.SetDefault("frappe.apps", []string{})

	v.SetDefault("packages.install", []string{
		"git", "curl", "build-tools", "pkg-config", "mariadb-client",
		"redis-tools", "libffi", "libssl", "cron", "wkhtmltopdf",
	})
	v.SetDefault("packages.strict", false)

	v.SetDefault("probe.max_attempts", 30)
	v.SetDefault("probe.interval", 5*time.Second)
	v.SetDefault("probe.dial_timeout", 2*time.Second)

	v.SetDefault("compose.file", ".devcontainer/docker-compose.yml")
	v.SetDefault("compose.project", "frappe-dev")
	v.SetDefault("compose.app_container", "frappe")

	v.SetDefault("history.path", "")
}

// expandPaths fills derived defaults that depend on other settings.
func (c *Config) expandPaths() {
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.Log.Dir, "history.db")
	}
	if c.Database.Type == DBPostgres && c.Database.Port == 3306 {
		c.Database.Port = 5432
	}
}
