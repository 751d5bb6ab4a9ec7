package ygggo_gamedb

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	mysql "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. YGGGO_GAMEDB_WORLD_HOST.
const EnvPrefix = "YGGGO_GAMEDB_"

// Supported driver names.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig describes one logical database. It is immutable once the
// database is opened.
type DatabaseConfig struct {
	// Driver allows overriding the sql driver ("mysql" in prod, "sqlite" or "sqlmock" in tests).
	Driver   string `yaml:"driver" env:"DRIVER"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Socket   string `yaml:"socket" env:"SOCKET"`
	Username string `yaml:"username" env:"USERNAME"`
	Password string `yaml:"password" env:"PASSWORD"`
	Database string `yaml:"database" env:"DATABASE"`
	TLS      bool   `yaml:"tls" env:"TLS"`
	// Info is the one-line form host;port-or-socket;user;password;database[;ssl].
	// When set it replaces the individual connection fields.
	Info   string            `yaml:"info" env:"INFO"`
	Params map[string]string `yaml:"params"`

	// Updates enables the schema updater for this database.
	Updates bool `yaml:"updates" env:"UPDATES"`
	// BaseFile is applied when the schema has no tables at all.
	BaseFile string `yaml:"base_file" env:"BASE_FILE"`
}

// UpdatesConfig holds process-wide updater switches.
type UpdatesConfig struct {
	SourceRoot         string `yaml:"source_root" env:"SOURCE_ROOT"`
	AutoSetup          bool   `yaml:"auto_setup" env:"AUTO_SETUP"`
	Redundancy         bool   `yaml:"redundancy" env:"REDUNDANCY"`
	ArchivedRedundancy bool   `yaml:"archived_redundancy" env:"ARCHIVED_REDUNDANCY"`
	AllowRehash        bool   `yaml:"allow_rehash" env:"ALLOW_REHASH"`
	// CleanDeadRefMaxCount bounds orphan cleanup; negative means unbounded.
	CleanDeadRefMaxCount int `yaml:"clean_dead_ref_max_count" env:"CLEAN_DEAD_REF_MAX_COUNT"`
}

// WorkerConfig tunes the per-database worker.
type WorkerConfig struct {
	WaitInterval       time.Duration `yaml:"wait_interval" env:"WAIT_INTERVAL"`
	DeadlockRetries    int           `yaml:"deadlock_retries" env:"DEADLOCK_RETRIES"`
	DeadlockBackoff    time.Duration `yaml:"deadlock_backoff" env:"DEADLOCK_BACKOFF"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"SLOW_QUERY_THRESHOLD"`
}

// Config is the process configuration: the set of logical databases plus
// the shared updater and worker settings.
type Config struct {
	Login     DatabaseConfig  `yaml:"login" envPrefix:"LOGIN_"`
	Character DatabaseConfig  `yaml:"character" envPrefix:"CHARACTER_"`
	World     DatabaseConfig  `yaml:"world" envPrefix:"WORLD_"`
	Hotfix    DatabaseConfig  `yaml:"hotfix" envPrefix:"HOTFIX_"`
	Updates   UpdatesConfig   `yaml:"updates" envPrefix:"UPDATES_"`
	Worker    WorkerConfig    `yaml:"worker" envPrefix:"WORKER_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

// NamedDatabaseConfig pairs a logical database name with its config.
type NamedDatabaseConfig struct {
	Name   string
	Config DatabaseConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	db := func(name, base string) DatabaseConfig {
		return DatabaseConfig{
			Driver:   DriverMySQL,
			Host:     "127.0.0.1",
			Port:     3306,
			Username: "trinity",
			Password: "trinity",
			Database: name,
			Updates:  true,
			BaseFile: base,
		}
	}
	return &Config{
		Login:     db("auth", "sql/base/auth_database.sql"),
		Character: db("characters", "sql/base/characters_database.sql"),
		World:     db("world", ""),
		Hotfix:    db("hotfixes", ""),
		Updates: UpdatesConfig{
			SourceRoot:           ".",
			AutoSetup:            true,
			Redundancy:           true,
			ArchivedRedundancy:   false,
			AllowRehash:          true,
			CleanDeadRefMaxCount: 3,
		},
		Worker: WorkerConfig{
			WaitInterval:       defaultWaitInterval,
			DeadlockRetries:    defaultDeadlockRetries,
			DeadlockBackoff:    10 * time.Millisecond,
			SlowQueryThreshold: 0,
		},
	}
}

// LoadFile reads a yaml config on top of DefaultConfig and applies
// environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from YGGGO_GAMEDB_* variables. Unset variables leave
// the current value untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Databases returns the configured logical databases in bootstrap order.
// Databases with an empty database name are skipped.
func (c *Config) Databases() []NamedDatabaseConfig {
	all := []NamedDatabaseConfig{
		{Name: "login", Config: c.Login},
		{Name: "character", Config: c.Character},
		{Name: "world", Config: c.World},
		{Name: "hotfix", Config: c.Hotfix},
	}
	out := all[:0]
	for _, d := range all {
		if d.Config.Database == "" && d.Config.Info == "" {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Disable removes the named logical database from c.
func (c *Config) Disable(name string) {
	switch name {
	case "login":
		c.Login = DatabaseConfig{}
	case "character":
		c.Character = DatabaseConfig{}
	case "world":
		c.World = DatabaseConfig{}
	case "hotfix":
		c.Hotfix = DatabaseConfig{}
	}
}

// ParseConnectionInfo parses host;port-or-socket;user;password;database[;ssl].
// A host of "." makes the second field a unix socket path.
func ParseConnectionInfo(info string) (DatabaseConfig, error) {
	parts := strings.Split(info, ";")
	if len(parts) != 5 && len(parts) != 6 {
		return DatabaseConfig{}, fmt.Errorf("connection info %q: want 5 or 6 fields, got %d", info, len(parts))
	}
	c := DatabaseConfig{
		Driver:   DriverMySQL,
		Host:     parts[0],
		Username: parts[2],
		Password: parts[3],
		Database: parts[4],
	}
	if c.Host == "." {
		c.Host = ""
		c.Socket = parts[1]
	} else if parts[1] != "" {
		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("connection info %q: bad port: %w", info, err)
		}
		c.Port = port
	}
	if len(parts) == 6 {
		c.TLS = strings.EqualFold(parts[5], "ssl")
	}
	return c, nil
}

// resolved expands Info into the individual fields.
func (c DatabaseConfig) resolved() (DatabaseConfig, error) {
	if strings.TrimSpace(c.Info) == "" {
		if c.Driver == "" {
			c.Driver = DriverMySQL
		}
		return c, nil
	}
	parsed, err := ParseConnectionInfo(c.Info)
	if err != nil {
		return c, err
	}
	if c.Driver != "" {
		parsed.Driver = c.Driver
	}
	parsed.Params = c.Params
	parsed.Updates = c.Updates
	parsed.BaseFile = c.BaseFile
	return parsed, nil
}

// withoutDatabase returns a copy that connects to the server rather than a schema.
func (c DatabaseConfig) withoutDatabase() DatabaseConfig {
	c.Info = ""
	switch c.Driver {
	case DriverPostgres:
		c.Database = "postgres"
	default:
		c.Database = ""
	}
	return c
}

// dsnFromConfig returns a driver specific DSN.
func dsnFromConfig(c DatabaseConfig) (string, error) {
	c, err := c.resolved()
	if err != nil {
		return "", err
	}
	switch c.Driver {
	case DriverSQLite:
		return sqliteDSN(c), nil
	case DriverPostgres:
		return postgresDSN(c), nil
	default:
		return mysqlDSN(c), nil
	}
}

func mysqlDSN(c DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = c.Username
	mc.Passwd = c.Password
	mc.DBName = c.Database
	if c.Socket != "" {
		mc.Net = "unix"
		mc.Addr = c.Socket
	} else {
		mc.Net = "tcp"
		port := c.Port
		if port <= 0 {
			port = 3306
		}
		mc.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	}
	if c.TLS {
		mc.TLSConfig = "true"
	} else {
		mc.TLSConfig = "false"
	}
	mc.ParseTime = true
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

func postgresDSN(c DatabaseConfig) string {
	u := url.URL{Scheme: "postgres", Path: "/" + c.Database}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	q := url.Values{}
	if c.Socket != "" {
		q.Set("host", c.Socket)
	} else {
		port := c.Port
		if port <= 0 {
			port = 5432
		}
		u.Host = fmt.Sprintf("%s:%d", c.Host, port)
	}
	if c.TLS {
		q.Set("sslmode", "require")
	} else {
		q.Set("sslmode", "disable")
	}
	for k, v := range c.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func sqliteDSN(c DatabaseConfig) string {
	path := c.Database
	if path == "" {
		path = ":memory:"
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	for k, v := range c.Params {
		q.Add(k, v)
	}
	return path + "?" + q.Encode()
}
