package config

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver                  string  `mapstructure:"driver"`
	DBDsn                   string  `mapstructure:"dsn"`
	MaxOpenConns            int     `mapstructure:"max_open_conns"`
	DefaultMaxCredit        float64 `mapstructure:"default_max_credit"`
	DefaultWarningThreshold float64 `mapstructure:"default_warning_threshold"`
}
