package config

type Config struct {
	StatementLimit    int `mapstructure:"statement_limit"`
	MaxStatementLimit int `mapstructure:"max_statement_limit"`
}
