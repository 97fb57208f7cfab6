package warehouse

import (
	"fmt"
	"strings"

	"github.com/snowflakedb/gosnowflake"
)

// SnowflakeConfig holds the parts of a Snowflake connection.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  string
	Database  string
	Schema    string
	Warehouse string
}

// ParseConnectionString reads the semicolon separated form
// "ACCOUNT=xxx;USER=yyy;PASSWORD=zzz;DB=database.schema;WAREHOUSE=www".
// Unknown keys are ignored.
func ParseConnectionString(connStr string) SnowflakeConfig {
	parts := make(map[string]string)
	for _, field := range strings.Split(connStr, ";") {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			continue
		}
		parts[strings.ToUpper(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	database, schema, _ := strings.Cut(parts["DB"], ".")
	return SnowflakeConfig{
		Account:   parts["ACCOUNT"],
		User:      parts["USER"],
		Password:  parts["PASSWORD"],
		Database:  database,
		Schema:    schema,
		Warehouse: parts["WAREHOUSE"],
	}
}

// DSN renders the config with gosnowflake, which escapes the credentials.
func (c SnowflakeConfig) DSN() (string, error) {
	dsn, err := gosnowflake.DSN(&gosnowflake.Config{
		Account:   c.Account,
		User:      c.User,
		Password:  c.Password,
		Database:  c.Database,
		Schema:    c.Schema,
		Warehouse: c.Warehouse,
	})
	if err != nil {
		return "", fmt.Errorf("snowflake: invalid connection string: %w", err)
	}
	return dsn, nil
}
