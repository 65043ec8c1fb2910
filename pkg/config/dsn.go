package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// ParsedDatabaseURL holds the parsed components of a database connection URL.
type ParsedDatabaseURL struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	Options  map[string]string
}

// ParseDatabaseURL parses a postgres:// or postgresql:// URL into its components.
func ParseDatabaseURL(rawURL string) (*ParsedDatabaseURL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	rawURL = strings.Replace(rawURL, "postgresql://", "postgres://", 1)

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if u.Scheme != "postgres" {
		return nil, fmt.Errorf("invalid database URL scheme: %s (expected postgres or postgresql)", u.Scheme)
	}

	result := &ParsedDatabaseURL{
		Host:    u.Hostname(),
		Port:    5432,
		SSLMode: "disable",
		Options: make(map[string]string),
	}

	if portStr := u.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid port in database URL: %w", err)
		}
		result.Port = port
	}

	if u.User != nil {
		result.User = u.User.Username()
		result.Password, _ = u.User.Password()
	}

	result.Database = strings.TrimPrefix(u.Path, "/")

	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if key == "sslmode" {
			result.SSLMode = values[0]
			continue
		}
		result.Options[key] = values[0]
	}

	return result, nil
}

// BuildDatabaseURL constructs a PostgreSQL connection URL from individual components.
func BuildDatabaseURL(host string, port int, user, password, database, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		user, url.QueryEscape(password), host, port, database, sslMode,
	)
}

// ToDSN converts the parsed URL to a libpq-style DSN string. Extra options
// are appended in key order.
func (p *ParsedDatabaseURL) ToDSN() string {
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)

	keys := make([]string, 0, len(p.Options))
	for k := range p.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, p.Options[k])
	}
	return b.String()
}

// ToURL converts the parsed components back to a URL string.
func (p *ParsedDatabaseURL) ToURL() string {
	return BuildDatabaseURL(p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}
