package source

import "time"

// Config holds the knobs shared by the API-backed adapters.
type Config struct {
	PageSize       int           `mapstructure:"page_size"`
	MaxPages       int           `mapstructure:"max_pages"`
	PageDelay      time.Duration `mapstructure:"page_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	FetchDeadline  time.Duration `mapstructure:"fetch_deadline"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// withDefaults fills zero values with working defaults.
func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = 50
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 40
	}
	if c.PageDelay <= 0 {
		c.PageDelay = 500 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.FetchDeadline <= 0 {
		c.FetchDeadline = 10 * time.Minute
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; harvester/1.0)"
	}
	return c
}
