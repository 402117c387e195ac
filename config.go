package session

import (
	"os"

	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"
)

// ConfigObject is the concrete Config. Zero fields fall back to defaults at
// read time so a partial YAML file is enough.
type ConfigObject struct {
	BaseURL          string `yaml:"base_url" json:"base_url"`
	HTTPTimeout      int    `yaml:"http_timeout" json:"http_timeout"`
	LoginRoute       string `yaml:"login_route" json:"login_route"`
	HomeRoute        string `yaml:"home_route" json:"home_route"`
	PendingView      string `yaml:"pending_view" json:"pending_view"`
	RejectedRouteKey string `yaml:"rejected_route_key" json:"rejected_route_key"`
	ContextKey       string `yaml:"context_key" json:"context_key"`
	StorePath        string `yaml:"store_path" json:"store_path"`
}

var _ Config = (*ConfigObject)(nil)

func (c *ConfigObject) GetBaseURL() string {
	if c.BaseURL == "" {
		return "http://localhost:5000/api"
	}
	return c.BaseURL
}

func (c *ConfigObject) GetHTTPTimeout() int {
	return c.HTTPTimeout
}

func (c *ConfigObject) GetLoginRoute() string {
	if c.LoginRoute == "" {
		return "/login"
	}
	return c.LoginRoute
}

func (c *ConfigObject) GetHomeRoute() string {
	if c.HomeRoute == "" {
		return "/"
	}
	return c.HomeRoute
}

func (c *ConfigObject) GetPendingView() string {
	if c.PendingView == "" {
		return "shared/pending"
	}
	return c.PendingView
}

func (c *ConfigObject) GetRejectedRouteKey() string {
	if c.RejectedRouteKey == "" {
		return "rejected_route"
	}
	return c.RejectedRouteKey
}

func (c *ConfigObject) GetContextKey() string {
	if c.ContextKey == "" {
		return "session"
	}
	return c.ContextKey
}

// GetStorePath is where the durable credential store lives. Empty means the
// host wires its own Store.
func (c *ConfigObject) GetStorePath() string {
	return c.StorePath
}

// LoadConfig reads a ConfigObject from a YAML file.
func LoadConfig(path string) (*ConfigObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read config file").
			WithMetadata(map[string]any{"path": path})
	}

	cfg := &ConfigObject{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse config file").
			WithMetadata(map[string]any{"path": path})
	}

	return cfg, nil
}
