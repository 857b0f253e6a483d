// Package kabu adapts a kabu-station style brokerage REST API (token auth,
// board quotes, positions, cash, sendorder) plus its websocket push feed to
// the broker contracts the engine consumes.
package kabu

import "github.com/kelseyhightower/envconfig"

// Config is read from the environment; the API password never lives in a
// config file.
type Config struct {
	APIURL   string `envconfig:"KABU_API_URL" default:"http://localhost:18080/kabusapi"`
	WSURL    string `envconfig:"KABU_WS_URL" default:"ws://localhost:18080/kabusapi/websocket"`
	Password string `envconfig:"KABU_API_PASSWORD" required:"true"`
	Exchange int    `envconfig:"KABU_EXCHANGE" default:"1"`
}

// LoadConfig reads the adapter configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
