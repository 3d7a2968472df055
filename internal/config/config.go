package config

// Config is the complete runtime configuration for the client, the terminal
// front-end and the development server.
type Config interface {
	EnvConfig
	SessionConfig
	GatewayConfig
	ServerConfig
	ValidationConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetAPIBaseURL() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Session
	Gateway
	ServerVars
	Validation
}

func New() Config {
	return mainConfig{}
}
