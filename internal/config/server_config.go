package config

import (
	"fmt"
	"strings"
	"time"
)

// ServerConfig configures the in-memory development server.
type ServerConfig interface {
	GetPort() string
	GetTokenSecret() string
	GetTokenExpiry() time.Duration
	GetIssuer() string
	GetCodeExpiry() time.Duration
	GetDemoEmail() string
	GetDemoPassword() string
}

type ServerVars struct{}

var _ ServerConfig = ServerVars{}

func (ServerVars) GetPort() string {
	port := GetEnv("PORT", "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (ServerVars) GetTokenSecret() string {
	return GetEnv("TOKEN_SECRET", "dev-secret-change-me")
}

func (ServerVars) GetTokenExpiry() time.Duration {
	return GetEnvDuration("TOKEN_EXPIRY", 24*time.Hour)
}

func (ServerVars) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "twofa-dev-server")
}

func (ServerVars) GetCodeExpiry() time.Duration {
	return 10 * time.Minute
}

// GetDemoEmail names an account created at start-up so the server can be tried
// without signing up. Empty disables it.
func (ServerVars) GetDemoEmail() string {
	return GetEnv("DEMO_USER_EMAIL", "")
}

func (ServerVars) GetDemoPassword() string {
	return GetEnv("DEMO_USER_PASSWORD", "")
}
