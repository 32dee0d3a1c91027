package ephemeral

import (
	"os"
	"time"
)

// Provider names.
const (
	ProviderExternal = "external"
	ProviderDocker   = "docker"
	ProviderBinary   = "binary"
)

// EnvURI is the environment variable naming an external server.
const EnvURI = "MONGO_URI"

// Config selects and configures a server provider.
type Config struct {
	// Provider is external, docker or binary. Empty selects external when a
	// URI is known and docker otherwise.
	Provider string `mapstructure:"provider" validate:"omitempty,oneof=external docker binary"`
	// URI is the external server's connection string. Falls back to MONGO_URI.
	URI string `mapstructure:"uri"`
	// Image is the container image of the docker provider.
	Image string `mapstructure:"image"`
	// DockerHost overrides the daemon address; empty uses DOCKER_HOST.
	DockerHost string `mapstructure:"docker_host"`
	// Binary is the mongod executable of the binary provider.
	Binary string `mapstructure:"binary"`
	// Args are extra server arguments for docker and binary.
	Args []string `mapstructure:"args"`
	// StartTimeout bounds how long a new server may take to accept connections.
	StartTimeout time.Duration `mapstructure:"start_timeout" validate:"gte=0"`
	// StopTimeout is the grace period before a server is killed.
	StopTimeout time.Duration `mapstructure:"stop_timeout" validate:"gte=0"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.URI == "" {
		c.URI = os.Getenv(EnvURI)
	}
	if c.Provider == "" {
		if c.URI != "" {
			c.Provider = ProviderExternal
		} else {
			c.Provider = ProviderDocker
		}
	}
	if c.Image == "" {
		c.Image = "mongo:7"
	}
	if c.Binary == "" {
		c.Binary = "mongod"
	}
	if c.StartTimeout == 0 {
		c.StartTimeout = 60 * time.Second
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = 10 * time.Second
	}
}
