package fixtures

import (
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"

	"github.com/kbukum/mongofixtures/blobstore"
	"github.com/kbukum/mongofixtures/config"
	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/logger"
	"github.com/kbukum/mongofixtures/validation"
)

// ConfigName is the base name of configuration files (fixtures.yml, .env.fixtures).
const ConfigName = "fixtures"

func init() {
	_ = validation.RegisterTag("mongouri", func(v string) bool {
		_, err := connstring.ParseAndValidate(v)
		return err == nil
	})
}

// Config configures a Fixtures instance.
type Config struct {
	Mongo    MongoConfig      `mapstructure:"mongo"`
	Fixtures FixturesConfig   `mapstructure:"fixtures"`
	GridFS   GridFSConfig     `mapstructure:"gridfs"`
	Server   ephemeral.Config `mapstructure:"server"`
	Logging  logger.Config    `mapstructure:"logging"`
}

// MongoConfig selects the server and database.
type MongoConfig struct {
	// URI of an external server. Empty falls back to MONGO_URI, then to an
	// ephemeral server.
	URI string `mapstructure:"uri" validate:"omitempty,mongouri"`
	// Database overrides the database name.
	Database string `mapstructure:"database"`
	// Isolated picks a random fixtures_<uuid> database when Database is empty.
	Isolated bool `mapstructure:"isolated"`
	// ConnectTimeout bounds connection attempts and server selection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gte=0"`
	// ReadyAttempts is how many pings to try before giving up on a server.
	ReadyAttempts int `mapstructure:"ready_attempts" validate:"gte=0"`
}

// FixturesConfig configures file-backed fixtures and identifier coercion.
type FixturesConfig struct {
	// RootPath is the directory fixture paths are resolved against.
	RootPath string `mapstructure:"root_path"`
	// UseObjectID converts string _id values to ObjectIDs on populate.
	UseObjectID bool `mapstructure:"use_object_id"`
}

// GridFSConfig enables file fixtures.
type GridFSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BucketName string `mapstructure:"bucket_name"`
	// ChunkSize in bytes. Zero uses the driver default.
	ChunkSize int32 `mapstructure:"chunk_size" validate:"gte=0"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Mongo.URI == "" {
		c.Mongo.URI = os.Getenv(ephemeral.EnvURI)
	}
	if c.Server.URI == "" {
		c.Server.URI = c.Mongo.URI
	}
	c.Server.ApplyDefaults()

	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = 10 * time.Second
	}
	if c.Mongo.ReadyAttempts == 0 {
		c.Mongo.ReadyAttempts = 30
	}
	if c.Fixtures.RootPath == "" {
		c.Fixtures.RootPath = "testdata"
	}
	if c.GridFS.BucketName == "" {
		c.GridFS.BucketName = blobstore.DefaultBucketName
	}
	c.Logging.ApplyDefaults()
}

// Validate checks field values and the rules spanning fields.
func (c *Config) Validate() error {
	col := validation.NewCollector()
	col.Merge("", validation.Validate(c))
	col.Check(c.Server.Provider != ephemeral.ProviderExternal || c.Server.URI != "",
		"mongo.uri", "is required for the external server provider")
	col.Check(validDatabaseName(c.Mongo.Database),
		"mongo.database", `must not contain spaces or any of /\."$`)
	col.Check(!strings.ContainsAny(c.GridFS.BucketName, "$\x00"),
		"gridfs.bucket_name", "must not contain $")
	if err := c.Logging.Validate(); err != nil {
		col.Add("logging", err.Error())
	}
	return col.Err()
}

func validDatabaseName(name string) bool {
	return len(name) < 64 && !strings.ContainsAny(name, "/\\. \"$\x00")
}

// LoadConfig reads fixtures.yml and .env files through the config loader,
// then applies defaults and validates. MONGO_URI maps to mongo.uri.
func LoadConfig(opts ...config.LoaderOption) (Config, error) {
	var cfg Config
	if err := config.LoadConfig(ConfigName, &cfg, opts...); err != nil {
		return Config{}, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
