// Package config loads fixture engine configuration with Viper.
//
// A YAML file is read first, then every environment variable is bound under
// all of its plausible nested key spellings, so MONGO_URI fills mongo.uri and
// GRIDFS_BUCKET_NAME fills gridfs.bucket_name. A .env file, when found, is
// loaded into the environment through godotenv before binding.
//
// Files are discovered by walking up from the working directory, which for
// go test is the package under test, until a go.mod is reached.
//
// # Usage
//
//	var cfg fixtures.Config
//	err := config.LoadConfig("mongofixtures", &cfg)
package config
