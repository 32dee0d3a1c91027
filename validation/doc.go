// Package validation checks configuration structs.
//
// Struct tags cover single-field rules:
//
//	type Config struct {
//	    Provider string `mapstructure:"provider" validate:"omitempty,oneof=external docker binary"`
//	}
//	err := validation.Validate(cfg)
//
// A Collector covers rules spanning fields:
//
//	c := validation.NewCollector()
//	c.Check(cfg.URI != "" || cfg.Provider != "external", "uri", "is required for the external provider")
//	err := c.Err()
//
// Both report INVALID_CONFIG errors whose "fields" detail lists every
// offending field by its configuration key.
package validation
