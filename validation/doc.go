// Package validation validates configuration structs using struct tags.
//
// Field names in error messages follow the mapstructure tag, so they match
// the keys users write in config files:
//
//	type Config struct {
//	    WorkerCount int `mapstructure:"worker_count" validate:"gt=0"`
//	}
//	err := validation.Struct(cfg) // INVALID_CONFIG: worker_count: must be greater than 0
package validation
