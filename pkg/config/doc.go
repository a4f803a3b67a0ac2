// Package config provides configuration loading, defaults, and validation
// for Synapses.
//
// Configuration is loaded from a YAML file, filled with defaults, and
// optionally overridden by SYNAPSES_* environment variables. Environment
// variables always win over file values.
//
// Example:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Server.ListenAddress)
package config
