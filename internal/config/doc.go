// Package config provides configuration types and loading for the
// transaction gateway.
//
// The configuration is a single YAML document describing the listener,
// the auth and transaction services, the response cache and the
// observability stack. Values may reference environment variables with
// ${VAR} or ${VAR:-default}.
//
// # Loading
//
//	cfg, err := config.LoadConfig("gateway.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    return err
//	}
//
// An empty path yields DefaultConfig. Omitted fields are filled by
// ApplyDefaults during loading.
package config
