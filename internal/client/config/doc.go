// Package config loads runtime configuration for the estately CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON or YAML file given with --config.
//  3. Command-line flags, bound by the cli package, which override earlier
//     values.
//
// # File schema
//
//	{
//	  "server_url": "http://127.0.0.1:8080",
//	  "session_file": "/home/me/.config/estately/session.json",
//	  "persona": "seller",
//	  "timeout": "10s"
//	}
package config
