// Package config provides type-safe environment variable loading with caching
// using Go generics. Each configuration type is loaded once and cached for
// subsequent calls.
//
// The package loads a .env file on first use (github.com/joho/godotenv) and parses
// environment variables into struct fields with github.com/caarlos0/env.
//
// Basic usage:
//
//	type Config struct {
//		Registry string `env:"ARBITER_REGISTRY" envDefault:"memory"`
//		Owner    string `env:"ARBITER_OWNER,required"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	// Or panic on failure (useful for startup)
//	config.MustLoad(&cfg)
//
// # Caching Behavior
//
// Each configuration type is parsed only once per process; different types are cached
// independently, so integration packages can own their own Config structs.
package config
