// Package config loads environment variables into typed structs.
//
// A .env file in the working directory is read on the first call, then the
// struct is filled with caarlos0/env. Every struct type is parsed once per
// process; later loads of the same type return the cached copy, so call
// Reset in tests that change the environment.
//
//	type WebhookConfig struct {
//		VerifyToken string        `env:"WHATSAPP_VERIFY_TOKEN"`
//		Timeout     time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg WebhookConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// Nested structs are parsed recursively. Use envPrefix to reuse one
// struct for two settings:
//
//	type Limits struct {
//		Outbound ratelimiter.Config `envPrefix:"OUTBOUND_RATE_"`
//		Inbound  ratelimiter.Config `envPrefix:"INBOUND_RATE_"`
//	}
package config
