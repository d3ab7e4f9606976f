// Package config loads typed configuration structs from environment
// variables, with optional .env bootstrap for local development.
//
// Each component of the platform declares its own Config struct with
// `env` tags; required values (secrets, connection strings) use the
// `,required` tag option so a misconfigured process fails at startup
// rather than mid-request.
package config
