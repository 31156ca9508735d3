// Package config handles configuration loading for the weather-travel server.
//
// # Overview
//
// Configuration starts from built-in defaults, is overlaid by an optional
// YAML or TOML file (chosen by extension), and finally by environment
// variables. A .env file in the working directory is loaded first by the
// command, without overriding variables already set.
//
// # Environment Variable Expansion
//
// File values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${WEATHER_JWT_SECRET}"
//
// # Environment Overrides
//
//	MCP_TRANSPORT         stdio | http
//	MCP_HOST, MCP_PORT    HTTP listen address
//	MCP_LOG_LEVEL         debug | info | warn | error
//	MCP_AUTH_TOKEN        static bearer token
//	MCP_AUTH_TOKEN_HASH   bcrypt hash of the static token
//	MCP_AUTH_JWT_SECRET   HS256 secret (>= 32 bytes)
//	MCP_AUTH_SCOPES       comma-separated required scopes
//	MCP_PUBLIC_URL        externally visible base URL
//	MCP_ISSUER_URL        authorization server advertised in metadata
//	MCP_RESOURCE_URL      resource identifier advertised in metadata
//	WEATHER_TIMEOUT       per-attempt upstream timeout (seconds or duration)
//	WEATHER_BACKOFF       wait before retrying a 429 (seconds or duration)
//	WEATHER_AUDIT_DB      SQLite path for the invocation audit log
//
// # Duration Parsing
//
// Duration values in files use Go's time.ParseDuration syntax:
//
//	weather:
//	  timeout: "10s"
//	  backoff: "1s"
//	  max_retry_after: "5s"
//
// # Example
//
//	transport: http
//	server:
//	  host: 127.0.0.1
//	  port: 8000
//	auth:
//	  token: "${WEATHER_TOKEN}"
//	  scopes: ["weather:read"]
//	weather:
//	  rate_limit: 5
//	  breaker:
//	    enabled: true
//	audit:
//	  path: ./weather-audit.db
package config
