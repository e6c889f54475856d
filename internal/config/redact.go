// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

const maskedValue = "***"

// Redacted returns a copy safe to log: credentials are replaced by "***".
func (c AppConfig) Redacted() AppConfig {
	out := c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	out.Auth.APIKey = mask(c.Auth.APIKey)
	out.Resolver.APIKey = mask(c.Resolver.APIKey)
	out.Sources.Redis.Password = mask(c.Sources.Redis.Password)
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}
