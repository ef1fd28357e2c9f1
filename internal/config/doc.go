// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads xmlembed configuration.
//
// Precedence is ENV > .env file > YAML file > defaults. The YAML file is parsed
// strictly: unknown keys fail the load. Backend credentials are never read from
// YAML; they come from ACCESS_KEY, SECRET_KEY and ID_PDV only.
package config
