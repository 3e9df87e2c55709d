// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and validates the speedup service configuration.
//
// Precedence is ENV > YAML file > defaults. The YAML file is parsed strictly;
// unknown keys are a startup error. Environment keys use the SPEEDUP_ prefix.
package config
