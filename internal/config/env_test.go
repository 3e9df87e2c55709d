// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseHelpers(t *testing.T) {
	t.Setenv("SPEEDUP_T_STR", "value")
	t.Setenv("SPEEDUP_T_EMPTY", "")
	t.Setenv("SPEEDUP_T_INT", "42")
	t.Setenv("SPEEDUP_T_BADINT", "forty")
	t.Setenv("SPEEDUP_T_I64", "104857600")
	t.Setenv("SPEEDUP_T_FLOAT", "1.5")
	t.Setenv("SPEEDUP_T_BOOL", "YES")
	t.Setenv("SPEEDUP_T_BADBOOL", "maybe")
	t.Setenv("SPEEDUP_T_DUR", "90s")
	t.Setenv("SPEEDUP_T_SECS", "3600")
	t.Setenv("SPEEDUP_T_LIST", " .mp4, ,.MOV ")

	assert.Equal(t, "value", ParseString("SPEEDUP_T_STR", "d"))
	assert.Equal(t, "d", ParseString("SPEEDUP_T_EMPTY", "d"))
	assert.Equal(t, "d", ParseString("SPEEDUP_T_UNSET", "d"))

	assert.Equal(t, 42, ParseInt("SPEEDUP_T_INT", 1))
	assert.Equal(t, 1, ParseInt("SPEEDUP_T_BADINT", 1))
	assert.Equal(t, int64(100<<20), ParseInt64("SPEEDUP_T_I64", 0))
	assert.InDelta(t, 1.5, ParseFloat("SPEEDUP_T_FLOAT", 0), 1e-9)

	assert.True(t, ParseBool("SPEEDUP_T_BOOL", false))
	assert.True(t, ParseBool("SPEEDUP_T_BADBOOL", true))

	assert.Equal(t, 90*time.Second, ParseDuration("SPEEDUP_T_DUR", 0))
	assert.Equal(t, time.Hour, ParseDuration("SPEEDUP_T_SECS", 0))

	assert.Equal(t, []string{".mp4", ".MOV"}, ParseList("SPEEDUP_T_LIST", nil))
	assert.Equal(t, []string{"x"}, ParseList("SPEEDUP_T_UNSET", []string{"x"}))
}
