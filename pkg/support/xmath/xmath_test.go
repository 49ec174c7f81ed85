// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package xmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGCDAndLCM(t *testing.T) {
	assert.Equal(t, 6, GCD(12, 18))
	assert.Equal(t, 6, GCD(-12, 18))
	assert.Equal(t, 0, GCD(0, 0))
	assert.Equal(t, 36, LCM(12, 18))
	assert.Equal(t, 7, LCM(0, 7))
	assert.Equal(t, uint64(30), LCM[uint64](10, 15))
	assert.Equal(t, 60, LCMAll(4, 6, 5))
	assert.Equal(t, 1, LCMAll[int]())
	assert.Equal(t, 2040, FloorToMultiple(2048, 30))
}
