// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package xmath implements small integer arithmetic helpers, generic over the integer types.
package xmath

import "golang.org/x/exp/constraints"

// GCD returns the greatest common divisor of a and b. GCD(0, 0) is 0.
func GCD[T constraints.Integer](a, b T) T {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b.
// If either value is 0 the other one is returned, so 0 works as the identity when folding.
func LCM[T constraints.Integer](a, b T) T {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	l := a / GCD(a, b) * b
	if l < 0 {
		l = -l
	}
	return l
}

// LCMAll folds LCM over values, starting from 1.
func LCMAll[T constraints.Integer](values ...T) T {
	var l T = 1
	for _, v := range values {
		l = LCM(l, v)
	}
	return l
}

// FloorToMultiple rounds value down to a multiple of divisor. The divisor must be positive.
func FloorToMultiple[T constraints.Integer](value, divisor T) T {
	return value / divisor * divisor
}
