// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package hwconfig holds the hardware transfer limits the scheduling passes must respect.
//
// Limits are resolved like this:
//
//  1. The environment variable TILESCHED_LIMITS, if defined.
//  2. Next the package variable DefaultConfig, if not empty.
//  3. The built-in defaults.
//
// A configuration string is a comma-separated list of "key=value" pairs, e.g.:
// "max_tiles_per_phase=2048,max_phases_per_iteration=15". Missing keys keep their default value.
package hwconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

const (
	// DefaultMaxTilesPerPhase is the number of tiles a single phase can move.
	DefaultMaxTilesPerPhase = 2048

	// DefaultMaxPhasesPerIteration is the number of phases a stream can run in one iteration.
	DefaultMaxPhasesPerIteration = 15
)

// TILESCHED_LIMITS is the environment variable with the limits configuration to use.
const TILESCHED_LIMITS = "TILESCHED_LIMITS"

// DefaultConfig is used by New if TILESCHED_LIMITS is not set.
var DefaultConfig string

// Limits are the hardware capacity limits of the streams programmed from a schedule.
type Limits struct {
	MaxTilesPerPhase      int
	MaxPhasesPerIteration int
}

// Default returns the built-in limits.
func Default() Limits {
	return Limits{
		MaxTilesPerPhase:      DefaultMaxTilesPerPhase,
		MaxPhasesPerIteration: DefaultMaxPhasesPerIteration,
	}
}

// New returns the Limits configured by the environment, DefaultConfig, or the defaults.
func New() (Limits, error) {
	if config, found := os.LookupEnv(TILESCHED_LIMITS); found {
		limits, err := Parse(config)
		return limits, errors.WithMessagef(err, "while parsing $%s", TILESCHED_LIMITS)
	}
	if DefaultConfig != "" {
		return Parse(DefaultConfig)
	}
	return Default(), nil
}

// Parse a configuration string on top of the defaults. See package documentation for the format.
func Parse(config string) (Limits, error) {
	limits := Default()
	for _, part := range strings.Split(config, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			return limits, errors.Errorf("hwconfig: option %q is not in the format key=value", part)
		}
		key = strings.TrimSpace(key)
		v, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return limits, errors.Wrapf(err, "hwconfig: invalid value for %q", key)
		}
		switch key {
		case "max_tiles_per_phase":
			limits.MaxTilesPerPhase = v
		case "max_phases_per_iteration":
			limits.MaxPhasesPerIteration = v
		default:
			return limits, errors.Errorf("hwconfig: unknown option %q", key)
		}
	}
	if err := limits.Validate(); err != nil {
		return limits, err
	}
	klog.V(1).Infof("hwconfig: using %s", limits)
	return limits, nil
}

// Validate returns an error if any limit is not positive.
func (l Limits) Validate() error {
	if l.MaxTilesPerPhase <= 0 {
		return errors.Errorf("hwconfig: max_tiles_per_phase must be positive, got %d", l.MaxTilesPerPhase)
	}
	if l.MaxPhasesPerIteration <= 0 {
		return errors.Errorf("hwconfig: max_phases_per_iteration must be positive, got %d", l.MaxPhasesPerIteration)
	}
	return nil
}

// String returns the configuration string that Parse would read back into l.
func (l Limits) String() string {
	return fmt.Sprintf("max_tiles_per_phase=%d,max_phases_per_iteration=%d", l.MaxTilesPerPhase, l.MaxPhasesPerIteration)
}
