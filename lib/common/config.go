package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kain-Deterick/VK-Internship/lib/db"
	"github.com/pkg/errors"
)

// --------------------------------------------------------------------------
// Sweep modes
// --------------------------------------------------------------------------

type SweepMode string

const (
	// SweepModeIncremental reclaims up to SweepLimit entries per tick, one by one
	SweepModeIncremental SweepMode = "incremental"
	// SweepModeBatch reclaims every expired entry per tick in one call
	SweepModeBatch SweepMode = "batch"
)

// ParseSweepMode converts a string to a SweepMode
func ParseSweepMode(mode string) (SweepMode, error) {
	switch SweepMode(strings.ToLower(mode)) {
	case SweepModeIncremental:
		return SweepModeIncremental, nil
	case SweepModeBatch:
		return SweepModeBatch, nil
	default:
		return "", errors.Errorf("invalid sweep mode: %s. must be one of incremental, batch", mode)
	}
}

// --------------------------------------------------------------------------
// Configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters of the kvstorage command
type Config struct {
	// Logging configuration
	LogLevel string

	// Namespace of the store commands operate on
	Namespace string

	// Background expiry reclamation, an interval of 0 disables the sweeper
	SweepInterval time.Duration
	SweepMode     SweepMode
	SweepLimit    int

	// Use a virtual clock that only moves on explicit request
	VirtualClock bool

	// Records loaded into every new store
	Seed []db.Record
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log-level")
	}
	if c.Namespace == "" {
		return errors.New("namespace must not be empty")
	}
	if c.SweepInterval < 0 {
		return errors.Errorf("sweep-interval must not be negative, got %s", c.SweepInterval)
	}
	if _, err := ParseSweepMode(string(c.SweepMode)); err != nil {
		return errors.Wrap(err, "sweep-mode")
	}
	if c.SweepLimit <= 0 {
		return errors.Errorf("sweep-limit must be positive, got %d", c.SweepLimit)
	}
	for i, r := range c.Seed {
		if r.Key == "" {
			return errors.Errorf("seed record %d has an empty key", i)
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Store settings
	addSection("Store")
	addField("Namespace", c.Namespace)
	clockName := "real"
	if c.VirtualClock {
		clockName = "virtual"
	}
	addField("Clock", clockName)

	// Sweeper settings
	addSection("Sweeper")
	if c.SweepInterval == 0 {
		addField("Interval", "disabled")
	} else {
		addField("Interval", c.SweepInterval.String())
		addField("Mode", string(c.SweepMode))
		if c.SweepMode == SweepModeIncremental {
			addField("Limit per Tick", strconv.Itoa(c.SweepLimit))
		}
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Seed
	if len(c.Seed) > 0 {
		addSection("Seed")
		for _, r := range c.Seed {
			ttl := "none"
			if r.TTL > 0 {
				ttl = fmt.Sprintf("%d sec", r.TTL)
			}
			addField(r.Key, fmt.Sprintf("%d bytes, ttl %s", len(r.Value), ttl))
		}
	}

	return sb.String()
}
