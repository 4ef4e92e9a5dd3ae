// Package sysfs reads single-value kernel attribute files and walks ordered
// candidate lists of them. Attribute names differ by driver and kernel
// version, so callers describe each field as a list tried in order.
package sysfs

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ReadString returns the trimmed contents of path.
func ReadString(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(strings.TrimSpace(string(b)), "\x00"), nil
}

// ReadUint parses an unsigned decimal attribute.
func ReadUint(path string) (uint64, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}

// ReadInt parses a signed decimal attribute.
func ReadInt(path string) (int64, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(s, 10, 64)
}

// ReadFloat parses a float attribute, tolerating a trailing percent sign.
func ReadFloat(path string) (float64, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	return ParseFloat(s)
}

// ParseFloat trims whitespace and a trailing "%" before parsing.
func ParseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ErrNoCandidate is returned when no candidate in an ordered list produced a value.
var ErrNoCandidate = errors.New("sysfs: no candidate readable")

// FirstFloat returns the first candidate path that exists and parses.
func FirstFloat(paths ...string) (float64, string, error) {
	for _, p := range paths {
		if v, err := ReadFloat(p); err == nil {
			return v, p, nil
		}
	}
	return 0, "", ErrNoCandidate
}

// FirstString returns the first non-empty candidate.
func FirstString(paths ...string) (string, string, error) {
	for _, p := range paths {
		if v, err := ReadString(p); err == nil && v != "" {
			return v, p, nil
		}
	}
	return "", "", ErrNoCandidate
}

// FirstNonZero walks paths in order and returns the first nonzero reading. If
// every readable candidate is zero the first readable one is returned.
func FirstNonZero(paths ...string) (uint64, string, error) {
	var (
		fallback     uint64
		fallbackPath string
		found        bool
	)
	for _, p := range paths {
		v, err := ReadUint(p)
		if err != nil {
			continue
		}
		if v != 0 {
			return v, p, nil
		}
		if !found {
			fallback, fallbackPath, found = v, p, true
		}
	}
	if !found {
		return 0, "", ErrNoCandidate
	}
	return fallback, fallbackPath, nil
}

// RunCmd runs name with a deadline and returns combined output.
func RunCmd(timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return RunCmdContext(ctx, name, args...)
}

// RunCmdContext is RunCmd bounded by ctx instead of a fixed timeout.
func RunCmdContext(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", ctx.Err()
	}
	return string(out), err
}
