package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidEnv = errors.New("invalid environment variable")
)

var (
	DefaultTrue  = []string{"1", "yes", "true", "on"}  // DefaultTrue are the values considered "true" by [Env.Bool], and can be changed.
	DefaultFalse = []string{"0", "no", "false", "off"} // DefaultFalse are the values considered "false" by [Env.Bool], and can be changed.
)

// Env is a snapshot of environment variables, where keys are compared case-insensitive.
type Env struct {
	vars map[string]string
}

// OSEnv takes a snapshot of the process environment.
func OSEnv() Env {
	return EnvFrom(os.Environ())
}

// EnvFrom creates an [Env] from "KEY=value" pairs, like those returned by [os.Environ].
// Pairs without an "=" are ignored.
func EnvFrom(environ []string) Env {
	vars := map[string]string{}
	for i := 0; i < len(environ); i++ {
		key, val, found := strings.Cut(environ[i], "=")
		if !found {
			continue
		}
		vars[strings.ToLower(key)] = val
	}
	return Env{vars: vars}
}

// Lookup gets the trimmed value for key.
// False is returned if the variable isn't set, or is only whitespace.
func (e Env) Lookup(key string) (string, bool) {
	val, ok := e.vars[strings.ToLower(key)]
	if !ok {
		return "", false
	}
	val = strings.TrimSpace(val)
	if len(val) == 0 {
		return "", false
	}
	return val, true
}

// Val will get the value for key, returning defaultVal if the variable isn't set or is empty.
func (e Env) Val(key string, defaultVal string) string {
	if val, ok := e.Lookup(key); ok {
		return val
	}
	return defaultVal
}

// Bool interprets a variable as a boolean, using [DefaultTrue] and [DefaultFalse] compared case-insensitive.
// The defaultVal will be returned if the variable isn't set or is empty.
func (e Env) Bool(key string, defaultVal bool) (bool, error) {
	sval, ok := e.Lookup(key)
	if !ok {
		return defaultVal, nil
	}
	for _, tv := range DefaultTrue {
		if strings.EqualFold(sval, tv) {
			return true, nil
		}
	}
	for _, fv := range DefaultFalse {
		if strings.EqualFold(sval, fv) {
			return false, nil
		}
	}
	return defaultVal, fmt.Errorf("%w: %s='%s' is not a boolean", ErrInvalidEnv, key, sval)
}

// Int interprets a variable as an integer.
// The defaultVal will be returned if the variable isn't set or is empty.
func (e Env) Int(key string, defaultVal int) (int, error) {
	sval, ok := e.Lookup(key)
	if !ok {
		return defaultVal, nil
	}
	ival, err := strconv.Atoi(sval)
	if err != nil {
		return defaultVal, fmt.Errorf("%w: %s='%s' is not an integer", ErrInvalidEnv, key, sval)
	}
	return ival, nil
}

// Duration interprets a variable as a [time.Duration].
// The defaultVal will be returned if the variable isn't set or is empty.
func (e Env) Duration(key string, defaultVal time.Duration) (time.Duration, error) {
	sval, ok := e.Lookup(key)
	if !ok {
		return defaultVal, nil
	}
	dval, err := time.ParseDuration(sval)
	if err != nil {
		return defaultVal, fmt.Errorf("%w: %s='%s' is not a duration", ErrInvalidEnv, key, sval)
	}
	return dval, nil
}

// List splits a comma separated variable into trimmed, non-empty values.
func (e Env) List(key string, defaultVal []string) []string {
	sval, ok := e.Lookup(key)
	if !ok {
		return defaultVal
	}
	var vals []string
	for _, val := range strings.Split(sval, ",") {
		if val = strings.TrimSpace(val); len(val) > 0 {
			vals = append(vals, val)
		}
	}
	if len(vals) == 0 {
		return defaultVal
	}
	return vals
}
