// Package config loads the switchboard configuration from YAML.
//
// ${VAR} references are expanded from the environment before parsing (an
// unset variable becomes empty). Durations are written as Go duration
// strings ("5s", "250ms") and parsed after unmarshaling. Load validates
// the result and returns the first failure; Default supplies the
// configuration used when no file exists.
package config
