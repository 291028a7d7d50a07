package schemas

import (
	"os"
	"strings"
)

// EnvVar is a wrapper around a config value that can be sourced from an
// environment variable. A value of the form "env.NAME" resolves to the
// NAME environment variable at load time.
type EnvVar struct {
	Val     string `json:"value"`
	EnvVar  string `json:"env_var"`
	FromEnv bool   `json:"from_env"`
}

// NewEnvVar creates an EnvVar from a raw config string, resolving an
// "env.NAME" reference against the process environment.
func NewEnvVar(value string) *EnvVar {
	if envKey, ok := strings.CutPrefix(value, "env."); ok {
		envValue, found := os.LookupEnv(envKey)
		if !found {
			envValue = ""
		}
		return &EnvVar{
			Val:     envValue,
			FromEnv: true,
			EnvVar:  value,
		}
	}
	return &EnvVar{
		Val:     value,
		FromEnv: false,
		EnvVar:  "",
	}
}

// GetValue returns the resolved value, or "" for a nil receiver.
func (e *EnvVar) GetValue() string {
	if e == nil {
		return ""
	}
	return e.Val
}

// UnmarshalJSON accepts either a bare string (possibly an env.NAME
// reference) or the full {value, env_var, from_env} object shape.
func (e *EnvVar) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) && len(s) >= 2 {
		*e = *NewEnvVar(s[1 : len(s)-1])
		return nil
	}
	// Object shape; use an alias so methods are not inherited.
	type envVarAlias EnvVar
	var alias envVarAlias
	if err := sonicUnmarshal(data, &alias); err != nil {
		return err
	}
	*e = EnvVar(alias)
	if e.FromEnv && e.EnvVar != "" {
		resolved := NewEnvVar(e.EnvVar)
		e.Val = resolved.Val
	}
	return nil
}
