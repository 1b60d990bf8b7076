// Package script replays a recorded sequence of history operations against a fresh
// workspace. Scripts are YAML (or JSON) documents and run on a stepped clock, so a
// replay is deterministic, coalescing included.
package script

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Operations a step may perform.
const (
	OpExecute   = "execute"
	OpUndo      = "undo"
	OpRedo      = "redo"
	OpClear     = "clear"
	OpConfigure = "configure"
	OpBatch     = "batch"
)

// DefaultTick is how far the clock moves before each step when the script does not say.
const DefaultTick = 100 * time.Millisecond

// Script is a replayable document.
type Script struct {
	Name           string         `mapstructure:"name"`
	Capacity       int            `mapstructure:"capacity"`
	CoalesceWindow *time.Duration `mapstructure:"coalesce_window"`
	InitialState   map[string]any `mapstructure:"initial_state"`
	Start          time.Time      `mapstructure:"start"`
	Tick           *time.Duration `mapstructure:"tick"`
	Steps          []Step         `mapstructure:"steps"`
}

// Step is one operation. Only the fields relevant to Op are read.
type Step struct {
	Op string `mapstructure:"op"`

	// execute
	Command     string         `mapstructure:"command"`
	Payload     any            `mapstructure:"payload"`
	Label       string         `mapstructure:"label"`
	Coalesce    *bool          `mapstructure:"coalesce"`
	CoalesceKey string         `mapstructure:"coalesce_key"`
	Window      *time.Duration `mapstructure:"window"`
	Meta        map[string]any `mapstructure:"meta"`

	// configure
	Capacity       int            `mapstructure:"capacity"`
	CoalesceWindow *time.Duration `mapstructure:"coalesce_window"`

	// batch; children are executed and may omit op
	Steps []Step `mapstructure:"steps"`

	// Advance moves the clock before the step, replacing the script tick.
	Advance *time.Duration `mapstructure:"advance"`
	// ExpectError marks a step whose failure is part of the scenario.
	ExpectError bool `mapstructure:"expect_error"`
}

// Load reads a script file; the format follows the extension (.json, otherwise YAML).
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	s, err := Parse(data, strings.ToLower(filepath.Ext(path)) == ".json")
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// Parse decodes a script from YAML, or JSON when isJSON is set.
func Parse(data []byte, isJSON bool) (*Script, error) {
	raw := map[string]any{}
	if isJSON {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse script: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse script: %w", err)
		}
	}

	var s Script
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &s,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build script decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every step before anything runs.
func (s *Script) Validate() error {
	return validateSteps(s.Steps, "steps", true)
}

func validateSteps(steps []Step, path string, top bool) error {
	for i, st := range steps {
		field := fmt.Sprintf("%s[%d]", path, i)
		op := st.Op
		if op == "" && !top {
			// Batch children default to execute.
			op = OpExecute
		}
		switch op {
		case OpExecute:
			if st.Command == "" {
				return domain.NewValidationError(field+".command", "is required for execute", nil)
			}
		case OpUndo, OpRedo, OpClear, OpConfigure:
			if !top {
				return domain.NewValidationError(field+".op", "only execute is allowed inside a batch", st.Op)
			}
		case OpBatch:
			if !top {
				return domain.NewValidationError(field+".op", "batches cannot be nested", st.Op)
			}
			if err := validateSteps(st.Steps, field+".steps", false); err != nil {
				return err
			}
		default:
			return domain.NewValidationError(field+".op", "unknown operation "+fmt.Sprintf("%q", st.Op), nil)
		}
	}
	return nil
}
