package commands

import (
	"fmt"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// decode copies a loosely typed payload (JSON, YAML or MCP arguments) into out.
func decode(payload any, out any) error {
	if payload == nil {
		return domain.NewValidationError("payload", "is required", nil)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to build payload decoder: %w", err)
	}
	if err := dec.Decode(payload); err != nil {
		return domain.NewValidationError("payload", err.Error(), payload)
	}
	return nil
}
