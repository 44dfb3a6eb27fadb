package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks structural constraints on the configuration and returns a
// readable error listing every failing field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return validatePolicy(&cfg.Memory)
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fieldPath(fe), fieldMessage(fe)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// validatePolicy covers cross-field constraints the tag syntax can't express.
func validatePolicy(p *Policy) error {
	if p.WorkingLimit > 0 && p.WorkingKeep < p.WorkingLimit {
		return fmt.Errorf("invalid config: memory.working_keep (%d) must be >= memory.working_limit (%d)", p.WorkingKeep, p.WorkingLimit)
	}
	if p.MergeOverlap > p.RepeatOverlap {
		return fmt.Errorf("invalid config: memory.merge_overlap (%.2f) must not exceed memory.repeat_overlap (%.2f)", p.MergeOverlap, p.RepeatOverlap)
	}
	return nil
}

func fieldPath(fe validator.FieldError) string {
	// Strip the leading "Config." for readability.
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
