package plugin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/liamcoop/cartagen/dsl"
)

// ErrInvalidPack wraps every structural problem found in a pack.
var ErrInvalidPack = errors.New("invalid plugin pack")

var (
	validate          = validator.New(validator.WithRequiredStructEnabled())
	identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// reservedNames cannot be used as field names because the context builder
// owns them.
var reservedNames = map[string]bool{
	"texts": true,
}

// ValidatePack checks a freshly loaded pack before it is cached: struct tags,
// identifier syntax, condition operators and nesting. References to unknown
// rules are tolerated (the engine skips them) and not reported here.
func ValidatePack(p *Pack) error {
	if p == nil {
		return fmt.Errorf("%w: nil pack", ErrInvalidPack)
	}
	if err := validate.Struct(p.Manifest); err != nil {
		return fmt.Errorf("%w: manifest: %v", ErrInvalidPack, err)
	}
	if err := validateFields(&p.Fields.Fields, ""); err != nil {
		return err
	}

	var err error
	p.Derived.Fields.Each(func(name string, d *DerivedField) bool {
		err = validateEntry("derived field", name, d)
		return err == nil
	})
	if err != nil {
		return err
	}

	p.Logic.Rules.Each(func(id string, r *Rule) bool {
		if err = validateEntry("rule", id, r); err != nil {
			return false
		}
		if cerr := dsl.Validate(r.Condition); cerr != nil {
			err = fmt.Errorf("%w: rule %q: %w", ErrInvalidPack, id, cerr)
		}
		return err == nil
	})
	if err != nil {
		return err
	}

	p.DecisionMap.Decisions.Each(func(id string, d *Decision) bool {
		err = validateEntry("decision", id, d)
		return err == nil
	})
	if err != nil {
		return err
	}

	if err := validate.Struct(p.Formatting); err != nil {
		return fmt.Errorf("%w: formatting: %v", ErrInvalidPack, err)
	}
	p.Formatting.Fields.Each(func(name string, f *FieldFormat) bool {
		err = validateEntry("format", name, f)
		return err == nil
	})
	return err
}

func validateFields(fields *OrderedMap[*FieldSpec], prefix string) error {
	var err error
	fields.Each(func(name string, spec *FieldSpec) bool {
		qualified := prefix + name
		if err = validateEntry("field", qualified, spec); err != nil {
			return false
		}
		if prefix == "" && reservedNames[name] {
			err = fmt.Errorf("%w: field %q uses a reserved name", ErrInvalidPack, name)
			return false
		}
		if spec.Validation != nil {
			if verr := validate.Struct(spec.Validation); verr != nil {
				err = fmt.Errorf("%w: field %q validation: %v", ErrInvalidPack, qualified, verr)
				return false
			}
			if spec.Validation.Pattern != "" {
				if _, rerr := regexp.Compile(spec.Validation.Pattern); rerr != nil {
					err = fmt.Errorf("%w: field %q pattern: %v", ErrInvalidPack, qualified, rerr)
					return false
				}
			}
		}
		if cerr := dsl.Validate(spec.Condition); cerr != nil {
			err = fmt.Errorf("%w: field %q: %w", ErrInvalidPack, qualified, cerr)
			return false
		}
		if spec.ItemSchema != nil {
			err = validateFields(spec.ItemSchema, qualified+".")
		}
		return err == nil
	})
	return err
}

// validateEntry checks the key of an ordered map entry and its struct tags.
func validateEntry[T any](what, name string, v *T) error {
	if err := validateIdentifier(name); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidPack, what, name, err)
	}
	if v == nil {
		return fmt.Errorf("%w: %s %q has no definition", ErrInvalidPack, what, name)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidPack, what, name, err)
	}
	return nil
}

// validateIdentifier checks a configuration key.
// Dots are allowed so nested item-schema paths can be reported as one name.
func validateIdentifier(name string) error {
	if len(name) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("identifier length %d exceeds maximum of 100 characters", len(name))
	}
	for _, part := range strings.Split(name, ".") {
		if !identifierPattern.MatchString(part) {
			return fmt.Errorf("must match pattern %s", identifierPattern)
		}
	}
	return nil
}
