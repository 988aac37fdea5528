package capability

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/txtx-labs/runbook-core/internal/diagnostic"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/xerrors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// CheckInputs runs the default instantiability check a Descriptor may use
// for CheckInstantiability: it coerces each declared input against its
// value.Type, then — if the input carries a Rules tag — runs it through
// validator/v10's single-variable Var check, the same library the corpus
// uses for config validation, rather than hand-rolled per-field checks.
func CheckInputs(descriptor Descriptor, inputs value.Value) *diagnostic.Diagnostic {
	v := validatorInstance()
	for _, in := range descriptor.Inputs {
		field, present := inputs.ObjectField(in.Name)
		if !present {
			if in.Optional {
				continue
			}
			return diagnostic.New("input %q is required", in.Name)
		}
		coerced, err := value.Coerce(in.Type, field)
		if err != nil {
			return diagnostic.New("input %q: %s", in.Name, err.Error())
		}
		if in.Rules == "" {
			continue
		}
		if err := validateField(v, in, coerced); err != nil {
			return diagnostic.New("input %q: %s", in.Name, err.Error())
		}
	}
	return nil
}

func validateField(v *validator.Validate, in InputDef, coerced value.Value) error {
	native, err := nativeValue(coerced)
	if err != nil {
		return xerrors.NewValidationError(in.Name, in.Name, err)
	}
	if err := v.Var(native, in.Rules); err != nil {
		return xerrors.NewValidationError(in.Name, in.Name, err)
	}
	return nil
}

// nativeValue unwraps a value.Value into the plain Go type validator/v10's
// Var expects to reflect over.
func nativeValue(v value.Value) (interface{}, error) {
	switch v.Kind() {
	case value.KindBool:
		b, _ := v.AsBool()
		return b, nil
	case value.KindInt:
		i, _ := v.AsInt()
		return i.Int64(), nil
	case value.KindFloat:
		f, _ := v.AsFloat()
		return f, nil
	case value.KindString:
		s, _ := v.AsString()
		return s, nil
	case value.KindBytes:
		b, _ := v.AsBytes()
		return b, nil
	case value.KindNull:
		return nil, nil
	default:
		return nil, fmt.Errorf("rules are only supported on scalar inputs, got %s", v.Kind())
	}
}
