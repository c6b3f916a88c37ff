package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Validator normalizes and/or validates a payload value. It returns the
// validated (possibly normalized) value, or an error if the payload does
// not satisfy the descriptor. Validators are pure with respect to the
// runtime: they may do their own work asynchronously by blocking inside
// Validate, since the runtime always calls them from a dispatch
// goroutine that is allowed to suspend.
type Validator interface {
	Validate(ctx context.Context, payload any) (any, error)
}

// ValidatorFunc adapts a plain function to the Validator interface. This
// is the "function validator" from the contract model: the fast, always-
// present case that takes precedence over a schema validator when both
// are configured on the same descriptor.
type ValidatorFunc func(ctx context.Context, payload any) (any, error)

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, payload any) (any, error) {
	return f(ctx, payload)
}

// runValidators implements the "function takes precedence, schema is a
// fallback" rule: fn is tried first if non-nil; schema is consulted only
// when fn is nil. Both may be nil, in which case the payload passes
// through unchanged.
func runValidators(ctx context.Context, fn, schema Validator, payload any) (any, error) {
	if fn != nil {
		return fn.Validate(ctx, payload)
	}
	if schema != nil {
		return schema.Validate(ctx, payload)
	}
	return payload, nil
}

// StructSchema builds a Standard-Schema-style Validator out of a Go
// struct prototype: the payload is round-tripped through JSON into a
// fresh value of the prototype's type, then every field tagged
// `kataribe:"required"` is checked for its zero value. This mirrors
// mini-rpc's reflection-driven approach to shaping untyped wire data
// (server/service.go uses reflection to invoke methods by name; here the
// same technique shapes and checks a payload instead of dispatching a
// call).
func StructSchema(prototype any) Validator {
	protoType := reflect.TypeOf(prototype)
	for protoType.Kind() == reflect.Ptr {
		protoType = protoType.Elem()
	}
	return ValidatorFunc(func(_ context.Context, payload any) (any, error) {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("contract: re-marshal payload: %w", err)
		}
		dst := reflect.New(protoType)
		if err := json.Unmarshal(raw, dst.Interface()); err != nil {
			return nil, fmt.Errorf("contract: payload does not match schema: %w", err)
		}
		if err := checkRequired(dst.Elem()); err != nil {
			return nil, err
		}
		return dst.Interface(), nil
	})
}

func checkRequired(v reflect.Value) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Tag.Get("kataribe") != "required" {
			continue
		}
		if v.Field(i).IsZero() {
			return fmt.Errorf("contract: field %q is required", field.Name)
		}
	}
	return nil
}
