package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/tnqbao/gau-job-orchestrator/entity"
)

// Definition is a registered action.
type Definition struct {
	Name     string
	validate func(payload json.RawMessage) error
	handler  Handler
}

// Validate checks a payload without running the action.
func (d *Definition) Validate(payload json.RawMessage) error {
	return d.validate(payload)
}

func (d *Definition) Run(ctx context.Context, payload json.RawMessage, progress Progress) (json.RawMessage, error) {
	if progress == nil {
		progress = NoProgress
	}
	return d.handler(ctx, payload, progress)
}

// Registry maps action names to definitions. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]*Definition
	validator *validator.Validate
}

func NewRegistry() *Registry {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Registry{
		defs:      make(map[string]*Definition),
		validator: v,
	}
}

// Defaulter is implemented by payloads that fill optional fields.
type Defaulter interface {
	SetDefaults()
}

// Validator is implemented by payloads with checks beyond struct tags.
type Validator interface {
	Validate() error
}

// Register adds a typed action. Payloads are decoded from JSON into P,
// defaulted, then validated with `validate` struct tags and an optional
// Validate method. Results are encoded from R.
func Register[P any, R any](r *Registry, name string, fn func(ctx context.Context, payload P, progress Progress) (R, error)) {
	decode := func(raw json.RawMessage) (P, error) {
		var p P
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
			if err := json.Unmarshal(raw, &p); err != nil {
				return p, fmt.Errorf("%w: %v", entity.ErrInvalidPayload, err)
			}
		}
		if d, ok := any(&p).(Defaulter); ok {
			d.SetDefaults()
		}
		if reflect.Indirect(reflect.ValueOf(&p)).Kind() == reflect.Struct {
			if err := r.validator.Struct(p); err != nil {
				return p, fmt.Errorf("%w: %s", entity.ErrInvalidPayload, describeValidation(err))
			}
		}
		if v, ok := any(&p).(Validator); ok {
			if err := v.Validate(); err != nil {
				return p, fmt.Errorf("%w: %v", entity.ErrInvalidPayload, err)
			}
		}
		return p, nil
	}

	def := &Definition{
		Name: name,
		validate: func(raw json.RawMessage) error {
			_, err := decode(raw)
			return err
		},
		handler: func(ctx context.Context, raw json.RawMessage, progress Progress) (json.RawMessage, error) {
			p, err := decode(raw)
			if err != nil {
				return nil, NewError("ValidationError", err.Error())
			}
			result, err := fn(ctx, p, progress)
			if err != nil {
				return nil, err
			}
			out, err := json.Marshal(result)
			if err != nil {
				return nil, NewError("SerializationError", err.Error())
			}
			return out, nil
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; exists {
		panic("action already registered: " + name)
	}
	r.defs[name] = def
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Lookup is Get with entity.ErrUnknownAction for missing names.
func (r *Registry) Lookup(name string) (*Definition, error) {
	def, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownAction, name)
	}
	return def, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("field %q failed on %q", fe.Field(), fe.Tag())
	}
	return msg
}
