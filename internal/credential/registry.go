package credential

import (
	"sort"

	"github.com/smallbiznis/gymgate/internal/credential/domain"
)

type Registry struct {
	validators map[domain.Method]domain.Validator
}

func NewRegistry(validators ...domain.Validator) *Registry {
	registry := &Registry{validators: map[domain.Method]domain.Validator{}}
	for _, validator := range validators {
		if validator == nil {
			continue
		}
		registry.validators[validator.Method()] = validator
	}
	return registry
}

func (r *Registry) Lookup(method string) (domain.Validator, error) {
	if r == nil {
		return nil, domain.ErrUnsupportedMethod
	}
	validator, ok := r.validators[domain.ParseMethod(method)]
	if !ok {
		return nil, domain.ErrUnsupportedMethod
	}
	return validator, nil
}

func (r *Registry) Methods() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.validators))
	for method := range r.validators {
		out = append(out, string(method))
	}
	sort.Strings(out)
	return out
}
