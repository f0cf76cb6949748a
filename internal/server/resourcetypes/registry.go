// Package resourcetypes holds the registry of resource kinds the store knows
// how to serialize and validate. The registry is built once at startup.
package resourcetypes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

// Kind is the serialization and validation strategy for one resource type.
type Kind struct {
	Name     string
	Encode   func(models.Resource) (json.RawMessage, error)
	Decode   func(body json.RawMessage) (models.Resource, error)
	Validate func(models.Resource) error
}

// Registry maps resource type names onto kinds.
type Registry struct {
	kinds map[string]Kind
}

// NewRegistry builds a registry from the given kinds. Names must be unique.
func NewRegistry(kinds ...Kind) (*Registry, error) {
	r := &Registry{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if k.Name == "" || k.Encode == nil || k.Decode == nil {
			return nil, fmt.Errorf("incomplete resource kind %q", k.Name)
		}
		if _, dup := r.kinds[k.Name]; dup {
			return nil, fmt.Errorf("resource kind %q registered twice", k.Name)
		}
		r.kinds[k.Name] = k
	}
	return r, nil
}

// DefaultTypes are the clinical resource types registered by Default in
// addition to Binary and Patient.
var DefaultTypes = []string{
	"AllergyIntolerance", "Condition", "Device", "DiagnosticReport", "Encounter",
	"Location", "Medication", "MedicationStatement", "Observation", "Organization",
	"Practitioner", "Procedure", "Questionnaire", "ValueSet",
}

// Default returns a registry with Binary, Patient and DefaultTypes.
func Default() *Registry {
	kinds := []Kind{BinaryKind(), PatientKind()}
	for _, name := range DefaultTypes {
		kinds = append(kinds, GenericKind(name))
	}
	r, err := NewRegistry(kinds...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name string) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Names lists registered type names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kinds))
	for n := range r.kinds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Encode serializes a resource using its registered kind.
func (r *Registry) Encode(res models.Resource) (string, json.RawMessage, error) {
	if res == nil {
		return "", nil, fmt.Errorf("%w: content entry without resource", common.ErrValidation)
	}
	k, ok := r.Lookup(res.ResourceType())
	if !ok {
		return "", nil, fmt.Errorf("%w: unsupported resource type %q", common.ErrValidation, res.ResourceType())
	}
	body, err := k.Encode(res)
	if err != nil {
		return "", nil, fmt.Errorf("%w: encode %s: %v", common.ErrValidation, k.Name, err)
	}
	return k.Name, body, nil
}

// Decode parses a stored resource body of the given type.
func (r *Registry) Decode(name string, body json.RawMessage) (models.Resource, error) {
	k, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported resource type %q", common.ErrMapping, name)
	}
	res, err := k.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", common.ErrMapping, name, err)
	}
	return res, nil
}

// ValidateBatch runs every content entry's kind validation. It has the shape
// of a post-insert batch hook.
func (r *Registry) ValidateBatch(ctx context.Context, entries []models.Entry) error {
	for _, e := range entries {
		switch v := e.(type) {
		case *models.ContentEntry:
			if v.Resource == nil {
				continue
			}
			k, ok := r.Lookup(v.Resource.ResourceType())
			if !ok {
				return fmt.Errorf("%w: %s: unsupported resource type %q", common.ErrValidation, v.Key, v.Resource.ResourceType())
			}
			if k.Validate == nil {
				continue
			}
			if err := k.Validate(v.Resource); err != nil {
				return fmt.Errorf("%w: %s: %v", common.ErrValidation, v.Key, err)
			}
		case *models.TombstoneEntry:
		}
	}
	return nil
}
