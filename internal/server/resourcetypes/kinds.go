package resourcetypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/fhirkeeper/internal/server/models"
)

// BinaryKind stores models.Binary as a JSON object with base64 content.
func BinaryKind() Kind {
	return Kind{
		Name: models.BinaryType,
		Encode: func(res models.Resource) (json.RawMessage, error) {
			b, ok := res.(*models.Binary)
			if !ok {
				return nil, fmt.Errorf("expected *models.Binary, got %T", res)
			}
			return json.Marshal(b)
		},
		Decode: func(body json.RawMessage) (models.Resource, error) {
			b := &models.Binary{}
			if len(body) == 0 {
				return b, nil
			}
			if err := json.Unmarshal(body, b); err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// GenericKind stores the resource body as-is. Bodies must be JSON objects
// and, when they carry a resourceType, it must match name.
func GenericKind(name string) Kind {
	return Kind{
		Name: name,
		Encode: func(res models.Resource) (json.RawMessage, error) {
			g, ok := res.(*models.Generic)
			if !ok {
				return nil, fmt.Errorf("expected *models.Generic, got %T", res)
			}
			if err := checkObject(name, g.Body); err != nil {
				return nil, err
			}
			return g.Body, nil
		},
		Decode: func(body json.RawMessage) (models.Resource, error) {
			if len(body) == 0 {
				return &models.Generic{Type: name}, nil
			}
			if err := checkObject(name, body); err != nil {
				return nil, err
			}
			return &models.Generic{Type: name, Body: body}, nil
		},
		Validate: func(res models.Resource) error {
			g, ok := res.(*models.Generic)
			if !ok {
				return fmt.Errorf("expected *models.Generic, got %T", res)
			}
			return checkObject(name, g.Body)
		},
	}
}

var birthDatePattern = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2})?)?$`)

// PatientKind is GenericKind("Patient") plus a birthDate format check.
func PatientKind() Kind {
	k := GenericKind("Patient")
	generic := k.Validate
	k.Validate = func(res models.Resource) error {
		if err := generic(res); err != nil {
			return err
		}
		var p struct {
			BirthDate *string `json:"birthDate"`
		}
		if err := json.Unmarshal(res.(*models.Generic).Body, &p); err != nil {
			return err
		}
		if p.BirthDate != nil && !birthDatePattern.MatchString(*p.BirthDate) {
			return fmt.Errorf("invalid birthDate %q", *p.BirthDate)
		}
		return nil
	}
	return k
}

func checkObject(name string, body json.RawMessage) error {
	var head map[string]json.RawMessage
	if err := json.Unmarshal(body, &head); err != nil {
		return errors.New("resource body is not a JSON object")
	}
	if raw, ok := head["resourceType"]; ok {
		var rt string
		if err := json.Unmarshal(raw, &rt); err != nil || rt != name {
			return fmt.Errorf("resourceType %s does not match %s", string(raw), name)
		}
	}
	return nil
}
