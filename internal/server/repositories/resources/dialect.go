package resources

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/dbx"
)

// dialect captures the differences between the Postgres and SQLite schemas.
// Queries are written with $n placeholders and rebound for SQLite.
type dialect struct {
	bind dbx.Bindvar
	// body renders the body column as text, optionally without the resource
	// payload.
	body func(withContent bool) string
	// timeArg converts a version timestamp into the column representation.
	timeArg func(t time.Time) any
	tags    string
}

func (d dialect) rebind(query string) string {
	return d.bind.Rebind(query)
}

var postgres = dialect{
	bind: dbx.Dollar,
	body: func(withContent bool) string {
		if withContent {
			return "body::text"
		}
		return "(body - 'content')::text"
	},
	timeArg: func(t time.Time) any { return t.UTC() },
	tags: `
		SELECT DISTINCT t->>'term', t->>'scheme', COALESCE(t->>'label', '')
		FROM resources, jsonb_array_elements(COALESCE(body->'tags', '[]'::jsonb)) AS t
		WHERE state <> 'pending' AND ($1 = '' OR collection = $1)
		ORDER BY 1, 2`,
}

var sqlite = dialect{
	bind: dbx.Question,
	body: func(withContent bool) string {
		if withContent {
			return "body"
		}
		return "json_remove(body, '$.content')"
	},
	timeArg: func(t time.Time) any { return t.UTC().UnixMicro() },
	tags: `
		SELECT DISTINCT json_extract(t.value, '$.term'), json_extract(t.value, '$.scheme'),
			COALESCE(json_extract(t.value, '$.label'), '')
		FROM resources, json_each(resources.body, '$.tags') AS t
		WHERE state <> 'pending' AND ($1 = '' OR collection = $1)
		ORDER BY 1, 2`,
}

// versionTime scans a version timestamp stored either as a timestamp or as
// unix microseconds.
type versionTime struct {
	t time.Time
}

func (v *versionTime) Scan(src any) error {
	switch s := src.(type) {
	case time.Time:
		v.t = s.UTC()
	case int64:
		v.t = time.UnixMicro(s).UTC()
	case []byte:
		return v.parse(string(s))
	case string:
		return v.parse(s)
	case nil:
		v.t = time.Time{}
	default:
		return fmt.Errorf("unsupported version time %T", src)
	}
	return nil
}

func (v *versionTime) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return err
	}
	v.t = t.UTC()
	return nil
}
