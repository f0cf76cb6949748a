package models

import (
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/fhirkeeper/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestStamp_SetsVersionTimePerVariant(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	c := &ContentEntry{Key: ResourceKey{Collection: "Patient", ID: "1", VersionID: "1"}}
	d := &TombstoneEntry{Key: ResourceKey{Collection: "Patient", ID: "1", VersionID: "2"}}

	Stamp(c, now)
	Stamp(d, now.Add(time.Second))

	assert.Equal(t, now, c.VersionTime())
	assert.Equal(t, now.Add(time.Second), d.VersionTime())
	assert.Equal(t, KindContent, c.Kind())
	assert.Equal(t, KindTombstone, d.Kind())
}

func TestCheckIdentity(t *testing.T) {
	assert.NoError(t, CheckIdentity(&ContentEntry{Key: ResourceKey{Collection: "Patient", ID: "1", VersionID: "1"}}))

	err := CheckIdentity(&ContentEntry{})
	assert.True(t, errors.Is(err, common.ErrValidation))

	err = CheckIdentity(&TombstoneEntry{Key: ResourceKey{Collection: "Patient", ID: "1"}})
	assert.True(t, errors.Is(err, common.ErrValidation))

	assert.True(t, errors.Is(CheckIdentity(nil), common.ErrValidation))
}

func TestContentEntry_Binary(t *testing.T) {
	e := &ContentEntry{Resource: &Binary{ContentType: "text/plain", Content: []byte("x")}}
	b, ok := e.Binary()
	assert.True(t, ok)
	assert.Equal(t, "text/plain", b.ContentType)

	e = &ContentEntry{Resource: &Generic{Type: "Patient"}}
	_, ok = e.Binary()
	assert.False(t, ok)
}

func TestSetIdentity(t *testing.T) {
	k := ResourceKey{Collection: "Patient", ID: "1", VersionID: "3"}
	c := &ContentEntry{}
	d := &TombstoneEntry{}

	SetIdentity(c, k)
	SetIdentity(d, k)

	assert.Equal(t, k, c.Identity())
	assert.Equal(t, k, d.Identity())
}
