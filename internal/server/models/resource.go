package models

import "encoding/json"

// BinaryType is the resource type name of binary payloads.
const BinaryType = "Binary"

// Resource is the payload of a content entry.
type Resource interface {
	ResourceType() string
}

// Binary is raw content with a declared media type. Digest is filled in when
// the content is externalized and checked when it is fetched back. Blob is
// set only when the content lives under a name other than the default blob
// name of its key.
type Binary struct {
	ContentType string `json:"contentType,omitempty"`
	Content     []byte `json:"content,omitempty"`
	Digest      string `json:"digest,omitempty"`
	Blob        string `json:"blob,omitempty"`
}

func (b *Binary) ResourceType() string { return BinaryType }

// Generic holds any JSON resource whose type is registered with the
// resource type registry.
type Generic struct {
	Type string
	Body json.RawMessage
}

func (g *Generic) ResourceType() string { return g.Type }
