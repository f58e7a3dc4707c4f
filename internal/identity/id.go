// Package identity defines the 256-bit node identifiers and node
// descriptors shared by the signalling protocol, the node roster, and
// the identity storage contract.
package identity

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// NodeID is a 256-bit opaque identifier. It is used both for a node's
// long-term public key and for the ephemeral challenge value a signalling
// server assigns to a connection.
type NodeID [32]byte

// Zero is the recognized "none" value. Lookups such as RemoteOf return it
// alongside a false ok flag when there is no match.
var Zero = NodeID{}

// RandomNodeID returns a fresh NodeID sourced from crypto/rand.
func RandomNodeID() NodeID {
	var id NodeID
	if _, err := rand.Read(id[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is broken,
		// which is unrecoverable for a process that needs identity.
		panic(fmt.Sprintf("identity: crypto/rand unavailable: %v", err))
	}
	return id
}

// Equal reports whether two ids are byte-for-byte identical.
func (id NodeID) Equal(other NodeID) bool {
	return id == other
}

// Less defines a total byte-wise ordering over NodeID, used where a
// deterministic order is needed (e.g. test fixtures, sorted roster dumps).
func (id NodeID) Less(other NodeID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// IsZero reports whether id is the zero value.
func (id NodeID) IsZero() bool {
	return id == Zero
}

// String returns the lower-case hexadecimal form used on the wire and in logs.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseNodeID decodes a lower- or upper-case hexadecimal NodeID.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("identity: invalid NodeID hex %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("identity: NodeID must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// MarshalJSON encodes the NodeID as a hex string.
func (id NodeID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes a hex string into the NodeID.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("identity: NodeID must be a JSON string: %w", err)
	}
	parsed, err := ParseNodeID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MarshalYAML encodes the NodeID as a hex string for the identity config file.
func (id NodeID) MarshalYAML() (interface{}, error) {
	return id.String(), nil
}

// UnmarshalYAML decodes a hex string into the NodeID.
func (id *NodeID) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseNodeID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
