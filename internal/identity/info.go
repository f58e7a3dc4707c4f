package identity

// NodeInfo is the wire-serializable identity of a node: its long-term
// public key and an optional display name. It is used both as the
// roster entry type and as the payload of an Announce frame.
type NodeInfo struct {
	Public NodeID `json:"public" yaml:"public"`
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
}

// FilterSelf returns a copy of list with every entry whose Public equals
// self removed, preserving order. Used for the roster a ClientCore
// exposes to its host; the signalling server's ListIDsReply is not
// filtered and includes the requester's own entry.
func FilterSelf(list []NodeInfo, self NodeID) []NodeInfo {
	out := make([]NodeInfo, 0, len(list))
	for _, ni := range list {
		if ni.Public.Equal(self) {
			continue
		}
		out = append(out, ni)
	}
	return out
}

// NodeConfig is the unit persisted through the Storage contract under the
// well-known key "nodeConfig".
//
// Signature is reserved for a future authentication scheme; it is never
// populated or checked by this version.
type NodeConfig struct {
	OurNode   NodeInfo `yaml:"ourNode"`
	Signature []byte   `yaml:"signature,omitempty"`
}

// NewNodeConfig creates a NodeConfig around a freshly generated random
// identity. Callers that load an existing config should not call this;
// it exists for first-boot bootstrap only.
func NewNodeConfig(name string) NodeConfig {
	return NodeConfig{
		OurNode: NodeInfo{
			Public: RandomNodeID(),
			Name:   name,
		},
	}
}
