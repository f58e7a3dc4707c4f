package identity

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EncodeConfig serializes a NodeConfig to the text form stored under the
// "nodeConfig" key by the Storage contract.
func EncodeConfig(cfg NodeConfig) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("identity: encode NodeConfig: %w", err)
	}
	return string(data), nil
}

// DecodeConfig parses the text form produced by EncodeConfig.
func DecodeConfig(text string) (NodeConfig, error) {
	var cfg NodeConfig
	if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
		return cfg, fmt.Errorf("identity: decode NodeConfig: %w", err)
	}
	return cfg, nil
}
