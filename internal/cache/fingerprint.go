package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

type fingerprintEnvelope struct {
	Stage  string `json:"stage"`
	Inputs any    `json:"inputs"`
}

// Fingerprint hashes the stage name together with everything that affects the
// stage output. encoding/json sorts map keys and emits struct fields in
// declaration order, so equal inputs always produce the same digest.
func Fingerprint(stage string, inputs any) (string, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return "", fmt.Errorf("fingerprint: stage is empty")
	}
	payload, err := json.Marshal(fingerprintEnvelope{Stage: stage, Inputs: inputs})
	if err != nil {
		return "", fmt.Errorf("fingerprint %s inputs: %w", stage, err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
