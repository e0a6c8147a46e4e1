package scripter

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"demoforge/internal/demo"
)

// Export writes script as YAML in the layout the file source reads.
func Export(w io.Writer, script *demo.Script) error {
	if script == nil {
		return fmt.Errorf("export script: %w", demo.ErrEmptyScript)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(script); err != nil {
		return fmt.Errorf("encode script: %w", err)
	}
	return enc.Close()
}

// Import reads a YAML script. Unknown keys are rejected so typos surface
// instead of silently dropping a scene field.
func Import(r io.Reader) (*demo.Script, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var script demo.Script
	if err := dec.Decode(&script); err != nil {
		if err == io.EOF {
			return nil, demo.ErrEmptyScript
		}
		return nil, fmt.Errorf("decode script: %w", err)
	}
	return &script, nil
}
