package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateOutputFormat(output string) error {
	switch output {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q: use 'text', 'json' or 'yaml'", output)
}

// render writes v in the selected format. text is called for the text format;
// a nil text falls back to indented JSON.
func (e *environment) render(v any, text func(io.Writer) error) error {
	switch e.output {
	case formatJSON:
		return printJSON(e.stdout, v)
	case formatYAML:
		return printYAML(e.stdout, v)
	}
	if text == nil {
		return printJSON(e.stdout, v)
	}
	return text(e.stdout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML renders v through its JSON form so that field names and order
// match the JSON output.
func printYAML(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return enc.Close()
}

// blockStyle clears the flow style the decoder records for JSON input.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// parseCorrelationID checks that id is a UUID and returns it in canonical
// form.
func parseCorrelationID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("invalid correlation id %q: %w", id, err)
	}
	return parsed.String(), nil
}
