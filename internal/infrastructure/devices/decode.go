package devices

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"jan-server/services/vision-api/internal/domain/crossing"
	"jan-server/services/vision-api/internal/domain/session"
)

// Config is a decoded device configuration document.
type Config struct {
	// Payload is the whole document as received, for display.
	Payload map[string]any
	Devices []session.Descriptor
}

// Decode parses a device document. JSON payloads from the device server and
// YAML files are both accepted: either a top level list of devices or a
// mapping with a "devices" list.
func Decode(data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Config{Payload: map[string]any{"devices": []any{}}}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Config{}, fmt.Errorf("parse device config: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return Config{}, errors.New("parse device config: empty document")
	}
	doc := root.Content[0]

	var list *yaml.Node
	payload := map[string]any{}
	switch doc.Kind {
	case yaml.SequenceNode:
		list = doc
		var items []any
		if err := doc.Decode(&items); err != nil {
			return Config{}, fmt.Errorf("parse device config: %w", err)
		}
		payload["devices"] = items
	case yaml.MappingNode:
		if err := doc.Decode(&payload); err != nil {
			return Config{}, fmt.Errorf("parse device config: %w", err)
		}
		list = mappingValue(doc, "devices")
	default:
		return Config{}, fmt.Errorf("parse device config: unexpected %s at top level", kindName(doc.Kind))
	}

	cfg := Config{Payload: payload}
	if list == nil || list.Tag == "!!null" {
		return cfg, nil
	}
	if list.Kind != yaml.SequenceNode {
		return Config{}, fmt.Errorf("parse device config: devices must be a list, got %s", kindName(list.Kind))
	}

	for i, item := range list.Content {
		desc, err := decodeDevice(item)
		if err != nil {
			return Config{}, fmt.Errorf("parse device config: device %d: %w", i, err)
		}
		cfg.Devices = append(cfg.Devices, desc)
	}
	return cfg, nil
}

func decodeDevice(node *yaml.Node) (session.Descriptor, error) {
	if node.Kind != yaml.MappingNode {
		return session.Descriptor{}, fmt.Errorf("expected mapping, got %s", kindName(node.Kind))
	}

	desc := session.Descriptor{Metadata: map[string]any{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]
		switch key {
		case "device_id":
			desc.DeviceID = scalar(value)
		case "device_name":
			desc.DeviceName = scalar(value)
		case "source", "source_uri":
			desc.SourceURI = scalar(value)
		case "horizontal_line_points":
			desc.HorizontalLine = lineSpec(value)
		case "vertical_line_points":
			desc.VerticalLine = lineSpec(value)
		default:
			var v any
			if err := value.Decode(&v); err != nil {
				return session.Descriptor{}, fmt.Errorf("field %q: %w", key, err)
			}
			desc.Metadata[key] = v
		}
	}
	return desc, nil
}

// lineSpec accepts a points list or a string holding the JSON encoded list.
func lineSpec(node *yaml.Node) crossing.LineSpec {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return crossing.LineSpec{}
		}
		return crossing.ParseLineSpec([]byte(node.Value))
	case yaml.SequenceNode:
		var points []crossing.Point
		if err := node.Decode(&points); err != nil {
			return crossing.LineSpec{Err: fmt.Errorf("decode line points: %w", err)}
		}
		return crossing.LineSpec{Points: points}
	default:
		return crossing.LineSpec{Err: fmt.Errorf("decode line points: unexpected %s", kindName(node.Kind))}
	}
}

func scalar(node *yaml.Node) string {
	if node.Kind != yaml.ScalarNode || node.Tag == "!!null" {
		return ""
	}
	return node.Value
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func kindName(kind yaml.Kind) string {
	switch kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown node"
	}
}
