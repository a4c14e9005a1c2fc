package farm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseBrowsers parses the command line browser syntax into specs.
//
// The syntax is a "|" separated list of "id:os/version,version" groups,
// e.g. "ie:win/6.0,7.0|iPhone 3GS:ios/3.0". A value without ":" is either
// a path to a YAML or JSON file holding a list of specs, or a comma
// separated list of canonical ids.
func ParseBrowsers(s string) ([]Spec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if !strings.Contains(s, ":") {
		if info, err := os.Stat(s); err == nil && !info.IsDir() {
			return LoadSpecs(s)
		}
		var specs []Spec
		for _, id := range strings.Split(s, ",") {
			if id = strings.TrimSpace(id); id != "" {
				specs = append(specs, ParseSpec(id))
			}
		}
		return specs, nil
	}

	var specs []Spec
	for _, group := range strings.Split(s, "|") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}

		platform, versions, _ := strings.Cut(group, "/")
		id, osID, _ := strings.Cut(platform, ":")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("invalid browser %q: missing id", group)
		}
		base := Spec{ID: id, OSID: strings.TrimSpace(osID)}

		if strings.TrimSpace(versions) == "" {
			specs = append(specs, base)
			continue
		}
		for _, v := range strings.Split(versions, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			specs = append(specs, base.WithVersion(ParseVersion(v)))
		}
	}
	return specs, nil
}

// LoadSpecs reads a YAML or JSON list of specs from path. Plain strings in
// the list are treated as canonical ids.
func LoadSpecs(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read browsers file: %w", err)
	}

	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse browsers file %s: %w", path, err)
	}

	specs := make([]Spec, 0, len(nodes))
	for i := range nodes {
		spec, err := decodeSpec(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("browsers file %s, entry %d: %w", path, i, err)
		}
		if spec.IsZero() {
			return nil, fmt.Errorf("browsers file %s, entry %d: empty browser spec", path, i)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// UnmarshalYAML accepts either a canonical id or a mapping.
func (s *Spec) UnmarshalYAML(node *yaml.Node) error {
	spec, err := decodeSpec(node)
	if err != nil {
		return err
	}
	*s = spec
	return nil
}

func decodeSpec(node *yaml.Node) (Spec, error) {
	if node.Kind == yaml.ScalarNode {
		return ParseSpec(node.Value), nil
	}
	// alias type avoids recursing into UnmarshalYAML
	type plain Spec
	var p plain
	if err := node.Decode(&p); err != nil {
		return Spec{}, err
	}
	return Spec(p), nil
}
