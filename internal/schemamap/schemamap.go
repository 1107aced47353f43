// Package schemamap translates survey-specific alert field names to canonical ones.
// Each supported survey ships an embedded YAML map.
package schemamap

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed maps/*.yml
var mapFiles embed.FS

// Canonical keys understood by the rest of the service.
const (
	KeyAlertID    = "alertId"
	KeyObjectID   = "objectId"
	KeySourceID   = "sourceId"
	KeySource     = "source"
	KeyPrvSources = "prvSources"
	KeyFilter     = "filter"
	KeyMJD        = "mjd"
	KeyJD         = "jd"
	KeyFlux       = "flux"
	KeyFluxErr    = "fluxerr"
	KeyMag        = "mag"
	KeyMagErr     = "magerr"
	KeyMagZP      = "magzp"
)

// Path is a field name or a nested path such as [diaSource, diaSourceId].
// In YAML it may be written as a scalar or a sequence.
type Path []string

// UnmarshalYAML accepts both a scalar and a sequence of scalars.
func (p *Path) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = Path{node.Value}
		return nil
	case yaml.SequenceNode:
		var parts []string
		if err := node.Decode(&parts); err != nil {
			return err
		}
		if len(parts) == 0 {
			return fmt.Errorf("line %d: empty path", node.Line)
		}
		*p = Path(parts)
		return nil
	default:
		return fmt.Errorf("line %d: path must be a string or list of strings", node.Line)
	}
}

// Leaf returns the last element of the path, the field name within its record.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Map is a survey's schema map. It is read-only after Load.
type Map struct {
	Survey      string
	SchemaName  string
	TopicSyntax string
	keys        map[string]Path
	filterMap   map[string]string
}

type mapFile struct {
	Survey      string            `yaml:"SURVEY"`
	SchemaName  string            `yaml:"SURVEY_SCHEMA"`
	TopicSyntax string            `yaml:"TOPIC_SYNTAX"`
	FilterMap   map[string]string `yaml:"FILTER_MAP"`
}

// Surveys returns the names of the surveys that have an embedded schema map.
func Surveys() []string {
	entries, err := mapFiles.ReadDir("maps")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yml"))
	}
	sort.Strings(names)
	return names
}

// Load returns the embedded schema map for survey.
func Load(survey string) (*Map, error) {
	data, err := mapFiles.ReadFile("maps/" + survey + ".yml")
	if err != nil {
		return nil, fmt.Errorf("no schema map for survey %q (known: %s)", survey, strings.Join(Surveys(), ", "))
	}
	return Parse(data)
}

// Parse builds a Map from YAML. Upper-case keys are settings; every other
// key maps a canonical field name to the survey's path.
func Parse(data []byte) (*Map, error) {
	var meta mapFile
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse schema map: %w", err)
	}
	if meta.Survey == "" {
		return nil, fmt.Errorf("schema map is missing SURVEY")
	}

	var all map[string]yaml.Node
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse schema map: %w", err)
	}

	keys := make(map[string]Path, len(all))
	for name, node := range all {
		if strings.ToUpper(name) == name {
			continue
		}
		var p Path
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("schema map %s: key %s: %w", meta.Survey, name, err)
		}
		keys[name] = p
	}

	for _, required := range []string{KeyObjectID, KeySourceID, KeySource, KeyFilter} {
		if _, ok := keys[required]; !ok {
			return nil, fmt.Errorf("schema map %s: missing required key %s", meta.Survey, required)
		}
	}

	filterMap := meta.FilterMap
	if filterMap == nil {
		filterMap = map[string]string{}
	}

	return &Map{
		Survey:      meta.Survey,
		SchemaName:  meta.SchemaName,
		TopicSyntax: meta.TopicSyntax,
		keys:        keys,
		filterMap:   filterMap,
	}, nil
}

// Has reports whether the survey declares the canonical key.
func (m *Map) Has(key string) bool {
	_, ok := m.keys[key]
	return ok
}

// Path returns the survey's path for a canonical key.
func (m *Map) Path(key string) (Path, bool) {
	p, ok := m.keys[key]
	return p, ok
}

// Key returns the field name the survey uses for a canonical key, or "" if undeclared.
func (m *Map) Key(key string) string {
	return m.keys[key].Leaf()
}

// Filter maps a survey filter code to its band label. Surveys without a
// FILTER_MAP return the code unchanged.
func (m *Map) Filter(code string) (string, bool) {
	if len(m.filterMap) == 0 {
		return code, true
	}
	label, ok := m.filterMap[code]
	return label, ok
}

// Value resolves the path for key inside a decoded alert.
func (m *Map) Value(key string, alert map[string]any) (any, bool) {
	p, ok := m.keys[key]
	if !ok {
		return nil, false
	}
	return Lookup(alert, p)
}

// Lookup walks a nested record along p.
func Lookup(record map[string]any, p Path) (any, bool) {
	var cur any = record
	for _, part := range p {
		rec, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = rec[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}
