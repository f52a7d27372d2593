package extractor

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"call-analytics-go/internal/types"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog is the ordered list of KPIs requested from the model.
type Catalog []types.KPIDefinition

type catalogFile struct {
	KPIs []struct {
		Name        string `yaml:"name"`
		Type        string `yaml:"type"`
		Description string `yaml:"description"`
	} `yaml:"kpis"`
}

// DefaultCatalog returns the built-in call summary, topic and coaching KPIs.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("extractor: built-in catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog YAML file.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kpi catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse kpi catalog: %w", err)
	}
	if len(f.KPIs) == 0 {
		return nil, fmt.Errorf("kpi catalog is empty")
	}

	seen := map[string]bool{}
	out := make(Catalog, 0, len(f.KPIs))
	for i, k := range f.KPIs {
		name := normalizeKey(k.Name)
		if name == "" {
			return nil, fmt.Errorf("kpi %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("kpi %q listed twice", name)
		}
		seen[name] = true

		kind, err := parseKind(k.Type)
		if err != nil {
			return nil, fmt.Errorf("kpi %q: %w", name, err)
		}
		out = append(out, types.KPIDefinition{Name: name, Type: kind, Description: strings.TrimSpace(k.Description)})
	}
	return out, nil
}

// Names lists the KPI names in catalog order.
func (c Catalog) Names() []string {
	out := make([]string, len(c))
	for i, d := range c {
		out[i] = d.Name
	}
	return out
}

func parseKind(s string) (types.KPIKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "string", "text", "":
		return types.KPIString, nil
	case "number", "float", "int", "integer":
		return types.KPINumber, nil
	case "boolean", "bool":
		return types.KPIBool, nil
	default:
		return types.KPIAbsent, fmt.Errorf("unknown type %q", s)
	}
}
