package factors

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/shopspring/decimal"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var builtinTable []byte

const categorySectionPrefix = "category:"

type fileFactor struct {
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Unit     string  `yaml:"unit"`
	Factor   float64 `yaml:"kg_co2e_per_unit"`
	Source   string  `yaml:"source"`
}

type fileTable struct {
	Version          string                `yaml:"version"`
	Factors          []fileFactor          `yaml:"factors"`
	CategoryDefaults map[string]fileFactor `yaml:"category_defaults"`
}

// Builtin returns the embedded default factor table.
func Builtin() (Table, error) {
	return ParseYAML(builtinTable)
}

// LoadTable reads a factor table from disk. ".ini" files use the INI layout,
// everything else is parsed as YAML. An empty path yields the built-in table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return Builtin()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read factor table: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg":
		return ParseINI(data)
	default:
		return ParseYAML(data)
	}
}

func ParseYAML(data []byte) (Table, error) {
	var ft fileTable
	if err := yaml.Unmarshal(data, &ft); err != nil {
		return Table{}, fmt.Errorf("failed to parse factor table: %w", err)
	}

	table := Table{
		Version:          ft.Version,
		Factors:          make([]Factor, 0, len(ft.Factors)),
		CategoryDefaults: make(map[domain.Category]Factor, len(ft.CategoryDefaults)),
	}
	for _, f := range ft.Factors {
		factor, err := f.toFactor()
		if err != nil {
			return Table{}, err
		}
		table.Factors = append(table.Factors, factor)
	}
	for name, f := range ft.CategoryDefaults {
		category, err := domain.ParseCategory(name)
		if err != nil {
			return Table{}, fmt.Errorf("category default: %w", err)
		}
		f.Category = string(category)
		factor, err := f.toFactor()
		if err != nil {
			return Table{}, err
		}
		table.CategoryDefaults[category] = factor
	}
	return table, nil
}

func (f fileFactor) toFactor() (Factor, error) {
	category, err := domain.ParseCategory(f.Category)
	if err != nil {
		return Factor{}, fmt.Errorf("factor %q: %w", f.Name, err)
	}
	return Factor{
		Name:          strings.TrimSpace(f.Name),
		Category:      category,
		Unit:          strings.TrimSpace(f.Unit),
		KgCO2ePerUnit: decimal.NewFromFloat(f.Factor),
		Source:        f.Source,
	}, nil
}

// ParseINI reads the INI layout: the default section may hold "version", every other
// section is a factor named after the section, and "category:<Name>" sections hold
// category defaults.
//
//	version = 2024-01
//
//	[Diesel Fuel]
//	category = Fuel
//	unit = L
//	factor = 2.6
func ParseINI(data []byte) (Table, error) {
	cfg, err := ini.Load(data)
	if err != nil {
		return Table{}, fmt.Errorf("failed to parse factor table: %w", err)
	}

	table := Table{
		Version:          cfg.Section(ini.DefaultSection).Key("version").String(),
		CategoryDefaults: map[domain.Category]Factor{},
	}

	for _, section := range cfg.Sections() {
		if section.Name() == ini.DefaultSection || len(section.Keys()) == 0 {
			continue
		}

		value, err := decimal.NewFromString(section.Key("factor").String())
		if err != nil {
			return Table{}, fmt.Errorf("section %q: invalid factor: %w", section.Name(), err)
		}

		if strings.HasPrefix(section.Name(), categorySectionPrefix) {
			category, err := domain.ParseCategory(strings.TrimPrefix(section.Name(), categorySectionPrefix))
			if err != nil {
				return Table{}, fmt.Errorf("section %q: %w", section.Name(), err)
			}
			table.CategoryDefaults[category] = Factor{
				Category:      category,
				Unit:          section.Key("unit").String(),
				KgCO2ePerUnit: value,
				Source:        section.Key("source").String(),
			}
			continue
		}

		category, err := domain.ParseCategory(section.Key("category").String())
		if err != nil {
			return Table{}, fmt.Errorf("section %q: %w", section.Name(), err)
		}
		table.Factors = append(table.Factors, Factor{
			Name:          section.Name(),
			Category:      category,
			Unit:          section.Key("unit").String(),
			KgCO2ePerUnit: value,
			Source:        section.Key("source").String(),
		})
	}

	return table, nil
}
