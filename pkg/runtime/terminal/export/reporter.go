package export

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
	"github.com/shopspring/decimal"
)

type TableConfig struct {
	NameWidth     int
	QuantityWidth int
	FactorWidth   int
	TotalWidth    int
	StatusWidth   int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		NameWidth:     24,
		QuantityWidth: 12,
		FactorWidth:   8,
		TotalWidth:    12,
		StatusWidth:   20,
	}
}

const reportTemplate = `Carbon report: {{.SourceReference}} ({{.FactorTableVersion}})

{{separator}}
{{formatRow "Item" "Quantity" "Factor" "kg CO2e" "Status"}}
{{separator}}
{{range .Items}}{{itemRow .}}
{{end}}{{separator}}
{{formatRow "Total" "" "" (kg .TotalCO2Kg) ""}}
{{separator}}

Top drivers:
{{range .RiskReport.TopDrivers}}  {{.}}
{{else}}  none
{{end}}
Recommendations:
{{range .RiskReport.Recommendations}}  - {{.Text}}
{{else}}  none
{{end}}`

const factorTemplate = `Factor table {{.Version}}

{{separator}}
{{formatRow "Factor" "Unit" "kg/unit" "" "Category"}}
{{separator}}
{{range .Factors}}{{factorRow . false}}
{{end}}{{range .CategoryDefaults}}{{factorRow . true}}
{{end}}{{separator}}
`

type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

func (c *Reporter) funcMap() template.FuncMap {
	formatRow := func(name, quantity, factor, total, status string) string {
		return fmt.Sprintf("| %-*s | %*s | %*s | %*s | %-*s |",
			c.config.NameWidth, name,
			c.config.QuantityWidth, quantity,
			c.config.FactorWidth, factor,
			c.config.TotalWidth, total,
			c.config.StatusWidth, status)
	}

	return template.FuncMap{
		"formatRow": formatRow,
		"separator": func() string {
			return fmt.Sprintf("+%s+%s+%s+%s+%s+",
				strings.Repeat("-", c.config.NameWidth+2),
				strings.Repeat("-", c.config.QuantityWidth+2),
				strings.Repeat("-", c.config.FactorWidth+2),
				strings.Repeat("-", c.config.TotalWidth+2),
				strings.Repeat("-", c.config.StatusWidth+2))
		},
		"kg": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"itemRow": func(item domain.PricedItem) string {
			status := string(item.Emission.FactorStatus)
			if item.NeedsReview {
				status += " (review)"
			}
			return formatRow(
				item.Name,
				strconv.FormatFloat(item.Quantity, 'f', -1, 64)+" "+item.Unit,
				item.Emission.EmissionFactor.String(),
				item.Emission.TotalCO2Kg.StringFixed(2),
				status)
		},
		"factorRow": func(f factors.Factor, categoryDefault bool) string {
			name, category := f.Name, string(f.Category)
			if categoryDefault {
				name, category = "*", category+" (default)"
			}
			return formatRow(name, f.Unit, f.KgCO2ePerUnit.String(), "", category)
		},
	}
}

func (c *Reporter) Handle(report *domain.Report) error {
	t, err := template.New("report").Funcs(c.funcMap()).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, report)
}

// HandleFactors prints the factors of a registry snapshot, category defaults last.
func (c *Reporter) HandleFactors(snapshot *factors.Snapshot) error {
	t, err := template.New("factors").Funcs(c.funcMap()).Parse(factorTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, struct {
		Version          string
		Factors          []factors.Factor
		CategoryDefaults []factors.Factor
	}{
		Version:          snapshot.Version(),
		Factors:          snapshot.Factors(),
		CategoryDefaults: snapshot.CategoryDefaults(),
	})
}
