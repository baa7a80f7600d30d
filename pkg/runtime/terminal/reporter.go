package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/carbon-atlas/pkg/models/domain"
	"github.com/shopspring/decimal"
)

const reportTemplate = `Carbon report: {{.SourceReference}}
Factor table {{.FactorTableVersion}}, extractor {{.Extractor}}
Total: {{kg .TotalCO2Kg}} kg CO2e
Items: {{len .Items}} ({{.UnresolvedCount}} unresolved, {{.ReviewCount}} need review)
{{range .Items}}
- {{.Name}}: {{.Quantity}} {{.Unit}} x {{.Emission.EmissionFactor}} = {{kg .Emission.TotalCO2Kg}} kg CO2e [{{.Emission.FactorStatus}}]{{if .NeedsReview}} (needs review){{end}}
{{- end}}

{{.RiskReport.Summary}}
Top drivers: {{drivers .RiskReport.TopDrivers}}
{{range .RiskReport.Recommendations}}
* {{.Text}}
{{- end}}
`

// Reporter outputs reports to the console in a formatted text form
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new console reporter
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

func (c *Reporter) Handle(report *domain.Report) error {
	funcMap := template.FuncMap{
		"kg": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"drivers": func(drivers []domain.Driver) string {
			if len(drivers) == 0 {
				return "none"
			}
			labels := make([]string, 0, len(drivers))
			for _, d := range drivers {
				labels = append(labels, d.String())
			}
			return strings.Join(labels, ", ")
		},
	}

	t, err := template.New("report").Funcs(funcMap).Parse(reportTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, report)
}
