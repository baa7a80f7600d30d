package adapters

import (
	"github.com/de-tools/carbon-atlas/pkg/models/api"
	"github.com/de-tools/carbon-atlas/pkg/services/factors"
)

func MapFactorToApi(f factors.Factor, categoryDefault bool) api.Factor {
	return api.Factor{
		Name:            f.Name,
		Category:        string(f.Category),
		Unit:            f.Unit,
		KgCO2ePerUnit:   api.NewDecimal(f.KgCO2ePerUnit),
		Source:          f.Source,
		CategoryDefault: categoryDefault,
	}
}

func MapFactorSnapshotToApi(s *factors.Snapshot) api.FactorTable {
	res := api.FactorTable{
		Version: s.Version(),
		Factors: []api.Factor{},
	}
	for _, f := range s.Factors() {
		res.Factors = append(res.Factors, MapFactorToApi(f, false))
	}
	for _, f := range s.CategoryDefaults() {
		res.Factors = append(res.Factors, MapFactorToApi(f, true))
	}
	return res
}
