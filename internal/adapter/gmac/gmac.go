// Package gmac GMAC：xlsx格式的grupo/bem/lance月报，文件名带报告日期（grupos_20260930.xlsx）。
package gmac

import (
	"regexp"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/rules"

	"github.com/sirupsen/logrus"
)

const Code = "gmac"

func init() {
	adapter.Register(Code, New)
}

func New(cfg config.AdministratorConfig, _ *logrus.Logger) *adapter.Administrator {
	cols := adapter.CommonColumns()
	cols[adapter.FieldAssetValue] = append([]string{"valor_credito_atualizado"}, cols[adapter.FieldAssetValue]...)
	return &adapter.Administrator{
		Code:        Code,
		Description: "GMAC Administradora de Consórcios",
		Config:      cfg,
		Layout: adapter.Layout{
			StagingTable:    "tb_grupos_gmac",
			Columns:         cols,
			DateFormats:     []string{"02/01/2006", "2006-01-02", "02/01/2006 15:04:05"},
			Required:        []string{adapter.FieldGroupCode},
			DataInfoPattern: regexp.MustCompile(`(\d{8})`),
			DataInfoLayout:  "20060102",
			Defaults:        map[string]string{adapter.FieldBidType: "livre"},
		},
		Rules: &rules.Profile{
			AdmCode:   Code,
			Assets:    rules.SupersedeOlder{},
			Vacancies: rules.SupersedeOlder{},
			Bids:      rules.AveragePerAssembly{},
		},
	}
}
