// Package santander Santander：分号分隔、ISO-8859-1编码的lance文件，同日重发视为更正。
package santander

import (
	"regexp"
	"strings"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/rules"
	"ConsorcioSync/internal/utils/brformat"

	"github.com/sirupsen/logrus"
)

const Code = "santander"

func init() {
	adapter.Register(Code, New)
}

// canonicalize grupo代码带前缀与校验位（"GR-0164/3"），只保留数字部分的grupo号
func canonicalize(raw string) (string, error) {
	if i := strings.IndexByte(raw, '/'); i > 0 {
		raw = raw[:i]
	}
	return brformat.CanonicalGroupCode(brformat.OnlyDigits(raw))
}

func New(cfg config.AdministratorConfig, _ *logrus.Logger) *adapter.Administrator {
	cols := adapter.CommonColumns()
	cols[adapter.FieldGroupCode] = []string{"grupo_cota", "grupo"}
	cols[adapter.FieldAssemblyDate] = []string{"dt_assembleia", "data_assembleia"}
	return &adapter.Administrator{
		Code:        Code,
		Description: "Santander Consórcios",
		Config:      cfg,
		Layout: adapter.Layout{
			StagingTable:    "tb_lances_santander_pre",
			Columns:         cols,
			DateFormats:     []string{"02/01/2006", "02-01-2006", "2006-01-02"},
			Required:        []string{adapter.FieldGroupCode, adapter.FieldAssemblyDate},
			DataInfoPattern: regexp.MustCompile(`(\d{2}-\d{2}-\d{4})`),
			DataInfoLayout:  "02-01-2006",
			Defaults:        map[string]string{adapter.FieldBidType: "livre"},
		},
		Rules: &rules.Profile{
			AdmCode:   Code,
			Canon:     canonicalize,
			Assets:    rules.SupersedeOnChange{},
			Vacancies: rules.SupersedeOnChange{},
			Bids:      rules.AveragePerAssembly{},
		},
	}
}
