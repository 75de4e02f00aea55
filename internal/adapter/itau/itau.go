// Package itau Itaú：xlsx（工作表 Grupos，表头前两行说明），chosen bid 只取最早的5个assembleia。
package itau

import (
	"regexp"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/rules"

	"github.com/sirupsen/logrus"
)

const (
	Code = "itau"
	// TruncateAssemblies chosen bid 计算时最多考虑的assembleia数
	TruncateAssemblies = 5
)

func init() {
	adapter.Register(Code, New)
}

func New(cfg config.AdministratorConfig, _ *logrus.Logger) *adapter.Administrator {
	cols := adapter.CommonColumns()
	cols[adapter.FieldBidAvg] = []string{"lance_medio", "percentual_lance_medio"}
	return &adapter.Administrator{
		Code:        Code,
		Description: "Itaú Administradora de Consórcios",
		Config:      cfg,
		Layout: adapter.Layout{
			StagingTable:    "tb_grupos_itau",
			Columns:         cols,
			DateFormats:     []string{"02/01/2006", "2006-01-02", "2006-01-02 15:04:05"},
			Required:        []string{adapter.FieldGroupCode},
			DataInfoPattern: regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
			DataInfoLayout:  "2006-01-02",
			Defaults:        map[string]string{adapter.FieldBidType: "livre"},
			BidsAsFraction:  true,
		},
		Rules: &rules.Profile{
			AdmCode:   Code,
			Assets:    rules.BackfillHistory{},
			Vacancies: rules.SupersedeOlder{},
			Bids:      rules.AveragePerAssembly{TruncateTo: TruncateAssemblies},
		},
	}
}
