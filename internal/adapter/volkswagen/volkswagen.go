// Package volkswagen Volkswagen：邮件附件csv，缺少必填字段的行在入库前过滤。
package volkswagen

import (
	"regexp"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/rules"

	"github.com/sirupsen/logrus"
)

const Code = "volkswagen"

func init() {
	adapter.Register(Code, New)
}

func New(cfg config.AdministratorConfig, _ *logrus.Logger) *adapter.Administrator {
	return &adapter.Administrator{
		Code:        Code,
		Description: "Consórcio Nacional Volkswagen",
		Config:      cfg,
		Layout: adapter.Layout{
			StagingTable:    "tb_grupos_volkswagen",
			Columns:         adapter.CommonColumns(),
			DateFormats:     []string{"02/01/2006", "2006-01-02"},
			Required:        []string{adapter.FieldGroupCode, adapter.FieldAssetValue},
			SkipIncomplete:  true,
			DataInfoPattern: regexp.MustCompile(`(\d{8})`),
			DataInfoLayout:  "02012006",
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
