// Package porto Porto Seguro：数据来自合作方REST API；chosen bid 取最高单个lance，
// embutido比例由grupo代码规则表决定。
package porto

import (
	"time"

	"ConsorcioSync/internal/adapter"
	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/rules"

	"github.com/sirupsen/logrus"
)

const Code = "porto"

// EmbeddedRules 按顺序匹配，第一条命中生效。
// 04xxx 为imóveis，05xxx 为automóveis；后缀是grupo序号。
var EmbeddedRules = []rules.EmbeddedBidRule{
	{CodePrefix: "04", SuffixMin: 500, Pct: 30},
	{CodePrefix: "04", DeadlineMonths: 200, Pct: 25},
	{CodePrefix: "04", Pct: 20},
	{CodePrefix: "05", SuffixMax: 299, DeadlineMonths: 80, Pct: 25},
	{CodePrefix: "05", Pct: 15},
}

func init() {
	adapter.Register(Code, New)
}

func New(cfg config.AdministratorConfig, _ *logrus.Logger) *adapter.Administrator {
	return &adapter.Administrator{
		Code:        Code,
		Description: "Porto Seguro Consórcios",
		Config:      cfg,
		Layout: adapter.Layout{
			StagingTable: "tb_grupos_porto",
			Columns:      adapter.CommonColumns(),
			DateFormats:  []string{"2006-01-02", time.RFC3339},
			Required:     []string{adapter.FieldGroupCode},
			Defaults:     map[string]string{adapter.FieldBidType: "livre"},
		},
		Rules: &rules.Profile{
			AdmCode:   Code,
			Assets:    rules.SupersedeOlder{},
			Vacancies: rules.SupersedeOlder{},
			Bids:      rules.HighestBid{EmbeddedRules: EmbeddedRules},
		},
	}
}
