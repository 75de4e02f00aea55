package rules

import (
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/utils/brformat"
)

// Profile 参数化的 AdministratorRules 实现，各administradora只需填写差异部分
type Profile struct {
	AdmCode   string
	Canon     func(raw string) (string, error) // nil 使用默认的5位规则
	Assets    interfaces.SupersessionPolicy
	Vacancies interfaces.SupersessionPolicy
	Bids      interfaces.BidSelector
}

var _ interfaces.AdministratorRules = (*Profile)(nil)

func (p *Profile) Code() string { return p.AdmCode }

func (p *Profile) CanonicalizeCode(raw string) (string, error) {
	if p.Canon != nil {
		return p.Canon(raw)
	}
	return brformat.CanonicalGroupCode(raw)
}

func (p *Profile) AssetSupersessionPolicy() interfaces.SupersessionPolicy {
	if p.Assets == nil {
		return SupersedeOlder{}
	}
	return p.Assets
}

func (p *Profile) VacancySupersessionPolicy() interfaces.SupersessionPolicy {
	if p.Vacancies == nil {
		return SupersedeOlder{}
	}
	return p.Vacancies
}

func (p *Profile) BidSelectionStrategy() interfaces.BidSelector {
	if p.Bids == nil {
		return AveragePerAssembly{}
	}
	return p.Bids
}
