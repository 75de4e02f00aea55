package adapter

import (
	"fmt"
	"sort"
	"strings"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/rules"

	"github.com/sirupsen/logrus"
)

// Registry 根据配置实例化的administradora集合
type Registry struct {
	cfg    *config.Config
	logger *logrus.Logger
	admins map[string]*Administrator
}

func NewRegistry(cfg *config.Config, logger *logrus.Logger) *Registry {
	r := &Registry{
		cfg:    cfg,
		logger: logger,
		admins: make(map[string]*Administrator),
	}
	r.initFromFactories()
	return r
}

// initFromFactories 遍历配置中的administradora，匹配工厂函数创建实例
func (r *Registry) initFromFactories() {
	r.logger.WithField("factories", ListFactories()).Debug("已注册的administradora工厂函数")

	for code, admCfg := range r.cfg.Administrators {
		code = strings.ToLower(code)
		factory, ok := GetFactory(code)
		if !ok {
			r.logger.WithField("administrator", code).Error("未找到对应的工厂函数（init未注册？）")
			continue
		}
		adm := factory(admCfg, r.logger)
		if adm == nil || adm.Code != code {
			r.logger.WithField("administrator", code).Error("工厂函数返回的administradora与配置不匹配")
			continue
		}
		r.applyPolicyOverrides(adm)
		r.admins[code] = adm
	}
	r.logger.WithField("administrators", r.List()).Info("administradora初始化完成")
}

// applyPolicyOverrides 配置中的 asset_policy / vacancy_policy 覆盖默认版本替换策略
func (r *Registry) applyPolicyOverrides(adm *Administrator) {
	profile, ok := adm.Rules.(*rules.Profile)
	if !ok {
		return
	}
	if name := adm.Config.AssetPolicy; name != "" {
		if p, ok := rules.PolicyByName(name); ok {
			profile.Assets = p
		} else {
			r.logger.WithFields(logrus.Fields{"administrator": adm.Code, "policy": name}).Error("未知的bem版本替换策略，保留默认值")
		}
	}
	if name := adm.Config.VacancyPolicy; name != "" {
		if p, ok := rules.PolicyByName(name); ok {
			profile.Vacancies = p
		} else {
			r.logger.WithFields(logrus.Fields{"administrator": adm.Code, "policy": name}).Error("未知的空缺数版本替换策略，保留默认值")
		}
	}
}

// Get 获取administradora实例
func (r *Registry) Get(code string) (*Administrator, error) {
	adm, ok := r.admins[strings.ToLower(code)]
	if !ok {
		return nil, fmt.Errorf("administradora %s未配置或未注册（已初始化：%v）", code, r.List())
	}
	return adm, nil
}

// List 已初始化的administradora代码（有序）
func (r *Registry) List() []string {
	codes := make([]string, 0, len(r.admins))
	for c := range r.admins {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// All 全部已初始化实例（按代码排序）
func (r *Registry) All() []*Administrator {
	out := make([]*Administrator, 0, len(r.admins))
	for _, c := range r.List() {
		out = append(out, r.admins[c])
	}
	return out
}
