package adapter

import (
	"fmt"
	"sort"

	"ConsorcioSync/internal/config"
	"ConsorcioSync/internal/interfaces"
	"ConsorcioSync/internal/partnerapi"
	"ConsorcioSync/internal/source"

	"github.com/sirupsen/logrus"
)

// Administrator 一个administradora的完整接入定义：配置、文件布局与业务规则
type Administrator struct {
	Code        string
	Description string
	Config      config.AdministratorConfig
	Layout      Layout
	Rules       interfaces.AdministratorRules
}

// DetailType 完成事件的detail_type
func (a *Administrator) DetailType() string {
	if a.Config.DetailType != "" {
		return a.Config.DetailType
	}
	return fmt.Sprintf("quota_ingestion_%s_pos", a.Code)
}

// NewSource 按配置的数据源类型构建 TableSource；文件类数据源需要 key
func (a *Administrator) NewSource(files source.FileOpener, key string, logger *logrus.Logger) (interfaces.TableSource, error) {
	switch a.Config.Source {
	case "xlsx":
		if key == "" {
			return nil, fmt.Errorf("%s的xlsx数据源需要指定文件key", a.Code)
		}
		return &source.XLSXSource{Files: files, Key: key, Sheet: a.Config.Sheet, HeaderRow: a.Config.HeaderRow, Password: a.Config.Password}, nil
	case "csv":
		if key == "" {
			return nil, fmt.Errorf("%s的csv数据源需要指定文件key", a.Code)
		}
		return &source.CSVSource{Files: files, Key: key, Delimiter: a.Config.Delimiter, Encoding: a.Config.Encoding, HeaderRow: a.Config.HeaderRow}, nil
	case "api":
		if a.Config.BaseURL == "" {
			return nil, fmt.Errorf("%s的API数据源未配置base_url", a.Code)
		}
		return &source.APISource{Client: partnerapi.NewClient(a.Config, logger), Path: a.Config.ResourcePath}, nil
	default:
		return nil, fmt.Errorf("%s的数据源类型不支持: %q", a.Code, a.Config.Source)
	}
}

// Factory administradora工厂函数签名
type Factory func(cfg config.AdministratorConfig, logger *logrus.Logger) *Administrator

// ========== 全局工厂函数注册表 ==========
var factoryRegistry = make(map[string]Factory)

// Register 供各administradora包的init函数调用
func Register(code string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("administradora %s的工厂函数不能为nil", code))
	}
	if _, exists := factoryRegistry[code]; exists {
		logrus.Warnf("administradora %s已注册，将覆盖原有实现", code)
	}
	factoryRegistry[code] = factory
}

// GetFactory 获取指定administradora的工厂函数
func GetFactory(code string) (Factory, bool) {
	factory, ok := factoryRegistry[code]
	return factory, ok
}

// ListFactories 列出所有已注册的administradora代码（有序）
func ListFactories() []string {
	codes := make([]string, 0, len(factoryRegistry))
	for c := range factoryRegistry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}
