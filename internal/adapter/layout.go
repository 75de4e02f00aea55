package adapter

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/utils/brformat"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// staging字段名
const (
	FieldGroupCode        = "group_code"
	FieldDeadlineMonths   = "deadline_months"
	FieldStartDate        = "start_date"
	FieldClosingDate      = "closing_date"
	FieldAssetDescription = "asset_description"
	FieldAssetAdmCode     = "asset_adm_code"
	FieldAssetValue       = "asset_value"
	FieldAssetType        = "asset_type"
	FieldVacancies        = "vacancies"
	FieldAssemblyDate     = "assembly_date"
	FieldBidType          = "bid_type"
	FieldBidMin           = "bid_min"
	FieldBidAvg           = "bid_avg"
	FieldBidMax           = "bid_max"
)

var (
	dateFields    = []string{FieldStartDate, FieldClosingDate, FieldAssemblyDate}
	decimalFields = []string{FieldAssetValue, FieldBidMin, FieldBidAvg, FieldBidMax}
	integerFields = []string{FieldDeadlineMonths, FieldVacancies}
	bidFields     = map[string]bool{FieldBidMin: true, FieldBidAvg: true, FieldBidMax: true}
	hundred       = decimal.NewFromInt(100)
)

// assetTypeAliases 合作方的segmento写法 -> bem类型代码
var assetTypeAliases = map[string]string{
	"imoveis":     model.AssetTypeRealEstate,
	"imobiliario": model.AssetTypeRealEstate,
	"auto":        model.AssetTypeAutomobile,
	"automoveis":  model.AssetTypeAutomobile,
	"veiculo":     model.AssetTypeAutomobile,
	"veiculos":    model.AssetTypeAutomobile,
	"moto":        model.AssetTypeMotorcycle,
	"motos":       model.AssetTypeMotorcycle,
	"caminhao":    model.AssetTypeHeavy,
	"caminhoes":   model.AssetTypeHeavy,
	"servico":     model.AssetTypeServices,
}

// CanonicalAssetType 规范化bem类型；不认识的写法原样（规范化后）保留，由reconcile报 NotFound
func CanonicalAssetType(raw string) string {
	code := brformat.NormalizeColumn(raw)
	if alias, ok := assetTypeAliases[code]; ok {
		return alias
	}
	return code
}

// Layout 合作方文件到staging行的映射规则
type Layout struct {
	StagingTable string
	// Columns staging字段 -> 规范化后的源列名（按顺序，第一个非空值生效）
	Columns        map[string][]string
	DateFormats    []string
	Required       []string
	SkipIncomplete bool // 缺少必填字段的行直接过滤（邮件附件类数据）
	// DataInfoPattern 从文件名提取报告日期，第一个子匹配按 DataInfoLayout 解析
	DataInfoPattern *regexp.Regexp
	DataInfoLayout  string
	Defaults        map[string]string
	BidsAsFraction  bool // lance以小数给出（0.3576 表示 35.76%）
}

// CommonColumns 大多数合作方共用的列名别名，返回新map供各administradora修改
func CommonColumns() map[string][]string {
	return map[string][]string{
		FieldGroupCode:        {"grupo", "cod_grupo", "codigo_grupo", "numero_grupo"},
		FieldDeadlineMonths:   {"prazo", "prazo_meses", "prazo_grupo"},
		FieldStartDate:        {"data_inicio", "inicio_grupo", "data_constituicao"},
		FieldClosingDate:      {"data_encerramento", "encerramento", "data_fim"},
		FieldAssetDescription: {"bem", "descricao_bem", "descricao_do_bem"},
		FieldAssetAdmCode:     {"codigo_bem", "cod_bem"},
		FieldAssetValue:       {"valor_bem", "valor_do_bem", "credito", "valor_credito"},
		FieldAssetType:        {"tipo_bem", "segmento"},
		FieldVacancies:        {"vagas", "qtd_vagas", "cotas_vagas"},
		FieldAssemblyDate:     {"data_assembleia", "assembleia", "dt_assembleia"},
		FieldBidType:          {"tipo_lance", "modalidade_lance"},
		FieldBidMin:           {"lance_minimo", "menor_lance"},
		FieldBidAvg:           {"lance_medio", "media_lance"},
		FieldBidMax:           {"lance_maximo", "maior_lance"},
	}
}

// DataInfo 报告日期：文件名匹配时取文件名中的日期，否则取运行时间
func (l *Layout) DataInfo(key string, runTime time.Time) (time.Time, error) {
	if l.DataInfoPattern != nil && key != "" {
		if m := l.DataInfoPattern.FindStringSubmatch(filepath.Base(key)); len(m) > 1 {
			t, err := time.ParseInLocation(l.DataInfoLayout, m[1], time.UTC)
			if err != nil {
				return time.Time{}, etlerr.WithColumn(&etlerr.DateFormatError{Value: m[1]}, "data_info")
			}
			return t, nil
		}
	}
	return runTime.UTC(), nil
}

// ToStaging 将一条合作方记录转换为staging行。
// skip=true 表示该行因缺少必填字段被过滤（仅 SkipIncomplete）；任何解析失败返回错误。
func (l *Layout) ToStaging(rec *model.PartnerRecord, dataInfo time.Time, sourceFile string) (row *model.StagingRow, skip bool, err error) {
	values := make(map[string]string, len(l.Columns))
	for field, aliases := range l.Columns {
		for _, col := range aliases {
			if v := strings.TrimSpace(rec.Fields[col]); v != "" {
				values[field] = v
				break
			}
		}
	}
	for field, v := range l.Defaults {
		if values[field] == "" {
			values[field] = v
		}
	}

	for _, field := range l.Required {
		if values[field] != "" {
			continue
		}
		if l.SkipIncomplete {
			return nil, true, nil
		}
		return nil, false, fmt.Errorf("第%d行缺少必填字段%s", rec.Line, field)
	}

	for _, field := range dateFields {
		if values[field] == "" {
			continue
		}
		t, err := brformat.ParseDate(values[field], l.DateFormats)
		if err != nil {
			return nil, false, fmt.Errorf("第%d行: %w", rec.Line, etlerr.WithColumn(err, field))
		}
		values[field] = brformat.FormatDate(t)
	}
	for _, field := range decimalFields {
		d, ok, err := brformat.ParseBRDecimal(values[field])
		if err != nil {
			return nil, false, fmt.Errorf("第%d行: %w", rec.Line, etlerr.WithColumn(err, field))
		}
		if !ok {
			values[field] = ""
			continue
		}
		if l.BidsAsFraction && bidFields[field] {
			d = d.Mul(hundred)
		}
		values[field] = d.String()
	}
	for _, field := range integerFields {
		d, ok, err := brformat.ParseBRDecimal(values[field])
		if err != nil {
			return nil, false, fmt.Errorf("第%d行: %w", rec.Line, etlerr.WithColumn(err, field))
		}
		if !ok {
			values[field] = ""
			continue
		}
		if !d.Equal(d.Truncate(0)) {
			return nil, false, fmt.Errorf("第%d行: %w", rec.Line, &etlerr.NumberFormatError{Column: field, Value: values[field]})
		}
		values[field] = d.Truncate(0).String()
	}
	if v := values[FieldBidType]; v != "" {
		values[FieldBidType] = brformat.NormalizeColumn(v)
	}
	if v := values[FieldAssetType]; v != "" {
		values[FieldAssetType] = CanonicalAssetType(v)
	}

	raw, err := json.Marshal(rec.Fields)
	if err != nil {
		return nil, false, fmt.Errorf("第%d行原始数据序列化失败: %w", rec.Line, err)
	}
	return &model.StagingRow{
		GroupCode:        values[FieldGroupCode],
		DeadlineMonths:   values[FieldDeadlineMonths],
		StartDate:        values[FieldStartDate],
		ClosingDate:      values[FieldClosingDate],
		AssetDescription: values[FieldAssetDescription],
		AssetAdmCode:     values[FieldAssetAdmCode],
		AssetValue:       values[FieldAssetValue],
		AssetType:        values[FieldAssetType],
		Vacancies:        values[FieldVacancies],
		AssemblyDate:     values[FieldAssemblyDate],
		BidType:          values[FieldBidType],
		BidMin:           values[FieldBidMin],
		BidAvg:           values[FieldBidAvg],
		BidMax:           values[FieldBidMax],
		Raw:              datatypes.JSON(raw),
		SourceFile:       sourceFile,
		DataInfo:         dataInfo,
	}, false, nil
}
