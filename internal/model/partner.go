package model

// PartnerRecord 所有合作方源数据的通用行结构（列名已规范化）
type PartnerRecord struct {
	Administrator string            // administradora代码
	Line          int               // 源文件中的行号（含表头偏移），用于报错定位
	Fields        map[string]string // 规范化列名 -> 原始值
}

// ========== 合作方 REST API 响应结构（GET {resource_path}?page=N） ==========

// PartnerPageResponse 分页响应根结构
type PartnerPageResponse struct {
	Items    []PartnerGroupItem `json:"items"`
	Page     int                `json:"page"`
	NextPage *int               `json:"next_page"`
	Total    int                `json:"total"`
}

// PartnerGroupItem 单条grupo数据（字段为合作方原始命名，统一按字符串接收）
type PartnerGroupItem struct {
	Grupo         string `json:"grupo"`
	Prazo         string `json:"prazo"`
	DataInicio    string `json:"data_inicio"`
	DataEncerra   string `json:"data_encerramento"`
	Bem           string `json:"bem"`
	CodigoBem     string `json:"codigo_bem"`
	ValorBem      string `json:"valor_bem"`
	TipoBem       string `json:"tipo_bem"`
	Vagas         string `json:"vagas"`
	DataAssemblea string `json:"data_assembleia"`
	TipoLance     string `json:"tipo_lance"`
	LanceMinimo   string `json:"lance_minimo"`
	LanceMedio    string `json:"lance_medio"`
	LanceMaximo   string `json:"lance_maximo"`
}

// Fields 转为与文件源一致的列名映射
func (i PartnerGroupItem) Fields() map[string]string {
	return map[string]string{
		"grupo":             i.Grupo,
		"prazo":             i.Prazo,
		"data_inicio":       i.DataInicio,
		"data_encerramento": i.DataEncerra,
		"bem":               i.Bem,
		"codigo_bem":        i.CodigoBem,
		"valor_bem":         i.ValorBem,
		"tipo_bem":          i.TipoBem,
		"vagas":             i.Vagas,
		"data_assembleia":   i.DataAssemblea,
		"tipo_lance":        i.TipoLance,
		"lance_minimo":      i.LanceMinimo,
		"lance_medio":       i.LanceMedio,
		"lance_maximo":      i.LanceMaximo,
	}
}
