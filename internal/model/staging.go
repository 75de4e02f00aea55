package model

import (
	"time"

	"gorm.io/datatypes"
)

// StagingRow pre-staging行：每个合作方feed一张物理表（tb_grupos_gmac、tb_lances_santander_pre...），
// 结构相同，通过 db.Table(name) 访问。
// 业务字段为规范化后的文本（日期 yyyy-mm-dd，数值为机器格式），由reconciler在落库时解析。
// IsProcessed 是唯一的幂等标记：reconciler成功写入后置 true，之后不再被领取。
// ClaimedBy/ClaimedAt 为批次领取标记，防止并发运行重复处理同一批数据。
// 多张表共用此结构，索引名不能由tag生成，见 repository.EnsureStagingTable。
type StagingRow struct {
	ID               uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	GroupCode        string         `gorm:"column:group_code;type:varchar(32);not null"`
	DeadlineMonths   string         `gorm:"column:deadline_months;type:varchar(16)"`
	StartDate        string         `gorm:"column:start_date;type:varchar(32)"`
	ClosingDate      string         `gorm:"column:closing_date;type:varchar(32)"`
	AssetDescription string         `gorm:"column:asset_description;type:varchar(256)"`
	AssetAdmCode     string         `gorm:"column:asset_adm_code;type:varchar(64)"`
	AssetValue       string         `gorm:"column:asset_value;type:varchar(32)"`
	AssetType        string         `gorm:"column:asset_type;type:varchar(64)"`
	Vacancies        string         `gorm:"column:vacancies;type:varchar(16)"`
	AssemblyDate     string         `gorm:"column:assembly_date;type:varchar(32)"`
	BidType          string         `gorm:"column:bid_type;type:varchar(32)"`
	BidMin           string         `gorm:"column:bid_min;type:varchar(32)"`
	BidAvg           string         `gorm:"column:bid_avg;type:varchar(32)"`
	BidMax           string         `gorm:"column:bid_max;type:varchar(32)"`
	Raw              datatypes.JSON `gorm:"column:raw;type:jsonb"`
	SourceFile       string         `gorm:"column:source_file;type:varchar(256)"`
	IsProcessed      bool           `gorm:"column:is_processed;type:boolean;default:false"`
	DataInfo         time.Time      `gorm:"column:data_info;type:timestamp;not null"`
	ClaimedBy        *string        `gorm:"column:claimed_by;type:varchar(64)"`
	ClaimedAt        *time.Time     `gorm:"column:claimed_at;type:timestamp"`
	ProcessedAt      *time.Time     `gorm:"column:processed_at;type:timestamp"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// HasAsset 行中是否带有bem信息
func (r *StagingRow) HasAsset() bool {
	return r.AssetValue != "" || r.AssetDescription != ""
}

// HasVacancies 行中是否带有空缺数
func (r *StagingRow) HasVacancies() bool {
	return r.Vacancies != ""
}

// HasBids 行中是否带有lance观测值
func (r *StagingRow) HasBids() bool {
	return r.AssemblyDate != "" && (r.BidMin != "" || r.BidAvg != "" || r.BidMax != "")
}
