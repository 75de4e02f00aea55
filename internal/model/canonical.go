package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Group grupo主表，业务唯一键 (administrator_id, code)
// code 固定5位，左侧补0；只做软删除
type Group struct {
	ID                  uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	Code                string     `gorm:"column:code;type:varchar(5);not null;uniqueIndex:uq_group_adm_code"`
	AdministratorID     uint64     `gorm:"column:administrator_id;type:bigint;not null;uniqueIndex:uq_group_adm_code"`
	DeadlineMonths      int        `gorm:"column:deadline_months;type:int;default:0"`
	StartDate           *time.Time `gorm:"column:start_date;type:date"`
	ClosingDate         *time.Time `gorm:"column:closing_date;type:date"`
	ChosenBid           *float64   `gorm:"column:chosen_bid;type:numeric(10,4)"`
	MaxBidOccurrencePct *float64   `gorm:"column:max_bid_occurrence_pct;type:numeric(10,4)"`
	BidCalculationDate  *time.Time `gorm:"column:bid_calculation_date;type:timestamp"`
	EmbeddedBidPct      *float64   `gorm:"column:embedded_bid_pct;type:numeric(10,4)"`
	Deleted             bool       `gorm:"column:deleted;type:boolean;default:false"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Group) TableName() string { return "pl_group" }

// Asset grupo在某个报告日期对应的bem；每个 group_id 最多一条 valid_to IS NULL
type Asset struct {
	ID          uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID     uint64          `gorm:"column:group_id;type:bigint;not null;index"`
	Description string          `gorm:"column:description;type:varchar(256)"`
	AdmCode     string          `gorm:"column:adm_code;type:varchar(64)"`
	Value       decimal.Decimal `gorm:"column:value;type:numeric(18,2);not null"`
	TypeID      *uint64         `gorm:"column:type_id;type:bigint"`
	InfoDate    time.Time       `gorm:"column:info_date;type:timestamp;not null"`
	ValidFrom   time.Time       `gorm:"column:valid_from;type:timestamp;not null"`
	ValidTo     *time.Time      `gorm:"column:valid_to;type:timestamp;index"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Asset) TableName() string { return "pl_asset" }

// Bid lance观测值，只追加不修改
type Bid struct {
	ID             uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID        uint64          `gorm:"column:group_id;type:bigint;not null;uniqueIndex:uq_bid_observation"`
	Value          decimal.Decimal `gorm:"column:value;type:numeric(10,4);not null"`
	AssemblyDate   time.Time       `gorm:"column:assembly_date;type:timestamp;not null;uniqueIndex:uq_bid_observation"`
	InfoDate       time.Time       `gorm:"column:info_date;type:timestamp;not null;uniqueIndex:uq_bid_observation"`
	BidTypeID      uint64          `gorm:"column:bid_type_id;type:bigint;not null;uniqueIndex:uq_bid_observation"`
	BidValueTypeID uint64          `gorm:"column:bid_value_type_id;type:bigint;not null;uniqueIndex:uq_bid_observation"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Bid) TableName() string { return "pl_bid" }

// GroupVacancies grupo空缺数，与Asset相同的有效期替换规则
type GroupVacancies struct {
	ID        uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID   uint64     `gorm:"column:group_id;type:bigint;not null;index"`
	Vacancies int        `gorm:"column:vacancies;type:int;not null"`
	InfoDate  time.Time  `gorm:"column:info_date;type:timestamp;not null"`
	ValidFrom time.Time  `gorm:"column:valid_from;type:timestamp;not null"`
	ValidTo   *time.Time `gorm:"column:valid_to;type:timestamp;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (GroupVacancies) TableName() string { return "pl_group_vacancies" }

// Version 有效期版本的通用视图（Asset/GroupVacancies/QuotaHistoryDetail）
type Version struct {
	ID        uint64
	InfoDate  time.Time
	ValidFrom time.Time
	Value     string // 用于判断同日期内容是否变化
}

// AsVersion Asset 的版本视图
func (a *Asset) AsVersion() Version {
	typeID := ""
	if a.TypeID != nil {
		typeID = strconv.FormatUint(*a.TypeID, 10)
	}
	return Version{ID: a.ID, InfoDate: a.InfoDate, ValidFrom: a.ValidFrom, Value: a.Value.String() + "|" + a.Description + "|" + typeID}
}

// AsVersion GroupVacancies 的版本视图
func (v *GroupVacancies) AsVersion() Version {
	return Version{ID: v.ID, InfoDate: v.InfoDate, ValidFrom: v.ValidFrom, Value: strconv.Itoa(v.Vacancies)}
}

// Owner 版本归属列及其取值
func (a *Asset) Owner() (string, uint64) { return "group_id", a.GroupID }

// Owner 版本归属列及其取值
func (v *GroupVacancies) Owner() (string, uint64) { return "group_id", v.GroupID }

// SetValidity 设置有效期
func (a *Asset) SetValidity(from time.Time, to *time.Time) { a.ValidFrom, a.ValidTo = from, to }

// SetValidity 设置有效期
func (v *GroupVacancies) SetValidity(from time.Time, to *time.Time) {
	v.ValidFrom, v.ValidTo = from, to
}
