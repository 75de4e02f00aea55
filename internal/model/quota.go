package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quota cota：属于唯一的grupo与administradora（由API层服务维护，ETL核心不写入）
type Quota struct {
	ID              uint64       `gorm:"column:id;primaryKey;autoIncrement"`
	GroupID         uint64       `gorm:"column:group_id;type:bigint;not null;index"`
	AdministratorID uint64       `gorm:"column:administrator_id;type:bigint;not null"`
	Number          string       `gorm:"column:number;type:varchar(32);not null"`
	Status          string       `gorm:"column:status;type:varchar(32);default:active"`
	Owners          []QuotaOwner `gorm:"foreignKey:QuotaID"`
	CreatedAt       time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (Quota) TableName() string { return "pl_quota" }

// QuotaOwner cota持有人，ownership_percent 取值 (0, 1]
type QuotaOwner struct {
	ID               uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	QuotaID          uint64          `gorm:"column:quota_id;type:bigint;not null;index"`
	Document         string          `gorm:"column:document;type:varchar(32);not null"` // CPF/CNPJ
	Name             string          `gorm:"column:name;type:varchar(256)"`
	OwnershipPercent decimal.Decimal `gorm:"column:ownership_percent;type:numeric(5,4);not null"`
}

func (QuotaOwner) TableName() string { return "pl_quota_owner" }

// QuotaHistoryDetail cota快照，与Asset相同的有效期替换规则
type QuotaHistoryDetail struct {
	ID           uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	QuotaID      uint64          `gorm:"column:quota_id;type:bigint;not null;index"`
	PaidPercent  decimal.Decimal `gorm:"column:paid_percent;type:numeric(10,4)"`
	DebtBalance  decimal.Decimal `gorm:"column:debt_balance;type:numeric(18,2)"`
	Installments int             `gorm:"column:installments;type:int"`
	InfoDate     time.Time       `gorm:"column:info_date;type:timestamp;not null"`
	ValidFrom    time.Time       `gorm:"column:valid_from;type:timestamp;not null"`
	ValidTo      *time.Time      `gorm:"column:valid_to;type:timestamp;index"`
}

func (QuotaHistoryDetail) TableName() string { return "pl_quota_history_detail" }

// AsVersion QuotaHistoryDetail 的版本视图
func (d *QuotaHistoryDetail) AsVersion() Version {
	return Version{
		ID:        d.ID,
		InfoDate:  d.InfoDate,
		ValidFrom: d.ValidFrom,
		Value:     fmt.Sprintf("%s|%s|%d", d.PaidPercent, d.DebtBalance, d.Installments),
	}
}

// ValidateOwnership 校验持有人：至少一人，每人比例 (0,1]，合计不超过 1
func ValidateOwnership(owners []QuotaOwner) error {
	if len(owners) == 0 {
		return fmt.Errorf("cota至少需要一个持有人")
	}
	total := decimal.Zero
	one := decimal.NewFromInt(1)
	for _, o := range owners {
		if !o.OwnershipPercent.IsPositive() || o.OwnershipPercent.GreaterThan(one) {
			return fmt.Errorf("持有人%s的比例无效: %s", o.Document, o.OwnershipPercent)
		}
		total = total.Add(o.OwnershipPercent)
	}
	if total.GreaterThan(one) {
		return fmt.Errorf("持有人比例合计超过1: %s", total)
	}
	return nil
}

// Owner 版本归属列及其取值
func (d *QuotaHistoryDetail) Owner() (string, uint64) { return "quota_id", d.QuotaID }

// SetValidity 设置有效期
func (d *QuotaHistoryDetail) SetValidity(from time.Time, to *time.Time) {
	d.ValidFrom, d.ValidTo = from, to
}
