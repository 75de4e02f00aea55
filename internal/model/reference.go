package model

// Administrator administradora（静态引用数据，作业只读）
type Administrator struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	Code        string `gorm:"column:code;type:varchar(32);uniqueIndex;not null;comment:administradora代码（gmac/santander/itau...）"`
	Description string `gorm:"column:description;type:varchar(128);comment:描述"`
}

// BidType 出价类型：livre/embutido/fixo
type BidType struct {
	ID   uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Code string `gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
}

// BidValueType 出价取值类型：minimo/medio/maximo
type BidValueType struct {
	ID   uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Code string `gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
}

// AssetType bem类型（segmento）：imovel/automovel/motocicleta/...
type AssetType struct {
	ID   uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Code string `gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
}

const (
	AssetTypeRealEstate = "imovel"
	AssetTypeAutomobile = "automovel"
	AssetTypeMotorcycle = "motocicleta"
	AssetTypeHeavy      = "pesados"
	AssetTypeServices   = "servicos"
)

// AssetTypeCodes migrate 时写入的bem类型
var AssetTypeCodes = []string{AssetTypeRealEstate, AssetTypeAutomobile, AssetTypeMotorcycle, AssetTypeHeavy, AssetTypeServices}

const (
	BidTypeFree     = "livre"
	BidTypeEmbedded = "embutido"
	BidTypeFixed    = "fixo"

	BidValueMin = "minimo"
	BidValueAvg = "medio"
	BidValueMax = "maximo"
)

// BidTypeCodes migrate 时写入的出价类型
var BidTypeCodes = []string{BidTypeFree, BidTypeEmbedded, BidTypeFixed}

// BidValueTypeCodes migrate 时写入的取值类型
var BidValueTypeCodes = []string{BidValueMin, BidValueAvg, BidValueMax}

func (Administrator) TableName() string { return "pl_administrator" }
func (BidType) TableName() string       { return "pl_bid_type" }
func (BidValueType) TableName() string  { return "pl_bid_value_type" }
func (AssetType) TableName() string     { return "pl_asset_type" }
