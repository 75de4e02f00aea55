package model

// Tables 需要 AutoMigrate 的全部表（staging表按administradora单独创建）
func Tables() []any {
	return []any{
		&Administrator{},
		&BidType{},
		&BidValueType{},
		&AssetType{},
		&Group{},
		&Asset{},
		&Bid{},
		&GroupVacancies{},
		&Quota{},
		&QuotaOwner{},
		&QuotaHistoryDetail{},
		&JobRun{},
	}
}
