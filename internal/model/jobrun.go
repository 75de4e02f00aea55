package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// JobRun 作业运行记录；run_id 同时作为staging批次的领取标记
type JobRun struct {
	ID            uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	RunID         string         `gorm:"column:run_id;type:varchar(64);uniqueIndex;not null"`
	Job           string         `gorm:"column:job;type:varchar(32);not null"`
	Administrator string         `gorm:"column:administrator;type:varchar(32);not null;index"`
	Status        string         `gorm:"column:status;type:varchar(16);not null"`
	Records       int            `gorm:"column:records;type:int;default:0"`
	Error         *string        `gorm:"column:error;type:text"`
	Detail        datatypes.JSON `gorm:"column:detail;type:jsonb"`
	StartedAt     time.Time      `gorm:"column:started_at;type:timestamp;not null"`
	FinishedAt    *time.Time     `gorm:"column:finished_at;type:timestamp"`
}

func (JobRun) TableName() string { return "etl_job_run" }
