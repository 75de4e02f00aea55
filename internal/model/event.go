package model

import (
	"encoding/json"
	"time"
)

// Envelope 完成事件信封，字段与下游事件总线约定一致
type Envelope struct {
	ID           string          `json:"id"`
	Source       string          `json:"source"`
	DetailType   string          `json:"detail_type"`
	Detail       json.RawMessage `json:"detail"`
	EventBusName string          `json:"event_bus_name"`
	Time         time.Time       `json:"time"`
}

// CompletionDetail 作业完成事件的detail；下游按 run_id 去重
type CompletionDetail struct {
	RunID         string   `json:"run_id"`
	Job           string   `json:"job"`
	Administrator string   `json:"administrator"`
	Status        string   `json:"status"`
	Records       int      `json:"records"`
	GroupIDs      []uint64 `json:"group_ids,omitempty"`
	Error         string   `json:"error,omitempty"`
}
