// Package source 读取合作方表格：xlsx、分隔符文本与合作方API，统一输出规范化表头的 Table。
package source

import (
	"context"
	"io"
	"strings"

	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/utils/brformat"
)

// FileOpener 按对象key打开源文件
type FileOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Row 一行数据及其在源中的行号（1起）
type Row struct {
	Line   int
	Values []string
}

// Table 表头已规范化的表格
type Table struct {
	Header []string
	Rows   []Row
}

// NewTable 规范化表头；空行丢弃，短行补齐到表头宽度
// headerLine 为表头所在行号（1起），数据行号从其后开始计算
func NewTable(header []string, rows [][]string, headerLine int) *Table {
	t := &Table{Header: make([]string, len(header))}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		t.Header[i] = brformat.NormalizeColumn(h)
	}
	for i, r := range rows {
		if isBlank(r) {
			continue
		}
		values := make([]string, len(t.Header))
		copy(values, r)
		t.Rows = append(t.Rows, Row{Line: headerLine + 1 + i, Values: values})
	}
	return t
}

// Records 转为通用的合作方记录；空表头列被忽略
func (t *Table) Records(administrator string) []*model.PartnerRecord {
	out := make([]*model.PartnerRecord, 0, len(t.Rows))
	for _, r := range t.Rows {
		fields := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			if h == "" {
				continue
			}
			fields[h] = strings.TrimSpace(r.Values[i])
		}
		out = append(out, &model.PartnerRecord{Administrator: administrator, Line: r.Line, Fields: fields})
	}
	return out
}

func isBlank(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
