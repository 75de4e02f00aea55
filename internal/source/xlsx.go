package source

import (
	"context"
	"errors"
	"fmt"

	"ConsorcioSync/internal/etlerr"

	"github.com/xuri/excelize/v2"
)

// XLSXSource 读取xlsx文件；支持指定工作表、表头偏移与打开密码
type XLSXSource struct {
	Files     FileOpener
	Key       string
	Sheet     string // 空则取第一个工作表
	HeaderRow int    // 表头前跳过的行数
	Password  string
}

func (s *XLSXSource) Name() string { return "xlsx:" + s.Key }

func (s *XLSXSource) Read(ctx context.Context) (*Table, error) {
	rc, err := s.Files.Open(ctx, s.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc, excelize.Options{Password: s.Password})
	if err != nil {
		if errors.Is(err, excelize.ErrWorkbookPassword) {
			return nil, fmt.Errorf("xlsx文件%s密码错误: %w", s.Key, err)
		}
		return nil, fmt.Errorf("打开xlsx文件%s失败: %w", s.Key, err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, etlerr.NotFound("工作表", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("读取工作表%s失败: %w", sheet, err)
	}
	if len(rows) <= s.HeaderRow {
		return nil, fmt.Errorf("工作表%s没有表头（header_row=%d）", sheet, s.HeaderRow)
	}
	return NewTable(rows[s.HeaderRow], rows[s.HeaderRow+1:], s.HeaderRow+1), nil
}
