package interfaces

import (
	"context"
	"io"

	"ConsorcioSync/internal/source"
)

// TableSource 合作方表格数据源（xlsx/csv/API）
type TableSource interface {
	Name() string
	Read(ctx context.Context) (*source.Table, error)
}

// FileStore 源文件存储：received 目录读取，成功入库后移动到 processed
type FileStore interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	MarkProcessed(ctx context.Context, key string) error
}
