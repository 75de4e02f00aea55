package source

import (
	"context"

	"ConsorcioSync/internal/model"
)

// apiColumns 合作方API字段的固定列顺序
var apiColumns = []string{
	"grupo", "prazo", "data_inicio", "data_encerramento",
	"bem", "codigo_bem", "valor_bem", "tipo_bem", "vagas",
	"data_assembleia", "tipo_lance", "lance_minimo", "lance_medio", "lance_maximo",
}

// PageFetcher 合作方API分页拉取
type PageFetcher interface {
	FetchAll(ctx context.Context, path string) ([]model.PartnerGroupItem, error)
}

// APISource 从合作方REST API读取grupo数据
type APISource struct {
	Client PageFetcher
	Path   string
}

func (s *APISource) Name() string { return "api:" + s.Path }

func (s *APISource) Read(ctx context.Context) (*Table, error) {
	items, err := s.Client.FetchAll(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		fields := it.Fields()
		row := make([]string, len(apiColumns))
		for i, c := range apiColumns {
			row[i] = fields[c]
		}
		rows = append(rows, row)
	}
	return NewTable(apiColumns, rows, 0), nil
}
