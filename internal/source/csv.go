package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CSVSource 读取分隔符文本，默认 ; 分隔，支持 ISO-8859-1 编码
type CSVSource struct {
	Files     FileOpener
	Key       string
	Delimiter string // 默认 ;
	Encoding  string // utf-8 / iso-8859-1 / windows-1252
	HeaderRow int
}

func (s *CSVSource) Name() string { return "csv:" + s.Key }

func (s *CSVSource) Read(ctx context.Context) (*Table, error) {
	rc, err := s.Files.Open(ctx, s.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := decodeReader(rc, s.Encoding)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(r)
	reader.Comma = ';'
	if s.Delimiter != "" {
		d, _ := utf8.DecodeRuneInString(s.Delimiter)
		reader.Comma = d
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析csv文件%s失败: %w", s.Key, err)
	}
	if len(records) <= s.HeaderRow {
		return nil, fmt.Errorf("csv文件%s没有表头（header_row=%d）", s.Key, s.HeaderRow)
	}
	return NewTable(records[s.HeaderRow], records[s.HeaderRow+1:], s.HeaderRow+1), nil
}

func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.ReplaceAll(encoding, "_", "-")) {
	case "", "utf-8", "utf8":
		return r, nil
	case "iso-8859-1", "latin1", "latin-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("不支持的文件编码: %s", encoding)
	}
}
