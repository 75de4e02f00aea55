// Package brformat 处理合作方文件中的巴西本地化格式：
// 分组代码定宽、"1.234,56" 形式的数值、多格式日期与列名规范化。
package brformat

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"ConsorcioSync/internal/etlerr"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// GroupCodeWidth grupo代码固定宽度
const GroupCodeWidth = 5

// CanonicalGroupCode 规范化grupo代码：长于5位取后5位，短于5位左侧补0
func CanonicalGroupCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	// 部分表格把整数列读成 "164.0"
	if i := strings.Index(code, "."); i > 0 && strings.Trim(code[i+1:], "0") == "" {
		code = code[:i]
	}
	if code == "" {
		return "", fmt.Errorf("grupo代码为空")
	}
	if len(code) > GroupCodeWidth {
		return code[len(code)-GroupCodeWidth:], nil
	}
	return strings.Repeat("0", GroupCodeWidth-len(code)) + code, nil
}

// ParseBRDecimal 解析巴西格式数值："1.234,56" -> 1234.56，"50.000" -> 50000，"1.234.567" -> 1234567；
// 点号只在构成千分位分组时被去掉，其余按机器格式解析（"1234.56"、"0.358"）。空字符串返回零值与false。
func ParseBRDecimal(raw string) (decimal.Decimal, bool, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if s == "" || s == "-" {
		return decimal.Zero, false, nil
	}
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case isThousandsGrouped(s):
		s = strings.ReplaceAll(s, ".", "")
	case strings.Count(s, ".") > 1:
		return decimal.Zero, false, &etlerr.NumberFormatError{Value: raw}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, &etlerr.NumberFormatError{Value: raw}
	}
	return d, true, nil
}

// isThousandsGrouped 不含逗号的数值是否为千分位写法：首组1-3位且不以0开头，其后每组恰好3位
func isThousandsGrouped(s string) bool {
	groups := strings.Split(strings.TrimPrefix(s, "-"), ".")
	if len(groups) < 2 {
		return false
	}
	first := groups[0]
	if len(first) == 0 || len(first) > 3 || first[0] == '0' || !allDigits(first) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseBRFloat ParseBRDecimal 的 float64 版本，百分比字段使用（"51,76" -> 51.76）
func ParseBRFloat(raw string) (float64, bool, error) {
	d, ok, err := ParseBRDecimal(raw)
	if err != nil || !ok {
		return 0, ok, err
	}
	return d.InexactFloat64(), true, nil
}

// DefaultDateFormats 默认可接受的日期格式，按顺序尝试，首个匹配生效
var DefaultDateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"2006/01/02",
	"20060102",
}

// ParseDate 按给定格式列表依次解析日期，全部失败时返回 DateFormatError
func ParseDate(raw string, formats []string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	for _, f := range formats {
		if t, err := time.ParseInLocation(f, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &etlerr.DateFormatError{Value: raw}
}

// StagingDateLayout staging表中日期文本的统一格式
const StagingDateLayout = "2006-01-02"

// FormatDate 统一写入staging的日期文本格式
func FormatDate(t time.Time) string {
	return t.Format(StagingDateLayout)
}

// ParseStagingDate 解析staging中的日期文本
func ParseStagingDate(raw string) (time.Time, error) {
	return ParseDate(raw, []string{StagingDateLayout})
}

// OnlyDigits 去掉所有非数字字符（"GR-0164/3" -> "01643"）
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var nonWord = regexp.MustCompile(`[^a-z0-9]+`)

// StripAccents 去除重音符号（"Descrição" -> "Descricao"）
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeColumn 列名规范化：小写、去重音、空格与标点替换为下划线
func NormalizeColumn(name string) string {
	s := strings.ToLower(StripAccents(strings.TrimSpace(name)))
	s = nonWord.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// MonthsBetween from 到 to 之间的整月差（只看年月）
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}
