// Package catalog loads the service catalog injected into every prompt and
// builds it from the services spreadsheet.
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Load reads the markdown catalog. The text is returned verbatim.
func Load(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load service catalog: %w", err)
	}
	if strings.TrimSpace(string(b)) == "" {
		return "", fmt.Errorf("service catalog %s is empty", path)
	}
	return string(b), nil
}

// Service is one spreadsheet row.
type Service struct {
	Code        string
	Name        string
	Keywords    string
	Description string
	Examples    string
}

// Spreadsheet column positions (0-based).
const (
	colCode        = 0
	colName        = 1
	colKeywords    = 3
	colDescription = 4
	colExamples    = 5
)

// ReadServices reads rows from the first sheet of an xlsx file. headerRow is
// the 0-based index of the header row; data starts on the row after it.
func ReadServices(path string, headerRow int) ([]Service, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("spreadsheet %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if headerRow < 0 {
		headerRow = 0
	}

	var out []Service
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		out = append(out, Service{
			Code:        cell(row, colCode),
			Name:        cell(row, colName),
			Keywords:    cell(row, colKeywords),
			Description: cell(row, colDescription),
			Examples:    cell(row, colExamples),
		})
	}
	return out, nil
}

// WriteMarkdown writes one catalog section per service.
func WriteMarkdown(w io.Writer, services []Service) error {
	for _, s := range services {
		_, err := fmt.Fprintf(w,
			"# **Service page:** **code:** %s, **name:** %s\n## The service description:\n%s\n## Key words:\n %s\n## Examples of questions that can relate to this service:\n%s\n",
			s.Code, s.Name, s.Description, s.Keywords, s.Examples)
		if err != nil {
			return err
		}
	}
	return nil
}

// AppendMarkdown converts the spreadsheet and appends the sections to out,
// creating it if needed.
func AppendMarkdown(xlsxPath, out string, headerRow int) (int, error) {
	services, err := ReadServices(xlsxPath, headerRow)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	if err := WriteMarkdown(f, services); err != nil {
		f.Close()
		return 0, err
	}
	return len(services), f.Close()
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
