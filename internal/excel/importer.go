package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/reviewbot/internal/spaced_repetition"
	"github.com/example/reviewbot/pkg/models"
	"github.com/xuri/excelize/v2"
)

// Store receives the imported words
type Store interface {
	AddWord(ctx context.Context, word *models.Word) error
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	UserID            int64  // Owner of the imported words
	WordColumn        string // Column with the word
	TranslationColumn string // Column with the translation
	DifficultyColumn  string // Optional column with difficulty 1-5
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		WordColumn:        "A",
		TranslationColumn: "B",
		DifficultyColumn:  "C",
		SheetName:         "Sheet1",
		StartRow:          2, // By default, start from the second row (skip header)
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	Created        int
	Skipped        int
	Errors         []string
}

var errSectionRow = errors.New("section header")

// ImportWords imports words from an Excel or CSV file
func ImportWords(ctx context.Context, store Store, config ImportConfig, now time.Time) (*ImportResult, error) {
	if config.UserID == 0 {
		return nil, errors.New("user id is required")
	}

	// Check the file extension
	ext := strings.ToLower(filepath.Ext(config.FilePath))
	if ext == ".csv" {
		file, err := os.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()
		return ImportCSV(ctx, store, file, config, now)
	}

	return importFromExcel(ctx, store, config, now)
}

// importFromExcel imports words from an Excel file
func importFromExcel(ctx context.Context, store Store, config ImportConfig, now time.Time) (*ImportResult, error) {
	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for i, row := range rows {
		// Skip header rows
		if i < config.StartRow-1 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		processRow(ctx, store, row, config, result, i+1, now)
	}
	return result, nil
}

// ImportCSV imports words from CSV data in r
func ImportCSV(ctx context.Context, store Store, r io.Reader, config ImportConfig, now time.Time) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true

	result := &ImportResult{Errors: make([]string, 0)}
	rowNum := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("error reading CSV: %w", err)
		}

		rowNum++
		if rowNum < config.StartRow {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		processRow(ctx, store, row, config, result, rowNum, now)
	}
	return result, nil
}

func processRow(ctx context.Context, store Store, row []string, config ImportConfig, result *ImportResult, rowNum int, now time.Time) {
	word, err := parseRow(row, config, now)
	if errors.Is(err, errSectionRow) {
		return
	}
	result.TotalProcessed++
	if err != nil {
		result.Skipped++
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		return
	}
	if err := store.AddWord(ctx, &word); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Row %d: failed to create word: %v", rowNum, err))
		return
	}
	result.Created++
}

func parseRow(row []string, config ImportConfig, now time.Time) (models.Word, error) {
	text := cleanWord(cell(row, config.WordColumn))
	translation := cleanWord(cell(row, config.TranslationColumn))

	// Rows like "Движение,," only group the words below them
	if translation == "" && onlyFirstCell(row) {
		return models.Word{}, errSectionRow
	}
	if text == "" {
		return models.Word{}, errors.New("word cannot be empty")
	}
	if translation == "" {
		return models.Word{}, errors.New("translation cannot be empty")
	}

	w := models.NewWord(config.UserID, strings.ToLower(text), strings.ToLower(translation), now)
	if config.DifficultyColumn != "" {
		if raw := strings.TrimSpace(cell(row, config.DifficultyColumn)); raw != "" {
			level := parseIntOrDefault(raw, 1, 5, 3)
			w.BaseDifficulty = float64(level-1) / 4
			w.Difficulty = spaced_repetition.BlendDifficulty(w.BaseDifficulty, w.PersonalDifficulty)
		}
	}
	return w, nil
}

func onlyFirstCell(row []string) bool {
	for i := 1; i < len(row); i++ {
		if strings.TrimSpace(row[i]) != "" {
			return false
		}
	}
	return true
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

// cleanWord удаляет из слова дополнительную информацию в скобках
func cleanWord(word string) string {
	// "go (went, gone)" -> "go"
	if i := strings.Index(word, "("); i > 0 {
		word = word[:i]
	}
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(word), "\""))
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(column)
	index := 0
	for i := 0; i < len(column); i++ {
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

// Helper function to parse integer within a range
func parseIntInRange(s string, min, max int) (int, error) {
	var val int
	if _, err := fmt.Sscanf(s, "%d", &val); err != nil {
		return min, err
	}
	if val < min {
		return min, nil
	}
	if val > max {
		return max, nil
	}
	return val, nil
}

// Helper function to parse integer with default value
func parseIntOrDefault(s string, min, max, defaultVal int) int {
	if val, err := parseIntInRange(s, min, max); err == nil {
		return val
	}
	return defaultVal
}
