package rankingservice

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	rankingdomain "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/domain"
	playerdb "github.com/Black-And-White-Club/taco-rank/app/modules/ranking/infrastructure/repositories"
	"github.com/xuri/excelize/v2"
)

// ExportSheet is the sheet name written by WritePlayersXLSX.
const ExportSheet = "Leaderboard"

var exportHeader = []any{"rank_index", "user_id", "user_name", "player_rating", "icon_id", "extra_col", "rankText"}

// WritePlayersXLSX renders ranked rows as a single-sheet workbook.
func WritePlayersXLSX(rows []playerdb.RankedPlayer) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := writeRow(f, 1, exportHeader); err != nil {
		return nil, err
	}
	for i, r := range rows {
		// user_id is written as text; general format shows long ids in E-notation
		row := []any{r.RankIndex, strconv.FormatInt(r.UserID, 10), r.UserName, r.PlayerRating, r.IconID, r.ExtraCol, rankingdomain.ComputeTier(r.ExtraCol)}
		if err := writeRow(f, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(ExportSheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

// ParsePlayersXLSX reads player updates from the first sheet of a workbook.
// The first row is a header naming the columns; user_id, user_name and
// extra_col are required, player_rating and icon_id are optional. Blank rows
// are skipped. Any other column (such as rank_index) is ignored, so an
// exported workbook can be imported back.
func ParsePlayersXLSX(r io.Reader) ([]PlayerUpdate, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, validationErr("workbook", "has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, validationErr("workbook", fmt.Sprintf("sheet %q is empty", sheets[0]))
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"user_id", "user_name", "extra_col"} {
		if _, ok := cols[required]; !ok {
			return nil, validationErr("header", "missing column "+required)
		}
	}

	updates := make([]PlayerUpdate, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if isBlank(row) {
			continue
		}

		userID, err := parseCell(rowNum, "user_id", cell("user_id"), true)
		if err != nil {
			return nil, err
		}
		extra, err := parseCell(rowNum, "extra_col", cell("extra_col"), true)
		if err != nil {
			return nil, err
		}
		rating, err := parseCell(rowNum, "player_rating", cell("player_rating"), false)
		if err != nil {
			return nil, err
		}
		icon, err := parseCell(rowNum, "icon_id", cell("icon_id"), false)
		if err != nil {
			return nil, err
		}
		updates = append(updates, PlayerUpdate{
			UserID:       userID,
			UserName:     cell("user_name"),
			PlayerRating: int(rating),
			IconID:       int(icon),
			ExtraCol:     extra,
		})
	}
	return updates, nil
}

func parseCell(rowNum int, column, value string, required bool) (int64, error) {
	if value == "" {
		if required {
			return 0, validationErr(fmt.Sprintf("row %d %s", rowNum, column), "is required")
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
	if err != nil {
		return 0, validationErr(fmt.Sprintf("row %d %s", rowNum, column), fmt.Sprintf("%q is not an integer", value))
	}
	return n, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
