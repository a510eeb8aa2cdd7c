package stats

import (
	"bytes"
	"fmt"

	"github.com/GG-Yelin/factory-monitor-screen/internal/models"

	"github.com/xuri/excelize/v2"
)

// DailyReportHeader 每日统计导出表头
var DailyReportHeader = []string{
	"日期",
	"产量",
	"计划",
	"完成率(%)",
	"合格数",
	"合格率(%)",
	"设备总数",
	"在线设备",
	"报警次数",
	"OEE(%)",
}

// MonthlyReportHeader 月度统计导出表头
var MonthlyReportHeader = []string{
	"年月",
	"总产量",
	"总计划",
	"完成率(%)",
	"合格数",
	"合格率(%)",
	"日均产量",
	"最高日产量",
	"最低日产量",
	"报警次数",
	"平均OEE(%)",
	"生产天数",
}

// GenerateDailyReport 生成每日统计 Excel
func GenerateDailyReport(daily []models.DailyStatistics) ([]byte, error) {
	rows := make([][]interface{}, 0, len(daily))
	for _, d := range daily {
		rows = append(rows, []interface{}{
			d.StatisticsDate.Format("2006-01-02"),
			d.TotalProduction,
			d.TotalPlan,
			d.CompletionRate,
			d.QualifiedQuantity,
			d.QualityRate,
			d.TotalDevices,
			d.OnlineDevices,
			d.AlarmCount,
			d.AvgOEE,
		})
	}
	return generateReport("每日统计", DailyReportHeader, rows)
}

// GenerateMonthlyReport 生成月度统计 Excel
func GenerateMonthlyReport(monthly []models.MonthlyStatistics) ([]byte, error) {
	rows := make([][]interface{}, 0, len(monthly))
	for _, m := range monthly {
		rows = append(rows, []interface{}{
			fmt.Sprintf("%d-%02d", m.Year, m.Month),
			m.TotalProduction,
			m.TotalPlan,
			m.CompletionRate,
			m.QualifiedQuantity,
			m.QualityRate,
			m.AvgDailyProduction,
			m.MaxDailyProduction,
			m.MinDailyProduction,
			m.TotalAlarmCount,
			m.AvgOEE,
			m.WorkDays,
		})
	}
	return generateReport("月度统计", MonthlyReportHeader, rows)
}

// generateReport 写入单个工作表：加粗表头、冻结首行
func generateReport(sheetName string, headers []string, rows [][]interface{}) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to convert column number: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", lastCol, 14); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}
