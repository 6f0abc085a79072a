package main

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// jobSummary — итог задания после ожидания.
type jobSummary struct {
	ID      string
	File    string
	Updates int64
	Elapsed time.Duration
	Err     error
}

// renderSummary — вертикальная таблица поле/значение. При colorize строка
// результата зелёная при успехе и красная при ошибке.
func renderSummary(s jobSummary, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("job " + s.ID)

	result := "ok"
	colors := text.Colors{text.FgGreen}
	if s.Err != nil {
		result = "error: " + s.Err.Error()
		colors = text.Colors{text.FgRed, text.Bold}
	}
	if colorize {
		result = colors.Sprint(result)
	}

	tw.AppendRows([]table.Row{
		{"File", s.File},
		{"Updates", s.Updates},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
		{"Result", result},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignLeft},
	})
	return tw.Render()
}
