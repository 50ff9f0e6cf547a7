package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/shaiso/procflow/internal/domain"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // данные
	errW     io.Writer // сообщения
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(jsonMode bool, w, errW io.Writer) *Output {
	return &Output{jsonMode: jsonMode, w: w, errW: errW}
}

// JSONMode сообщает, включён ли JSON вывод.
func (o *Output) JSONMode() bool { return o.jsonMode }

// Print выводит таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) error {
	if o.jsonMode {
		return o.JSON(jsonData)
	}
	return o.Table(headers, rows)
}

// Table выводит строки через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	return tw.Flush()
}

// JSON выводит v с отступами.
func (o *Output) JSON(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success пишет зелёное сообщение в поток сообщений.
func (o *Output) Success(format string, args ...any) {
	color.New(color.FgGreen).Fprintf(o.errW, format+"\n", args...)
}

// Warn пишет жёлтое сообщение.
func (o *Output) Warn(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(o.errW, format+"\n", args...)
}

// Error пишет красное сообщение.
func (o *Output) Error(format string, args ...any) {
	color.New(color.FgRed).Fprintf(o.errW, "Error: "+format+"\n", args...)
}

// Status пишет строку статуса execution с цветом по статусу.
func (o *Output) Status(exec *domain.Execution) {
	c := color.New(statusColor(exec.Status), color.Bold)
	c.Fprintf(o.errW, "Execution %s: %s", exec.ID, exec.Status)

	if d := exec.Duration(); d > 0 {
		fmt.Fprintf(o.errW, " (%s)", d.Round(time.Millisecond))
	}
	fmt.Fprintln(o.errW)

	if exec.ErrorMessage != "" {
		color.New(color.FgRed).Fprintf(o.errW, "  %s\n", exec.ErrorMessage)
	}
}

func statusColor(status domain.ExecutionStatus) color.Attribute {
	switch status {
	case domain.ExecutionStatusSuccess:
		return color.FgGreen
	case domain.ExecutionStatusFailed:
		return color.FgRed
	case domain.ExecutionStatusRunning:
		return color.FgCyan
	default:
		return color.FgYellow
	}
}

// Logs выводит журнал execution таблицей.
func (o *Output) Logs(logs []domain.ExecutionLog) error {
	headers := []string{"TIME", "LEVEL", "NODE", "MESSAGE"}
	rows := make([][]string, len(logs))
	for i, l := range logs {
		rows[i] = []string{l.Timestamp.Format("15:04:05.000"), string(l.Level), l.NodeID, l.Message}
	}
	return o.Table(headers, rows)
}
