package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/mattn/go-isatty"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/EgorLis/encoderpc/internal/middleware"
)

// progressRenderer показывает обновления одного задания. update вызывается
// из горутины чтения канала.
type progressRenderer interface {
	update(middleware.Update)
	finish(err error)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func newProgressRenderer(out io.Writer, file string) progressRenderer {
	if isTerminal(out) {
		return newTrackerRenderer(out, file)
	}
	return &lineRenderer{out: out}
}

// lineRenderer — по строке на обновление, для логов и пайпов.
type lineRenderer struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *lineRenderer) update(u middleware.Update) {
	line := formatFields(u)
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "[%s] %s\n", u.ID(), line)
}

func (r *lineRenderer) finish(error) {}

// formatFields — все поля params, кроме id, как key=value по алфавиту.
func formatFields(u middleware.Update) string {
	s, err := u.Struct()
	if err != nil {
		return string(u.Raw())
	}
	fields := s.GetFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+formatValue(fields[k]))
	}
	return strings.Join(parts, " ")
}

func formatValue(v *structpb.Value) string {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue)
	case *structpb.Value_NullValue:
		return "null"
	}
	raw, err := json.Marshal(v.AsInterface())
	if err != nil {
		return "?"
	}
	return string(raw)
}

// trackerRenderer — полоса go-pretty для терминала.
type trackerRenderer struct {
	pw      progress.Writer
	tracker *progress.Tracker
	file    string
}

func newTrackerRenderer(out io.Writer, file string) *trackerRenderer {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)

	tracker := &progress.Tracker{Message: file, Total: 100, Units: progress.UnitsDefault}
	pw.AppendTracker(tracker)
	go pw.Render()

	return &trackerRenderer{pw: pw, tracker: tracker, file: file}
}

func (r *trackerRenderer) update(u middleware.Update) {
	p, err := u.FFmpegProgress()
	if err == nil && p.Progress > 0 {
		r.tracker.SetValue(int64(p.Progress))
	}

	msg := r.file
	if status := u.Status(); status != "" {
		msg += " " + status
	}
	if err == nil && p.Speed != "" {
		msg += " " + p.Speed
	}
	r.tracker.UpdateMessage(msg)
}

func (r *trackerRenderer) finish(err error) {
	if err != nil {
		r.tracker.MarkAsErrored()
	} else {
		r.tracker.SetValue(r.tracker.Total)
		r.tracker.MarkAsDone()
	}
	r.pw.Stop()
	for deadline := time.Now().Add(time.Second); r.pw.IsRenderInProgress() && time.Now().Before(deadline); {
		time.Sleep(10 * time.Millisecond)
	}
}
