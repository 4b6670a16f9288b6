package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/R167/ipwatch/common"
)

// Output is the sink for user-visible progress of a run. Diagnostics that are
// only interesting to an operator go to zerolog instead.
type Output interface {
	Header(title string)
	Info(format string, args ...interface{})
	Success(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Detail(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Println(s string)
}

type Level string

const (
	LevelHeader  Level = "header"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelDetail  Level = "detail"
	LevelDebug   Level = "debug"
)

var levelColors = map[Level]*color.Color{
	LevelHeader:  color.New(color.Bold),
	LevelSuccess: color.New(color.FgGreen),
	LevelWarning: color.New(color.FgYellow),
	LevelError:   color.New(color.FgRed),
	LevelDebug:   color.New(color.Faint),
}

// render formats one line without the trailing newline. Colour is applied to
// the message only so prefixes stay greppable.
func render(level Level, colored bool, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	if c, ok := levelColors[level]; ok && colored {
		msg = c.Sprint(msg)
	}
	switch level {
	case LevelHeader:
		return fmt.Sprintf("\n%s\n%s", msg, strings.Repeat("=", len(fmt.Sprintf(format, args...))))
	case LevelSuccess:
		return "  ✅ " + msg
	case LevelWarning:
		return "  ⚠️  " + msg
	case LevelError:
		return "  ❌ " + msg
	case LevelDetail:
		return "   " + msg
	case LevelDebug:
		return "  🔍 [DEBUG] " + msg
	default:
		return "  " + msg
	}
}

type StreamingOutput struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewStreamingOutput(writer io.Writer) *StreamingOutput {
	if writer == nil {
		writer = os.Stdout
	}
	return &StreamingOutput{writer: writer}
}

func (o *StreamingOutput) emit(level Level, format string, args ...interface{}) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.writer, render(level, true, format, args...))
}

func (o *StreamingOutput) Header(title string) {
	o.emit(LevelHeader, "%s", title)
}

func (o *StreamingOutput) Info(format string, args ...interface{}) {
	o.emit(LevelInfo, format, args...)
}

func (o *StreamingOutput) Success(format string, args ...interface{}) {
	o.emit(LevelSuccess, format, args...)
}

func (o *StreamingOutput) Warning(format string, args ...interface{}) {
	o.emit(LevelWarning, format, args...)
}

func (o *StreamingOutput) Error(format string, args ...interface{}) {
	o.emit(LevelError, format, args...)
}

func (o *StreamingOutput) Detail(format string, args ...interface{}) {
	o.emit(LevelDetail, format, args...)
}

func (o *StreamingOutput) Debug(format string, args ...interface{}) {
	if !common.IsDebugMode() {
		return
	}
	o.emit(LevelDebug, format, args...)
}

func (o *StreamingOutput) Println(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.writer, s)
}

type OutputLine struct {
	Level   Level
	Message string
}

// BufferedOutput collects lines in memory. The MCP server uses it to turn a
// run's progress into a tool report.
type BufferedOutput struct {
	lines []OutputLine
	mu    sync.Mutex
}

func NewBufferedOutput() *BufferedOutput {
	return &BufferedOutput{lines: make([]OutputLine, 0)}
}

func (o *BufferedOutput) add(level Level, msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, OutputLine{Level: level, Message: msg})
}

func (o *BufferedOutput) Header(title string) {
	o.add(LevelHeader, render(LevelHeader, false, "%s", title))
}

func (o *BufferedOutput) Info(format string, args ...interface{}) {
	o.add(LevelInfo, render(LevelInfo, false, format, args...))
}

func (o *BufferedOutput) Success(format string, args ...interface{}) {
	o.add(LevelSuccess, render(LevelSuccess, false, format, args...))
}

func (o *BufferedOutput) Warning(format string, args ...interface{}) {
	o.add(LevelWarning, render(LevelWarning, false, format, args...))
}

func (o *BufferedOutput) Error(format string, args ...interface{}) {
	o.add(LevelError, render(LevelError, false, format, args...))
}

func (o *BufferedOutput) Detail(format string, args ...interface{}) {
	o.add(LevelDetail, render(LevelDetail, false, format, args...))
}

func (o *BufferedOutput) Debug(format string, args ...interface{}) {
	if !common.IsDebugMode() {
		return
	}
	o.add(LevelDebug, render(LevelDebug, false, format, args...))
}

func (o *BufferedOutput) Println(s string) {
	o.add(LevelInfo, s)
}

// String renders the buffered lines as a single report.
func (o *BufferedOutput) String() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	var b strings.Builder
	for _, line := range o.lines {
		b.WriteString(line.Message)
		b.WriteByte('\n')
	}
	return b.String()
}

func (o *BufferedOutput) Lines() []OutputLine {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]OutputLine{}, o.lines...)
}

// NoOpOutput is a no-op implementation for tests
type NoOpOutput struct{}

func NewNoOpOutput() *NoOpOutput {
	return &NoOpOutput{}
}

func (o *NoOpOutput) Header(title string)                        {}
func (o *NoOpOutput) Info(format string, args ...interface{})    {}
func (o *NoOpOutput) Success(format string, args ...interface{}) {}
func (o *NoOpOutput) Warning(format string, args ...interface{}) {}
func (o *NoOpOutput) Error(format string, args ...interface{})   {}
func (o *NoOpOutput) Detail(format string, args ...interface{})  {}
func (o *NoOpOutput) Debug(format string, args ...interface{})   {}
func (o *NoOpOutput) Println(s string)                           {}
