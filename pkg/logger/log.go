package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

type LogStatus int

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	NEW
	REMOVE
	STOP
	WARNING
	ERROR
	FATAL
)

var statusNames = []string{"verbose", "debug", "info", "success", "new", "remove", "stop", "warning", "error", "fatal"}

func (e LogStatus) String() string {
	return []string{
		"V",
		"D",
		"I",
		"✓",
		"+",
		"-",
		"X",
		"!",
		"!!",
		"PANIC",
	}[e]
}

func (e LogStatus) Color() *color.Color {
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),                //Verbose
		color.New(color.FgWhite, color.Italic),                //Debug
		color.New(color.FgWhite),                              //Info
		color.New(color.FgHiGreen),                            //Success
		color.New(color.FgGreen, color.Italic),                //New
		color.New(color.FgYellow, color.Italic),               //Remove
		color.New(color.FgHiYellow),                           //Stop
		color.New(color.FgYellow, color.Underline),            //Warning
		color.New(color.FgHiRed, color.Bold),                  //Error
		color.New(color.FgHiRed, color.Bold, color.Underline), //PANIC
	}[e]
}

func (e LogStatus) Level() int { return int(e) }

// Name returns the lower-case name of the status, as accepted by ParseLevel.
func (e LogStatus) Name() string { return statusNames[e] }

// ParseLevel accepts the name of a log status (e.g. "warning") and
// returns the matching status. Unknown names return INFO and false.
func ParseLevel(name string) (LogStatus, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == name {
			return LogStatus(i), true
		}
	}

	return INFO, false
}

type Logger interface {
	Emit(LogStatus, string, ...interface{})
}

type loggerImpl struct {
	name string
}

func (l *loggerImpl) Emit(status LogStatus, message string, interpolations ...interface{}) {
	Log.Emit(status, l.name, message, interpolations...)
}

type LoggerManager interface {
	GetLogger(string) Logger
	Emit(LogStatus, string, string, ...interface{})
}

var Log = &loggerMgr{
	offset:   0,
	minLevel: INFO.Level(),
	out:      os.Stderr,
}

type loggerMgr struct {
	sync.Mutex
	offset   int
	minLevel int
	out      io.Writer
}

func (l *loggerMgr) GetLogger(name string) Logger {
	return &loggerImpl{name: name}
}

func (l *loggerMgr) Emit(status LogStatus, name string, message string, interpolations ...interface{}) {
	l.Lock()
	defer l.Unlock()

	if status.Level() < l.minLevel {
		return
	}

	l.setNameOffset(len(name))
	padding := strings.Repeat(" ", l.offset-len(name))
	msg := fmt.Sprintf("[%s] %s(%s) %s", name, padding, status, fmt.Sprintf(message, interpolations...))

	status.Color().Fprint(l.out, msg)
}

func (l *loggerMgr) setNameOffset(offset int) {
	if offset > l.offset {
		l.offset = offset
	}
}

// SetMinLoggingLevel suppresses all messages whose status level
// is below the level provided.
func SetMinLoggingLevel(level int) {
	Log.Lock()
	defer Log.Unlock()
	Log.minLevel = level
}

// SetOutput redirects all log output to the writer provided. Logs
// go to stderr by default so they never interleave with the table
// printed on stdout.
func SetOutput(w io.Writer) {
	Log.Lock()
	defer Log.Unlock()
	Log.out = w
}

func Get(name string) Logger {
	return Log.GetLogger(name)
}
