// Package logger is the colored, leveled console logger used across the service.
// Package-level functions log without a component; Named returns a scoped logger
// whose lines carry a "[component]" tag so queue, storage and hub output can be told apart.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	cInf  = color.New(color.FgCyan, color.Bold).SprintFunc()
	cWarn = color.New(color.FgYellow, color.Bold).SprintFunc()
	cErr  = color.New(color.FgRed, color.Bold).SprintFunc()
	cSucc = color.New(color.FgGreen, color.Bold).SprintFunc()
	cFatl = color.New(color.BgRed, color.FgWhite, color.Bold).SprintFunc()
	cTime = color.New(color.FgHiBlack).SprintFunc()
	cComp = color.New(color.FgMagenta).SprintFunc()
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	quiet  bool
)

func init() {
	log.SetFlags(0)
}

// SetOutput redirects both streams. Passing nil restores the process defaults.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	stdout, stderr = out, errOut
}

// SetQuiet drops info and success lines; warnings and errors still print.
func SetQuiet(q bool) {
	mu.Lock()
	quiet = q
	mu.Unlock()
}

func timeStamp() string {
	return cTime(time.Now().Format("2006-01-02 15:04:05"))
}

type level int

const (
	levelInfo level = iota
	levelWarn
	levelError
)

// emit writes errors to stderr and everything else to stdout. Quiet mode
// filters by level, not by stream.
func emit(lvl level, tag, component, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if component != "" {
		msg = cComp("["+component+"]") + " " + msg
	}

	mu.Lock()
	defer mu.Unlock()
	if quiet && lvl < levelWarn {
		return
	}
	w := stdout
	if lvl >= levelError {
		w = stderr
	}
	fmt.Fprintf(w, "%s %s %s\n", timeStamp(), tag, msg)
}

func LogInfo(format string, v ...interface{}) {
	emit(levelInfo, cInf("[INFO]"), "", format, v...)
}

func LogSuccess(format string, v ...interface{}) {
	emit(levelInfo, cSucc("[OK]"), "", format, v...)
}

func LogWarn(format string, v ...interface{}) {
	emit(levelWarn, cWarn("[WARN]"), "", format, v...)
}

func LogError(format string, v ...interface{}) {
	emit(levelError, cErr("[ERR]"), "", format, v...)
}

func LogFatal(format string, v ...interface{}) {
	emit(levelError, cFatl("[FATAL]"), "", format, v...)
	os.Exit(1)
}

// LogAccess writes a preformatted access log line to the standard stream.
func LogAccess(line string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet {
		return
	}
	fmt.Fprintln(stdout, line)
}

// Logger tags every line with a component name.
type Logger struct {
	component string
}

func Named(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Info(format string, v ...interface{}) {
	emit(levelInfo, cInf("[INFO]"), l.component, format, v...)
}

func (l *Logger) Success(format string, v ...interface{}) {
	emit(levelInfo, cSucc("[OK]"), l.component, format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	emit(levelWarn, cWarn("[WARN]"), l.component, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	emit(levelError, cErr("[ERR]"), l.component, format, v...)
}

// LogServerStart prints the listening banner.
func LogServerStart(port int, baseURL string) {
	fmt.Println()
	fmt.Printf("   %s  %s\n", cSucc("⚡ Server is Active"), cTime("waiting for uploads..."))
	fmt.Printf("   %s  %s\n", cInf("➜ Local:"), fmt.Sprintf("http://localhost:%d", port))
	fmt.Printf("   %s  %s\n", cInf("➜ Public:"), color.New(color.FgHiBlue, color.Underline).Sprint(baseURL))
	fmt.Printf("   %s  %s\n", cInf("➜ Realtime:"), fmt.Sprintf("ws://localhost:%d/ws", port))
	fmt.Println()
}
