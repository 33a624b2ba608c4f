package logger

import (
	"log"
	"sync"

	"github.com/fatih/color"
)

// Level represents the severity level of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	NoticeLevel
	WarnLevel
	ErrorLevel
)

// Chain identifies a supported chain for log prefixing.
type Chain int

const (
	None Chain = iota
	Eth
	Opt
	Bsc
	Pol
	Arb
	Ava
	Base
	Linea
)

var chainIDMap = map[int64]Chain{
	1:     Eth,
	10:    Opt,
	56:    Bsc,
	137:   Pol,
	42161: Arb,
	43114: Ava,
	8453:  Base,
	59144: Linea,
}

var chainPrefixes = map[Chain]string{
	None:  "",
	Eth:   "[ETH]   ",
	Opt:   "[OP]    ",
	Bsc:   "[BSC]   ",
	Pol:   "[POL]   ",
	Arb:   "[ARB]   ",
	Ava:   "[AVA]   ",
	Base:  "[BASE]  ",
	Linea: "[LINEA] ",
}

var colors = map[Chain]color.Attribute{
	None:  color.FgWhite,
	Eth:   color.FgHiGreen,
	Opt:   color.FgHiRed,
	Bsc:   color.FgYellow,
	Pol:   color.FgMagenta,
	Arb:   color.FgHiBlue,
	Ava:   color.FgRed,
	Base:  color.FgBlue,
	Linea: color.FgCyan,
}

// Logger is a simple interface for logging messages.
type Logger interface {
	// Debug logs a debug message.
	Debug(format string, args ...interface{})
	DebugWithChain(chainID int64, format string, args ...interface{})

	// Info logs an informational message.
	Info(format string, args ...interface{})
	InfoWithChain(chainID int64, format string, args ...interface{})

	// Notice logs a notice message.
	Notice(format string, args ...interface{})
	NoticeWithChain(chainID int64, format string, args ...interface{})

	// Warn logs a warning message.
	Warn(format string, args ...interface{})
	WarnWithChain(chainID int64, format string, args ...interface{})

	// Error logs an error message.
	Error(format string, args ...interface{})
	ErrorWithChain(chainID int64, format string, args ...interface{})
}

// EmptyLogger is an implementation of the Logger interface that does nothing.
type EmptyLogger struct{}

var _ Logger = (*EmptyLogger)(nil)

func (l *EmptyLogger) Debug(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) DebugWithChain(_ int64, _ string, _ ...interface{})  {}
func (l *EmptyLogger) Info(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) InfoWithChain(_ int64, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Notice(_ string, _ ...interface{})                   {}
func (l *EmptyLogger) NoticeWithChain(_ int64, _ string, _ ...interface{}) {}
func (l *EmptyLogger) Warn(_ string, _ ...interface{})                     {}
func (l *EmptyLogger) WarnWithChain(_ int64, _ string, _ ...interface{})   {}
func (l *EmptyLogger) Error(_ string, _ ...interface{})                    {}
func (l *EmptyLogger) ErrorWithChain(_ int64, _ string, _ ...interface{})  {}

// StdLogger is a standard implementation of the Logger interface that logs messages to the console.
type StdLogger struct {
	enableColoring bool
	level          Level
	mu             sync.Mutex
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(enableColoring bool, level Level) *StdLogger {
	return &StdLogger{
		enableColoring: enableColoring,
		level:          level,
	}
}

// formatMessage formats the log message with the appropriate log level, chain prefix, and coloring if enabled.
func (l *StdLogger) formatMessage(level Level, chain Chain, format string) string {
	chainPrefix := chainPrefixes[chain]
	if l.enableColoring {
		chainPrefix = color.New(colors[chain]).Sprint(chainPrefix)
	}

	var levelStr string
	switch level {
	case DebugLevel:
		levelStr = "[DEBUG]  "
	case InfoLevel:
		levelStr = "[INFO]   "
	case NoticeLevel:
		levelStr = "[NOTICE] "
	case WarnLevel:
		levelStr = "[WARN]   "
	case ErrorLevel:
		levelStr = "[ERROR]  "
	}

	return levelStr + chainPrefix + format
}

func (l *StdLogger) logf(level Level, chainID int64, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.level > level {
		return
	}

	chain := chainIDMap[chainID]
	log.Printf(l.formatMessage(level, chain, format), args...)
}

func (l *StdLogger) Debug(format string, args ...interface{}) {
	l.logf(DebugLevel, 0, format, args...)
}

func (l *StdLogger) DebugWithChain(chainID int64, format string, args ...interface{}) {
	l.logf(DebugLevel, chainID, format, args...)
}

func (l *StdLogger) Info(format string, args ...interface{}) {
	l.logf(InfoLevel, 0, format, args...)
}

func (l *StdLogger) InfoWithChain(chainID int64, format string, args ...interface{}) {
	l.logf(InfoLevel, chainID, format, args...)
}

func (l *StdLogger) Notice(format string, args ...interface{}) {
	l.logf(NoticeLevel, 0, format, args...)
}

func (l *StdLogger) NoticeWithChain(chainID int64, format string, args ...interface{}) {
	l.logf(NoticeLevel, chainID, format, args...)
}

func (l *StdLogger) Warn(format string, args ...interface{}) {
	l.logf(WarnLevel, 0, format, args...)
}

func (l *StdLogger) WarnWithChain(chainID int64, format string, args ...interface{}) {
	l.logf(WarnLevel, chainID, format, args...)
}

func (l *StdLogger) Error(format string, args ...interface{}) {
	l.logf(ErrorLevel, 0, format, args...)
}

func (l *StdLogger) ErrorWithChain(chainID int64, format string, args ...interface{}) {
	l.logf(ErrorLevel, chainID, format, args...)
}
