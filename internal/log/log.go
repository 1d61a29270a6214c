// Package log provides the small logging seam every other package in
// chatnode logs through, instead of calling the standard log package (or
// fmt) directly. Swapping SetLogger is enough to route node output to a
// structured logger in a deployment that wants one.
package log

import (
	"log"
	"os"
)

// Logger is the minimal surface chatnode needs from a logging backend.
type Logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
}

var current Logger = stdLogger{l: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)}

// SetLogger overrides the package-level logger.
func SetLogger(l Logger) {
	if l != nil {
		current = l
	}
}

// Print logs a line built by fmt.Sprint-style concatenation.
func Print(v ...interface{}) { current.Print(v...) }

// Printf logs a formatted line.
func Printf(format string, v ...interface{}) { current.Printf(format, v...) }

// Fatal logs and then terminates the process.
func Fatal(v ...interface{}) { current.Fatal(v...) }

// Fatalf logs a formatted line and then terminates the process.
func Fatalf(format string, v ...interface{}) { current.Fatalf(format, v...) }

type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Print(v ...interface{})                 { s.l.Println(v...) }
func (s stdLogger) Printf(format string, v ...interface{}) { s.l.Printf(format, v...) }
func (s stdLogger) Fatal(v ...interface{})                 { s.l.Fatalln(v...) }
func (s stdLogger) Fatalf(format string, v ...interface{}) { s.l.Fatalf(format, v...) }
