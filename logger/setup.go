package logger

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// baseLogName is the rotated log file's stem, independent of the binary
// name so renaming the built binary doesn't orphan old rotated files.
const baseLogName = "mcp-runtime"

// CleanupOldLogs removes rotated log files left behind by a previous
// version's settings. lumberjack's MaxBackups only prevents new backups
// from accumulating past the limit going forward; it doesn't retroactively
// clean up files written under a looser setting before this process
// started, so the caller sweeps them once at startup.
func CleanupOldLogs(logsDir string) {
	pattern := filepath.Join(logsDir, baseLogName+"-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, f := range files {
		_ = os.Remove(f)
	}
}

// Setup wires log.Default()'s output per the runtime's mode. When stdio is
// true, os.Stdout is reserved for MCP JSON-RPC traffic carried over
// stdin/stdout, so log output is routed to the rotating file plus stderr
// only — writing a log line to stdout in that mode would corrupt the
// protocol stream a client is parsing. In HTTP-serve mode, stdout carries
// nothing but logs, so it's included in the multi-writer same as the
// non-debug path.
func Setup(logsDir string, stdio, debug bool) {
	if debug && !stdio {
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		SetLevel(LevelDebug)
		log.Println("Debug mode enabled - logging to stdout")
		return
	}

	CleanupOldLogs(logsDir)
	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logsDir, baseLogName+".log"),
		MaxSize:    5,
		MaxBackups: 1,
		MaxAge:     1,
		Compress:   false,
	}

	var w io.Writer
	if stdio {
		w = io.MultiWriter(fileLogger, os.Stderr)
	} else {
		w = io.MultiWriter(fileLogger, os.Stdout)
	}
	log.SetOutput(w)
}
