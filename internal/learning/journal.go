package learning

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"hooksmith/internal/logging"
)

// journal is the append-only JSONL history behind the engine. One write
// failure disables persistence for the remainder of the session; the engine
// keeps working in memory.
type journal struct {
	path     string
	disabled bool
	logger   logging.Logger
}

func newJournal(path string, logger logging.Logger) *journal {
	return &journal{path: path, disabled: path == "", logger: logger}
}

// replay reads the journal back. Individual bad lines are skipped; a
// journal where most lines are bad is treated as corrupt and discarded
// wholesale so stale partial state cannot skew the thresholds.
func (j *journal) replay() []Record {
	if j.disabled {
		return nil
	}
	file, err := os.Open(j.path)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("learning journal unreadable, starting from defaults: %v", err)
		}
		return nil
	}
	defer func() { _ = file.Close() }()

	var records []Record
	bad := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			bad++
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		j.logger.Warn("learning journal truncated read, discarding history: %v", err)
		return nil
	}
	if bad > len(records) {
		j.logger.Warn("learning journal mostly corrupt (%d bad, %d good), discarding history", bad, len(records))
		return nil
	}
	if bad > 0 {
		j.logger.Debug("skipped %d corrupt learning journal lines", bad)
	}
	return records
}

func (j *journal) append(record Record) {
	if j.disabled {
		return
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		j.fail(err)
		return
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		j.fail(err)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := json.Marshal(record)
	if err != nil {
		j.fail(err)
		return
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		j.fail(err)
	}
}

func (j *journal) fail(err error) {
	// In-memory-only for the rest of the session.
	j.disabled = true
	j.logger.Warn("learning journal write failed, continuing in memory: %v", err)
}
