package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const maxLineBytes = 1 << 20

// ReadRecords loads every record from a JSONL audit log. Malformed lines are
// skipped and counted. A missing file yields no records and no error.
func ReadRecords(path string) ([]AuditRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var records []AuditRecord
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, skipped, fmt.Errorf("reading audit log: %w", err)
	}
	return records, skipped, nil
}
