package recordfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/five82/melinda/pkg/melinda"
)

// Stdin is the path that makes Read consume the given stdin reader.
const Stdin = "-"

// ErrNoRecords is returned when the input holds no record at all.
var ErrNoRecords = errors.New("no records found")

// Read returns the records stored at path. The file may hold one JSON object,
// a JSON array of objects, or one object per line. For path "-" the records
// come from stdin, or os.Stdin when stdin is nil.
func Read(path string, stdin io.Reader) ([]melinda.Record, error) {
	if path == Stdin {
		if stdin == nil {
			stdin = os.Stdin
		}
		return ReadFrom(stdin)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer file.Close()

	records, err := ReadFrom(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// ReadOne is Read for inputs that must contain exactly one record.
func ReadOne(path string, stdin io.Reader) (melinda.Record, error) {
	records, err := Read(path, stdin)
	if err != nil {
		return melinda.Record{}, err
	}
	if len(records) != 1 {
		return melinda.Record{}, fmt.Errorf("%s: expected one record, found %d", path, len(records))
	}
	return records[0], nil
}

// ReadFrom decodes records from r.
func ReadFrom(r io.Reader) ([]melinda.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoRecords
	}

	if json.Valid(trimmed) {
		if trimmed[0] == '[' {
			return decodeArray(trimmed)
		}
		rec, err := melinda.ParseRecord(trimmed)
		if err != nil {
			return nil, err
		}
		return []melinda.Record{rec}, nil
	}
	return decodeLines(trimmed)
}

func decodeArray(data []byte) ([]melinda.Record, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode record array: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoRecords
	}
	records := make([]melinda.Record, 0, len(items))
	for i, item := range items {
		rec, err := melinda.ParseRecord(item)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeLines(data []byte) ([]melinda.Record, error) {
	var records []melinda.Record
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		rec, err := melinda.ParseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}
