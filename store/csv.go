// Package store persists records as a CSV file with a fixed column order.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dhcgn/application-tracker/model"
)

// Columns is the header row and the column order of every record.
var Columns = []string{
	"message_id",
	"thread_id",
	"date",
	"sender_name",
	"sender_email",
	"subject",
	"company_guess",
	"job_title_guess",
	"status",
	"preview",
}

var ErrMissingIDColumn = errors.New("csv header has no message_id column")

type Mode int

const (
	// ModeOverwrite replaces the file with a header plus the given records.
	ModeOverwrite Mode = iota
	// ModeAppend adds records to the end of the file and writes a header
	// only when the file is new or empty.
	ModeAppend
)

func (m Mode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "overwrite"
}

// Write stores records at path according to mode.
func Write(path string, records []model.Record, mode Mode) error {
	writeHeader := true
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC

	if mode == ModeAppend {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		info, err := os.Stat(path)
		switch {
		case err == nil:
			writeHeader = info.Size() == 0
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("stat output file: %w", err)
		}
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(Columns); err != nil {
			file.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, rec := range records {
		if err := writer.Write(toRow(rec)); err != nil {
			file.Close()
			return fmt.Errorf("write record %s: %w", rec.MessageID, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return fmt.Errorf("flush output file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return nil
}

// ReadRecords loads every record stored at path. Columns are matched by
// header name, so files with extra or reordered columns still load.
func ReadRecords(path string) ([]model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := columnIndex(header)
	if _, ok := index["message_id"]; !ok {
		return nil, ErrMissingIDColumn
	}

	var records []model.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		records = append(records, fromRow(row, index))
	}
}

// ReadIDs returns the set of message ids already stored at path. A missing
// file is an empty set.
func ReadIDs(path string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	records, err := ReadRecords(path)
	if errors.Is(err, os.ErrNotExist) {
		return ids, nil
	}
	if err != nil {
		return nil, err
	}

	for _, rec := range records {
		if rec.MessageID != "" {
			ids[rec.MessageID] = struct{}{}
		}
	}
	return ids, nil
}

func toRow(rec model.Record) []string {
	return []string{
		cell(rec.MessageID),
		cell(rec.ThreadID),
		cell(rec.Date),
		cell(rec.SenderName),
		cell(rec.SenderEmail),
		cell(rec.Subject),
		cell(rec.CompanyGuess),
		cell(rec.JobTitleGuess),
		cell(string(rec.Status)),
		cell(rec.Preview),
	}
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// cell stores line breaks as "\n". csv.Reader turns "\r\n" inside quoted
// fields into "\n", so anything else would not read back unchanged.
func cell(value string) string {
	return lineBreaks.Replace(value)
}

func fromRow(row []string, index map[string]int) model.Record {
	get := func(column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	return model.Record{
		MessageID:     get("message_id"),
		ThreadID:      get("thread_id"),
		Date:          get("date"),
		SenderName:    get("sender_name"),
		SenderEmail:   get("sender_email"),
		Subject:       get("subject"),
		CompanyGuess:  get("company_guess"),
		JobTitleGuess: get("job_title_guess"),
		Status:        model.Status(get("status")),
		Preview:       get("preview"),
	}
}

func columnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	return index
}
