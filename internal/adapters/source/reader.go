// Package source reads raw dataset files (delimited text or line-delimited
// JSON) into header-keyed rows for the ingest planner
package source

import (
	"bufio"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"

	perr "finewatch/internal/platform/errors"
)

// maxLineBytes guards the NDJSON scanner against pathological lines
const maxLineBytes = 4 << 20

// ReadFile opens path and decodes it by extension. A trailing .gz is
// transparently decompressed before format sniffing
func ReadFile(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNotFound, "open %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "gunzip %s", path)
		}
		defer gz.Close()
		r = gz
		name = strings.TrimSuffix(name, ".gz")
	}

	switch {
	case strings.HasSuffix(name, ".ndjson"), strings.HasSuffix(name, ".jsonl"):
		return ReadNDJSON(r)
	default:
		return ReadCSV(r)
	}
}

// ReadCSV decodes delimited text. The first record is the header row; short
// records pad with empty values rather than failing the file
func ReadCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged rows are the norm in agency drops
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeValidation, "read csv record")
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if h == "" {
				continue
			}
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ReadNDJSON decodes line-delimited JSON objects. Non-string values are
// flattened to their JSON text so the registry sees uniform string fields
func ReadNDJSON(r io.Reader) ([]map[string]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLineBytes)

	var rows []map[string]string
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeValidation, "ndjson line %d", line)
		}
		row := make(map[string]string, len(obj))
		for k, v := range obj {
			var s string
			if err := json.Unmarshal(v, &s); err == nil {
				row[k] = s
				continue
			}
			row[k] = string(v)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "scan ndjson")
	}
	return rows, nil
}
