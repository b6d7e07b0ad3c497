package trajectory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// jsonlHeader is the first line of a JSONL trajectory stream.
type jsonlHeader struct {
	Columns []string `json:"columns"`
}

// jsonlSample is one subsequent line.
type jsonlSample struct {
	Time   float64   `json:"time"`
	Values []float64 `json:"values"`
}

// WriteJSONL writes a header line with the column names followed by one
// JSON object per sample.
func (tr *Trajectory) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(jsonlHeader{Columns: tr.Columns}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, s := range tr.Samples {
		if len(s.Values) != len(tr.Columns) {
			return fmt.Errorf("sample %d: %w", i, ErrColumnMismatch)
		}
		if err := enc.Encode(jsonlSample{Time: s.Time, Values: s.Values}); err != nil {
			return fmt.Errorf("writing sample %d: %w", i, err)
		}
	}
	return nil
}

// WriteJSONLFile writes the trajectory to a file.
func (tr *Trajectory) WriteJSONLFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()
	if err := tr.WriteJSONL(f); err != nil {
		return err
	}
	return f.Close()
}

// ReadJSONL parses a trajectory written by WriteJSONL.
func ReadJSONL(r io.Reader) (*Trajectory, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, fmt.Errorf("trajectory: empty stream")
	}
	var header jsonlHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("line 1: invalid header: %w", err)
	}
	if len(header.Columns) == 0 {
		return nil, fmt.Errorf("line 1: header has no columns")
	}
	tr := &Trajectory{Columns: header.Columns}

	line := 1
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var s jsonlSample
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		if len(s.Values) != len(tr.Columns) {
			return nil, fmt.Errorf("line %d: %w", line, ErrColumnMismatch)
		}
		tr.Samples = append(tr.Samples, Sample{Time: s.Time, Values: s.Values})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return tr, nil
}

// ReadJSONLFile reads a trajectory from a file.
func ReadJSONLFile(filename string) (*Trajectory, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return ReadJSONL(f)
}
