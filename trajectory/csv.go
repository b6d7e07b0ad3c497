package trajectory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// WriteCSV writes the trajectory with a header row of "time" followed by
// the column names.
func (tr *Trajectory) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"time"}, tr.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	row := make([]string, len(tr.Columns)+1)
	for _, s := range tr.Samples {
		if len(s.Values) != len(tr.Columns) {
			return fmt.Errorf("%w: %d values, %d columns",
				ErrColumnMismatch, len(s.Values), len(tr.Columns))
		}
		row[0] = strconv.FormatFloat(s.Time, 'g', -1, 64)
		for i, v := range s.Values {
			row[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the trajectory to a file.
func (tr *Trajectory) WriteCSVFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()
	if err := tr.WriteCSV(f); err != nil {
		return err
	}
	return f.Close()
}

// ReadCSV parses a trajectory written by WriteCSV.
func ReadCSV(r io.Reader) (*Trajectory, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if len(header) < 1 || header[0] != "time" {
		return nil, fmt.Errorf("trajectory: first column must be \"time\", got %q", header)
	}
	tr := &Trajectory{Columns: append([]string(nil), header[1:]...)}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line+1, err)
		}
		line++
		if len(record) != len(header) {
			return nil, fmt.Errorf("line %d: %w", line, ErrColumnMismatch)
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q: %w", line, record[0], err)
		}
		values := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %w", line, field, err)
			}
			values[i] = v
		}
		tr.Samples = append(tr.Samples, Sample{Time: t, Values: values})
	}
	return tr, nil
}

// ReadCSVFile reads a trajectory from a file.
func ReadCSVFile(filename string) (*Trajectory, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}
