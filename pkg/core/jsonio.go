package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

// MarshalReport pretty-prints a report as JSON for humans or pipelines.
// Secret values are never included.
func MarshalReport(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// UnmarshalCaptures reads either a JSON array of captures or a report. A
// report's findings come back as captures carrying their occurrence counts,
// so summarizing them again reproduces the report's counts.
func UnmarshalCaptures(r io.Reader) ([]Capture, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, errors.New("empty input")
	}
	if b[0] == '[' {
		var cs []Capture
		if err := json.Unmarshal(b, &cs); err != nil {
			return nil, err
		}
		return cs, nil
	}
	var rep Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, err
	}
	cs := make([]Capture, 0, len(rep.Findings))
	for _, f := range rep.Findings {
		c := f.Capture
		c.Occurrences = f.OccurrenceCount
		cs = append(cs, c)
	}
	return cs, nil
}
