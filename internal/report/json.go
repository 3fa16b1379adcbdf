package report

import (
	"encoding/json"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/mattn/go-isatty"

	"github.com/redactyl/livegrab/internal/types"
)

// WriteJSON writes r as indented JSON. Secret values are never serialized.
func WriteJSON(w io.Writer, r *types.Report, highlight bool) error {
	buf, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	if highlight {
		if err := quick.Highlight(w, string(buf), "json", "terminal256", "monokai"); err == nil {
			return nil
		}
	}
	_, err = w.Write(buf)
	return err
}

// ReadJSON decodes a report written by WriteJSON.
func ReadJSON(r io.Reader) (*types.Report, error) {
	var rep types.Report
	dec := json.NewDecoder(r)
	if err := dec.Decode(&rep); err != nil {
		return nil, err
	}
	if rep.ByKind == nil {
		rep.ByKind = map[types.SecretKind]int{}
	}
	return &rep, nil
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
