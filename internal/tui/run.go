package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/redactyl/livegrab/internal/types"
)

// Run shows a spinner while capture runs, then the findings. Quitting
// during a capture cancels it. The last report shown is returned.
func Run(ctx context.Context, capture CaptureFunc, opts Options) (*types.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	final, err := tea.NewProgram(NewModel(ctx, nil, capture, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, fmt.Errorf("error running TUI: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, nil
	}
	if m.Report() == nil && m.Err() != nil {
		return nil, m.Err()
	}
	return m.Report(), nil
}

// RunReport browses a stored report (view-only).
func RunReport(r *types.Report, opts Options) error {
	if _, err := tea.NewProgram(NewModel(context.Background(), r, nil, opts), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
