package materialize

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
)

// ItemFailure records one failed transfer inside a batch.
type ItemFailure struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
	Err    error  `json:"-"`
	Reason string `json:"reason"`
}

// PartialError reports a batch that applied some actions and failed others.
// The batch does not abort on the first failure; callers inspect Failures to
// see exactly which items need attention.
type PartialError struct {
	Failures []ItemFailure
}

func (e *PartialError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("1 transfer failed: %s: %v", e.Failures[0].Source, e.Failures[0].Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d transfers failed:", len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s: %v", f.Source, f.Err)
	}
	return b.String()
}

// Result summarizes what Apply changed.
type Result struct {
	DirsCreated int           `json:"dirs_created"`
	Transferred int           `json:"transferred"`
	Failures    []ItemFailure `json:"failures,omitempty"`
}

// Apply executes a plan. Directory creation failures abort immediately (every
// transfer into that directory would fail anyway); transfer failures are
// recorded per item and the batch continues. When any transfer failed the
// returned error is a *PartialError alongside the partial Result.
func (m *Materializer) Apply(actions []Action) (*Result, error) {
	result := &Result{}

	var bar *progressbar.ProgressBar
	if m.ShowProgress && len(actions) > 0 {
		bar = progressbar.NewOptions(len(actions),
			progressbar.OptionSetDescription("Materializing clusters"),
			progressbar.OptionShowCount(),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	for _, action := range actions {
		if bar != nil {
			bar.Add(1)
		}
		switch action.Kind {
		case ActionMkdir:
			if err := os.MkdirAll(action.Dir, 0o755); err != nil {
				return result, fmt.Errorf("failed to create %s: %w", action.Dir, err)
			}
			result.DirsCreated++
		case ActionTransfer:
			if err := TransferFile(action.Source, action.Dest, m.mode); err != nil {
				result.Failures = append(result.Failures, ItemFailure{
					Source: action.Source,
					Dest:   action.Dest,
					Err:    err,
					Reason: err.Error(),
				})
				continue
			}
			result.Transferred++
		}
	}

	if len(result.Failures) > 0 {
		return result, &PartialError{Failures: result.Failures}
	}
	return result, nil
}

// Materialize plans and applies in one step. Idempotent: running it twice on
// an unchanged mapping transfers zero files the second time.
func (m *Materializer) Materialize(mapping map[string][]string) (*Result, error) {
	actions, err := m.Plan(mapping)
	if err != nil {
		return nil, err
	}
	return m.Apply(actions)
}

// TransferFile moves or copies one file into its final name using a
// stage-then-commit sequence: the data lands under a ".partial" name first
// and the final visible name appears through a rename. A crash mid-transfer
// leaves the old arrangement or the new one, never a half-written file under
// the final name. An existing destination is replaced by the rename.
func TransferFile(src, dest string, mode Mode) error {
	staging := dest + ".partial"

	if err := copyFile(src, staging); err != nil {
		os.Remove(staging)
		return err
	}
	if err := os.Rename(staging, dest); err != nil {
		os.Remove(staging)
		return fmt.Errorf("failed to commit %s: %w", dest, err)
	}

	if mode == ModeMove {
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("failed to remove source %s: %w", src, err)
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrFilesystemConflict, src)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to flush staging file: %w", err)
	}
	return nil
}
