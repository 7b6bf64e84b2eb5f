// Package action speaks the GitHub Actions workflow command protocol.
package action

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Commands writes step outputs and workflow commands for the Actions runner
type Commands struct {
	out        io.Writer
	outputFile string
}

// New returns Commands that write to out and append outputs to outputFile.
// An empty outputFile selects the legacy ::set-output command.
func New(out io.Writer, outputFile string) *Commands {
	return &Commands{out: out, outputFile: outputFile}
}

// FromEnv returns Commands configured from $GITHUB_OUTPUT
func FromEnv(out io.Writer) *Commands {
	return New(out, os.Getenv("GITHUB_OUTPUT"))
}

// SetOutput sets the step output name to value
func (c *Commands) SetOutput(name, value string) error {
	if c.outputFile == "" {
		_, err := fmt.Fprintf(c.out, "::set-output name=%s::%s\n", escapeProperty(name), escapeData(value))
		return err
	}

	delimiter := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(name, delimiter) || strings.Contains(value, delimiter) {
		return fmt.Errorf("output %s contains the delimiter", name)
	}

	f, err := os.OpenFile(c.outputFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := fmt.Fprintf(f, "%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter); err != nil {
		return fmt.Errorf("failed to write output %s: %w", name, err)
	}
	return nil
}

// SetFailed marks the step failed with message and returns the exit code to use
func (c *Commands) SetFailed(message string) int {
	_, _ = fmt.Fprintf(c.out, "::error::%s\n", escapeData(message))
	return 1
}

func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func escapeProperty(s string) string {
	s = escapeData(s)
	s = strings.ReplaceAll(s, ":", "%3A")
	return strings.ReplaceAll(s, ",", "%2C")
}
