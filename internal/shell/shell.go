// Package shell interprets line-oriented registry commands, one per line,
// against an application.Registry.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/zjrosen/maptel/internal/log"
	"github.com/zjrosen/maptel/internal/registry/application"
)

// ErrUnknownCommand is returned for a command word the shell does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ErrUsage is returned when a command gets the wrong number of arguments.
var ErrUsage = errors.New("usage")

var (
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Shell executes commands against a registry and writes results to out.
type Shell struct {
	reg      *application.Registry
	out      io.Writer
	prompt   string
	color    bool
	strict   bool
	commands map[string]command
}

// Option configures a Shell.
type Option func(*Shell)

// WithPrompt prints prompt before reading each line.
func WithPrompt(prompt string) Option {
	return func(s *Shell) { s.prompt = prompt }
}

// WithColor toggles lipgloss styling of results and errors.
func WithColor(enabled bool) Option {
	return func(s *Shell) { s.color = enabled }
}

// WithStrict makes Run stop at the first failing command.
func WithStrict(strict bool) Option {
	return func(s *Shell) { s.strict = strict }
}

// New returns a shell bound to reg.
func New(reg *application.Registry, out io.Writer, opts ...Option) *Shell {
	s := &Shell{reg: reg, out: out}
	for _, opt := range opts {
		opt(s)
	}
	s.commands = s.builtins()
	return s
}

// Run executes every line from in until EOF, quit or ctx is done. In
// strict mode the first failing command ends the run with its error;
// otherwise errors are printed and execution continues.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printPrompt()
		if !scanner.Scan() {
			break
		}
		lineNo++

		quit, err := s.Exec(ctx, scanner.Text())
		if err != nil {
			log.ErrorErr(log.CatShell, "command failed", err, "line", lineNo)
			s.printError(err)
			if s.strict {
				return fmt.Errorf("line %d: %w", lineNo, err)
			}
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

// Exec runs a single command line. Blank lines and lines starting with '#'
// do nothing. quit reports whether the line asked the shell to stop.
func (s *Shell) Exec(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, nil
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "quit" || name == "exit" {
		return true, nil
	}

	cmd, ok := s.commands[name]
	if !ok {
		return false, fmt.Errorf("%w %q (try \"help\")", ErrUnknownCommand, name)
	}
	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return false, fmt.Errorf("%w: %s", ErrUsage, cmd.usage)
	}

	log.Debug(log.CatShell, "exec", "command", name, "args", strings.Join(args, " "))
	return false, cmd.run(ctx, args)
}

func (s *Shell) printPrompt() {
	if s.prompt != "" {
		fmt.Fprint(s.out, s.paint(dimStyle, s.prompt))
	}
}

func (s *Shell) printResult(format string, args ...any) {
	fmt.Fprintln(s.out, s.paint(resultStyle, fmt.Sprintf(format, args...)))
}

func (s *Shell) printError(err error) {
	fmt.Fprintln(s.out, s.paint(errorStyle, "error: "+err.Error()))
}

func (s *Shell) paint(style lipgloss.Style, text string) string {
	if !s.color {
		return text
	}
	return style.Render(text)
}
