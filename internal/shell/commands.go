package shell

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/maptel/internal/registry/domain"
)

type command struct {
	usage   string
	help    string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, args []string) error
}

func (s *Shell) builtins() map[string]command {
	return map[string]command{
		"create": {
			usage: "create",
			help:  "create an empty table and print its handle",
			run:   s.create,
		},
		"delete": {
			usage: "delete <handle>", help: "destroy a table",
			minArgs: 1, maxArgs: 1, run: s.delete,
		},
		"insert": {
			usage: "insert <handle> <source> <destination>", help: "redirect source to destination",
			minArgs: 3, maxArgs: 3, run: s.insert,
		},
		"erase": {
			usage: "erase <handle> <source>", help: "remove the redirection of source",
			minArgs: 2, maxArgs: 2, run: s.erase,
		},
		"transform": {
			usage: "transform <handle> <source> [capacity]", help: "resolve source through the redirection chain",
			minArgs: 2, maxArgs: 3, run: s.transform,
		},
		"dump": {
			usage: "dump <handle>", help: "print a table's redirections as YAML",
			minArgs: 1, maxArgs: 1, run: s.dump,
		},
		"load": {
			usage: "load <handle> <file.yaml>", help: "insert every source: destination pair from a YAML map",
			minArgs: 2, maxArgs: 2, run: s.load,
		},
		"tables": {
			usage: "tables", help: "list live tables",
			run: s.tables,
		},
		"help": {
			usage: "help", help: "show this list",
			run: s.help,
		},
	}
}

func (s *Shell) create(ctx context.Context, _ []string) error {
	s.printResult("%d", s.reg.CreateTable(ctx))
	return nil
}

func (s *Shell) delete(ctx context.Context, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	return s.reg.DestroyTable(ctx, h)
}

func (s *Shell) insert(ctx context.Context, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	return s.reg.Insert(ctx, h, args[1], args[2])
}

func (s *Shell) erase(ctx context.Context, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	return s.reg.Erase(ctx, h, args[1])
}

func (s *Shell) transform(ctx context.Context, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}

	if len(args) == 2 {
		dst, err := s.reg.Transform(ctx, h, args[1])
		if err != nil {
			return err
		}
		s.printResult("%s", dst)
		return nil
	}

	capacity, err := strconv.Atoi(args[2])
	if err != nil || capacity < 0 {
		return fmt.Errorf("capacity %q must be a non-negative integer", args[2])
	}
	// Any result fits in MaxNumberLen+1 bytes; a larger request only
	// needs that much.
	buf := make([]byte, min(capacity, domain.MaxNumberLen+1))
	n, err := s.reg.TransformInto(ctx, h, args[1], buf)
	if err != nil {
		return err
	}
	s.printResult("%s", buf[:n])
	return nil
}

type tableDump struct {
	Handle  domain.Handle     `yaml:"handle"`
	Entries map[string]string `yaml:"entries"`
}

func (s *Shell) dump(_ context.Context, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	entries, err := s.reg.Entries(h)
	if err != nil {
		return err
	}

	out := tableDump{Handle: h, Entries: make(map[string]string, len(entries))}
	for src, dst := range entries {
		out.Entries[src.String()] = dst.String()
	}
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("encoding table: %w", err)
	}
	fmt.Fprint(s.out, string(data))
	return nil
}

func (s *Shell) load(ctx context.Context, args []string) error {
	h, err := parseHandle(args[0])
	if err != nil {
		return err
	}
	pairs, err := readRedirections(args[1])
	if err != nil {
		return err
	}
	// Validate everything first so a bad pair leaves the table untouched.
	for _, p := range pairs {
		for _, n := range p {
			if _, err := domain.ParseNumber(n); err != nil {
				return fmt.Errorf("load %s: %s: %w", args[1], p[0], err)
			}
		}
	}
	for i, p := range pairs {
		if err := s.reg.Insert(ctx, h, p[0], p[1]); err != nil {
			return fmt.Errorf("load %s: %d of %d pairs loaded: %w", args[1], i, len(pairs), err)
		}
	}
	s.printResult("loaded %d", len(pairs))
	return nil
}

// readRedirections reads a YAML mapping of source to destination. Scalars
// are taken verbatim so numbers with leading zeros keep them.
func readRedirections(path string) ([][2]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-supplied script input
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping of source to destination", path)
	}

	pairs := make([][2]string, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%s:%d: source and destination must be plain values", path, k.Line)
		}
		pairs = append(pairs, [2]string{k.Value, v.Value})
	}
	return pairs, nil
}

func (s *Shell) tables(_ context.Context, _ []string) error {
	handles := s.reg.Handles()
	if len(handles) == 0 {
		s.printResult("no tables")
		return nil
	}
	for _, h := range handles {
		entries, err := s.reg.Entries(h)
		if err != nil {
			// Destroyed between Handles and Entries.
			continue
		}
		s.printResult("%d entries=%d", h, len(entries))
	}
	return nil
}

func (s *Shell) help(_ context.Context, _ []string) error {
	names := make([]string, 0, len(s.commands))
	for name := range s.commands {
		names = append(names, name)
	}
	slices.Sort(names)

	var b strings.Builder
	for _, name := range names {
		c := s.commands[name]
		fmt.Fprintf(&b, "  %-40s %s\n", c.usage, c.help)
	}
	fmt.Fprintf(&b, "  %-40s %s\n", "quit", "leave the shell")
	fmt.Fprint(s.out, b.String())
	return nil
}

func parseHandle(s string) (domain.Handle, error) {
	h, err := domain.ParseHandle(s)
	if err != nil {
		return 0, fmt.Errorf("handle %q: %w", s, domain.ErrInvalidHandle)
	}
	return h, nil
}
