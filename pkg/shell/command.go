package shell

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/integrail/ui-harness/pkg/harness"
)

type command struct {
	usage string
	help  string
	args  func(n int) bool
	run   func(p harness.Program, args []string) (string, error)
}

func exactly(n int) func(int) bool { return func(got int) bool { return got == n } }
func atLeast(n int) func(int) bool { return func(got int) bool { return got >= n } }
func atMost(n int) func(int) bool  { return func(got int) bool { return got <= n } }

var commands = map[string]command{
	"goto": {
		usage: "goto [url]",
		help:  "navigate to url (default: origin) and wait for the load event",
		args:  atMost(1),
		run: func(p harness.Program, args []string) (string, error) {
			url := p.Origin()
			if len(args) == 1 {
				url = args[0]
			}
			if err := p.Navigate(url, harness.Readiness{}); err != nil {
				return "", err
			}
			return "loaded " + url, nil
		},
	},
	"click": {
		usage: "click <locator>",
		help:  "click the element",
		args:  exactly(1),
		run: withLocator(func(p harness.Program, loc harness.Locator, _ []string) (string, error) {
			return "clicked " + loc.String(), p.Click(loc)
		}),
	},
	"visible": {
		usage: "visible <locator> [timeout]",
		help:  "wait until the element is visible",
		args:  func(n int) bool { return n == 1 || n == 2 },
		run: withLocator(func(p harness.Program, loc harness.Locator, rest []string) (string, error) {
			opts, err := waitOptions(rest)
			if err != nil {
				return "", err
			}
			return loc.String() + " is visible", p.WaitVisible(loc, opts...)
		}),
	},
	"hidden": {
		usage: "hidden <locator> [timeout]",
		help:  "wait until the element is hidden or gone",
		args:  func(n int) bool { return n == 1 || n == 2 },
		run: withLocator(func(p harness.Program, loc harness.Locator, rest []string) (string, error) {
			opts, err := waitOptions(rest)
			if err != nil {
				return "", err
			}
			return loc.String() + " is hidden", p.WaitHidden(loc, opts...)
		}),
	},
	"attr": {
		usage: "attr <locator> <name>",
		help:  "print an attribute of the element",
		args:  exactly(2),
		run: withLocator(func(p harness.Program, loc harness.Locator, rest []string) (string, error) {
			value, present, err := p.Attribute(loc, rest[0])
			if err != nil {
				return "", err
			}
			if !present {
				return fmt.Sprintf("%s has no %s attribute", loc, rest[0]), nil
			}
			return fmt.Sprintf("%s=%q", rest[0], value), nil
		}),
	},
	"styles": {
		usage: "styles <selector> [::pseudo] [property...]",
		help:  "print computed styles of the first matching element",
		args:  atLeast(1),
		run: func(p harness.Program, args []string) (string, error) {
			selector, rest := args[0], args[1:]
			var pseudo string
			if len(rest) > 0 && strings.HasPrefix(rest[0], "::") {
				pseudo, rest = rest[0], rest[1:]
			}
			snap, err := p.ComputedStyle(selector, pseudo)
			if err != nil {
				return "", err
			}
			if !snap.Found {
				return fmt.Sprintf("Element with selector '%s' not found.", selector), nil
			}
			out, err := json.MarshalIndent(snap.Subset(rest...), "", "  ")
			if err != nil {
				return "", errors.Wrapf(err, "failed to encode styles")
			}
			return string(out), nil
		},
	},
	"shadow": {
		usage: "shadow <selector>",
		help:  "print the shadow root markup of the first matching element",
		args:  exactly(1),
		run: func(p harness.Program, args []string) (string, error) {
			return p.ShadowHTML(args[0])
		},
	},
	"inject": {
		usage: "inject <css>",
		help:  "insert or replace the debug style block",
		args:  atLeast(1),
		run: func(p harness.Program, args []string) (string, error) {
			css := strings.Join(args, " ")
			return "style injected", p.InjectStyle(css)
		},
	},
	"screenshot": {
		usage: "screenshot <file>",
		help:  "save a full-page screenshot",
		args:  exactly(1),
		run: func(p harness.Program, args []string) (string, error) {
			return "saved " + args[0], p.SaveScreenshot(args[0])
		},
	},
	"console": {
		usage: "console [errors]",
		help:  "print captured console messages",
		args:  atMost(1),
		run: func(p harness.Program, args []string) (string, error) {
			messages := p.Console()
			if len(args) == 1 {
				if args[0] != "errors" {
					return "", errors.Errorf("unknown console filter %q", args[0])
				}
				messages = p.ConsoleErrors()
			}
			if len(messages) == 0 {
				return "no console messages", nil
			}
			return strings.Join(lo.Map(messages, func(m harness.ConsoleMessage, _ int) string { return m.String() }), "\n"), nil
		},
	},
	"sleep": {
		usage: "sleep <duration>",
		help:  "pause, e.g. sleep 500ms",
		args:  exactly(1),
		run: func(p harness.Program, args []string) (string, error) {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return "", errors.Wrapf(err, "invalid duration %q", args[0])
			}
			return "slept " + d.String(), p.Sleep(d)
		},
	},
}

func withLocator(fn func(p harness.Program, loc harness.Locator, rest []string) (string, error)) func(harness.Program, []string) (string, error) {
	return func(p harness.Program, args []string) (string, error) {
		loc, err := harness.ParseLocator(args[0])
		if err != nil {
			return "", err
		}
		out, err := fn(p, loc, args[1:])
		if err != nil {
			return "", err
		}
		return out, nil
	}
}

func waitOptions(rest []string) ([]harness.WaitOption, error) {
	if len(rest) == 0 {
		return nil, nil
	}
	d, err := time.ParseDuration(rest[0])
	if err != nil {
		return nil, errors.Wrapf(err, "invalid timeout %q", rest[0])
	}
	return []harness.WaitOption{harness.WithWaitTimeout(d)}, nil
}

// Help lists every command with its usage.
func Help() string {
	names := lo.Keys(commands)
	sort.Strings(names)
	lines := lo.Map(names, func(name string, _ int) string {
		return fmt.Sprintf("  %-44s %s", commands[name].usage, commands[name].help)
	})
	return "Commands:\n" + strings.Join(lines, "\n") + "\n  help\n  exit"
}

// Exec runs one command line against p and returns its printable output.
func Exec(p harness.Program, line string) (string, error) {
	args, err := Split(line)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		return "", nil
	}
	name, args := args[0], args[1:]
	if name == "help" {
		return Help(), nil
	}
	cmd, ok := commands[name]
	if !ok {
		return "", errors.Errorf("unknown command %q, type help for a list", name)
	}
	if !cmd.args(len(args)) {
		return "", errors.Errorf("usage: %s", cmd.usage)
	}
	return cmd.run(p, args)
}

// Split breaks a command line into words. Single quotes keep their content
// literally; inside double quotes and bare words a backslash escapes the
// next character.
func Split(line string) ([]string, error) {
	var (
		words   []string
		current strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\\':
			escaped, inWord = true, true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inWord = r, true
		case r == ' ' || r == '\t':
			if inWord {
				words = append(words, current.String())
				current.Reset()
				inWord = false
			}
		default:
			current.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, errors.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.Errorf("trailing backslash")
	}
	if inWord {
		words = append(words, current.String())
	}
	return words, nil
}
