// Package flagx lets each config source parse only the flags it owns out of
// the shared command line, so unknown flags never abort parsing.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps the allowed flags from args, each followed by its value.
// Both "-f value" and "-f=value" are recognized; the token after a flag is
// its value unless it starts with "-". Nothing after "--" is kept.
func FilterArgs(args []string, allowedFlags []string) []string {
	keep := make(map[string]bool, len(allowedFlags))
	for _, f := range allowedFlags {
		keep[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		name, _, inline := strings.Cut(arg, "=")
		if !strings.HasPrefix(arg, "-") || !keep[name] {
			continue
		}
		out = append(out, arg)
		if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// ConfigPath returns the JSON config file named by -c or -config in args,
// or "" when neither is given. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}
