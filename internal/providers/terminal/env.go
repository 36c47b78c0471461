package terminal

import (
	"sort"
	"strings"
)

// forcedEnv is applied to every shell so rendering is consistent across hosts.
var forcedEnv = map[string]string{
	"TERM":                    "xterm-256color",
	"COLORTERM":               "truecolor",
	"FORCE_COLOR":             "1",
	"HOMEBREW_NO_AUTO_UPDATE": "1",
	"DISABLE_AUTO_UPDATE":     "true",
	"TERM_PROGRAM":            "webterm",
}

// strippedEnv describes the server's own terminal, which the shell must not inherit.
var strippedEnv = map[string]bool{
	"COLUMNS":         true,
	"LINES":           true,
	"TERMCAP":         true,
	"TERM_SESSION_ID": true,
}

// Environment builds a shell environment from base (typically os.Environ()),
// the forced rendering variables and extra. Later sources win. LANG defaults
// to C.UTF-8 when nothing sets it.
func Environment(base []string, extra map[string]string) []string {
	vars := make(map[string]string, len(base)+len(forcedEnv)+len(extra))
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" || strippedEnv[key] {
			continue
		}
		vars[key] = value
	}
	for key, value := range forcedEnv {
		vars[key] = value
	}
	for key, value := range extra {
		vars[key] = value
	}
	if vars["LANG"] == "" && vars["LC_ALL"] == "" {
		vars["LANG"] = "C.UTF-8"
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+vars[key])
	}
	return env
}
