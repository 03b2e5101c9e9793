package kittenboot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// envOp is what a manifest line asks us to do.
type envOp int

const (
	envExport envOp = iota
	envUnset
)

// envDirective is one parsed line of the data.sh manifest. Values are only
// expanded against the environment when literal is false.
type envDirective struct {
	op      envOp
	key     string
	value   string
	literal bool
}

// parseEnvManifest parses the data.sh manifest shipped at the root of the
// payload archive. Directive lines carry a JSON array:
//
//	export ["KEY"]                  set KEY to the empty string
//	export ["KEY", "value"]         set KEY, value expanded against the env
//	export ["KEY", "value", true]   set KEY, value taken verbatim
//	unset  ["KEY"]                  remove KEY
//
// Lines that are neither export nor unset are ignored; the same file doubles
// as a plain shell script for bootstraps that run without this binary.
func parseEnvManifest(text string) ([]envDirective, error) {
	var out []envDirective
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "export "):
			d, err := parseExportDefn(strings.TrimPrefix(line, "export "))
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		case strings.HasPrefix(line, "unset "):
			var parts []string
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "unset ")), &parts); err != nil {
				return nil, fmt.Errorf("malformed unset directive %q: %w", line, err)
			}
			if len(parts) != 1 {
				return nil, fmt.Errorf("unset directive %q must name exactly one variable", line)
			}
			out = append(out, envDirective{op: envUnset, key: parts[0]})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading env manifest: %w", err)
	}
	return out, nil
}

func parseExportDefn(defn string) (envDirective, error) {
	var parts []any
	if err := json.Unmarshal([]byte(defn), &parts); err != nil {
		return envDirective{}, fmt.Errorf("malformed export directive %q: %w", defn, err)
	}
	if len(parts) < 1 || len(parts) > 3 {
		return envDirective{}, fmt.Errorf("export directive %q has %d elements, want 1-3", defn, len(parts))
	}
	d := envDirective{op: envExport}
	key, ok := parts[0].(string)
	if !ok {
		return envDirective{}, fmt.Errorf("export directive %q: key is not a string", defn)
	}
	d.key = key
	if len(parts) > 1 {
		val, ok := parts[1].(string)
		if !ok {
			return envDirective{}, fmt.Errorf("export directive %q: value is not a string", defn)
		}
		d.value = val
	}
	if len(parts) > 2 {
		switch flag := parts[2].(type) {
		case bool:
			d.literal = flag
		case string:
			d.literal = flag != ""
		default:
			return envDirective{}, fmt.Errorf("export directive %q: literal flag is neither bool nor string", defn)
		}
	}
	return d, nil
}

// expandVars substitutes $VAR and ${VAR} references from the current
// environment, leaving unknown references in place rather than erasing them.
func expandVars(s string) string {
	return os.Expand(s, func(name string) string {
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return "$" + name
	})
}

// applyEnvManifest mutates the process environment according to the manifest.
// Unsetting a variable that is not set is a no-op.
func applyEnvManifest(text string) error {
	directives, err := parseEnvManifest(text)
	if err != nil {
		return err
	}
	for _, d := range directives {
		switch d.op {
		case envExport:
			v := d.value
			if !d.literal {
				v = expandVars(v)
			}
			os.Setenv(d.key, v)
		case envUnset:
			os.Unsetenv(d.key)
		}
	}
	return nil
}

// defaultLoginShell resolves the user's shell the way login would: the
// password database entry wins, then $SHELL, then /bin/sh.
func defaultLoginShell() string {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	if s := shellFromPasswdFile("/etc/passwd", os.Geteuid()); s != "" {
		shell = s
	}
	return shell
}

// shellFromPasswdFile looks the uid up in the password database. os/user
// does not expose the shell field, so read the file directly; any failure
// just means "no override".
func shellFromPasswdFile(path string, uid int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	want := fmt.Sprintf("%d", uid)
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 {
			continue
		}
		if fields[2] == want {
			return strings.TrimSpace(fields[6])
		}
	}
	return ""
}
