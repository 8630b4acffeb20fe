package builder

import (
	"net/url"
	"path/filepath"
	"strings"
)

type Target int

const (
	// TargetDocument is any click that lands outside the controls.
	TargetDocument Target = iota
	TargetStrengthButton
	TargetFormatButton
	TargetStrengthOption
	TargetFormatOption
	TargetCopyButton
	TargetProvisionButton
)

// ClickEvent is delivered to the target handler first and to the document
// handler afterwards unless StopPropagation was called.
type ClickEvent struct {
	Target Target
	// Value carries the chosen option for menu option targets.
	Value string

	propagationStopped bool
}

func Click(target Target) *ClickEvent {
	return &ClickEvent{Target: target}
}

func ClickOption(target Target, value string) *ClickEvent {
	return &ClickEvent{Target: target, Value: value}
}

func (e *ClickEvent) StopPropagation() {
	e.propagationStopped = true
}

func (e *ClickEvent) PropagationStopped() bool {
	return e.propagationStopped
}

// DroppedFile is one entry of a drop. Path is empty when the environment
// cannot expose a filesystem path.
type DroppedFile struct {
	Name string
	Path string
}

func (f DroppedFile) Reference() string {
	if f.Path != "" {
		return f.Path
	}
	return f.Name
}

// FileFromPath builds a DroppedFile from raw path text, resolving it against
// the working directory when possible. file:// URIs are decoded to their
// path first.
func FileFromPath(raw string) DroppedFile {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DroppedFile{}
	}
	if p, ok := pathFromFileURI(raw); ok {
		raw = p
	}
	if isWindowsAbs(raw) {
		return DroppedFile{Name: windowsBase(raw), Path: raw}
	}
	f := DroppedFile{Name: filepath.Base(raw)}
	if abs, err := filepath.Abs(raw); err == nil {
		f.Path = abs
	}
	return f
}

func pathFromFileURI(raw string) (string, bool) {
	if !strings.HasPrefix(strings.ToLower(raw), "file://") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	p := u.Path
	// file:///C:/textures/a.png
	if len(p) >= 3 && p[0] == '/' && p[2] == ':' && isDriveLetter(p[1]) {
		return strings.ReplaceAll(p[1:], "/", `\`), true
	}
	return filepath.FromSlash(p), true
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// isWindowsAbs reports drive paths (C:\x) and UNC paths (\\host\share).
func isWindowsAbs(p string) bool {
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && (p[2] == '\\' || p[2] == '/')
}

func windowsBase(p string) string {
	if i := strings.LastIndexAny(p, `\/`); i >= 0 && i < len(p)-1 {
		return p[i+1:]
	}
	return p
}

// shellEscapable holds the characters terminals backslash-escape when they
// paste a dragged path. A backslash before anything else is a literal
// separator.
const shellEscapable = " \t'\"\\()[]{}&;|<>$`!*?#~"

// ParseDrop splits pasted drop text into files. Terminals deliver dragged
// files as paths separated by spaces or newlines, quoted or with
// backslash-escaped spaces. Backslashes are never escapes on Windows or
// inside quotes.
func ParseDrop(text string) []DroppedFile {
	return parseDrop(text, filepath.Separator != '\\')
}

func parseDrop(text string, allowEscapes bool) []DroppedFile {
	var (
		files   []DroppedFile
		current strings.Builder
		quote   rune
		pending bool
	)
	flush := func() {
		if pending {
			if f := FileFromPath(current.String()); f.Reference() != "" {
				files = append(files, f)
			}
		}
		current.Reset()
		pending = false
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case allowEscapes && r == '\\' && i+1 < len(runes) && strings.ContainsRune(shellEscapable, runes[i+1]):
			i++
			current.WriteRune(runes[i])
			pending = true
		case r == '\'' || r == '"':
			quote = r
			pending = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			current.WriteRune(r)
			pending = true
		}
	}
	flush()
	return files
}
