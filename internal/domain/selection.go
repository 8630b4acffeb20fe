package domain

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

const (
	DefaultStrength = 2
	DefaultFormat   = "png"

	// DefaultTool is the external script invocation the rendered command starts with.
	DefaultTool = "python bumptonormalmap.py"
)

var (
	StrengthChoices = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	FormatChoices   = []string{"png", "jpg", "exr"}
)

// Selection is the file and the two processing parameters staged for the
// external normal-map script.
type Selection struct {
	FileReference string
	Strength      int
	Format        string
}

func NewSelection() Selection {
	return Selection{
		Strength: DefaultStrength,
		Format:   DefaultFormat,
	}
}

func (s Selection) HasFile() bool {
	return s.FileReference != ""
}

// Command renders "<tool> <file> <strength> <format>". The file reference is
// not shell-quoted.
func (s Selection) Command(tool string) string {
	return fmt.Sprintf("%s %s %d %s", tool, s.FileReference, s.Strength, s.Format)
}

// ExpectedOutput is where the script writes its result: next to the input,
// named <name>_normal.<format>.
func (s Selection) ExpectedOutput() string {
	if !s.HasFile() {
		return ""
	}
	dir := filepath.Dir(s.FileReference)
	base := filepath.Base(s.FileReference)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_normal.%s", name, s.Format))
}

func IsStrengthChoice(v int) bool {
	return slices.Contains(StrengthChoices, v)
}

func IsFormatChoice(v string) bool {
	return slices.Contains(FormatChoices, v)
}
