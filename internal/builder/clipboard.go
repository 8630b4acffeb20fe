package builder

import "github.com/atotto/clipboard"

// SystemClipboard writes to the desktop clipboard (pbcopy, xclip, xsel,
// wl-copy or the Windows API, whichever is present).
type SystemClipboard struct{}

func (SystemClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

func ClipboardSupported() bool {
	return !clipboard.Unsupported
}
