// Package imageinfo reads image headers to describe a dropped file.
package imageinfo

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type Info struct {
	Format string
	Width  int
	Height int
	Bytes  int64
}

func (i Info) String() string {
	return fmt.Sprintf("%dx%d %s", i.Width, i.Height, i.Format)
}

// Probe decodes only the header of the file at path.
func Probe(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("stat image %s: %w", path, err)
	}

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("decode image header %s: %w", path, err)
	}

	return Info{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Bytes:  stat.Size(),
	}, nil
}
