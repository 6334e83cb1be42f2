package embedded

import (
	"embed"
	"io/fs"
)

//go:embed firmware
var firmware embed.FS

// Firmware returns the bundled firmware images, keyed by filename.
func Firmware() fs.FS {
	sub, err := fs.Sub(firmware, "firmware")
	if err != nil {
		panic(err)
	}
	return sub
}
