package carousel

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"github.com/muesli/termenv"
)

// kittyChunkSize is the largest payload the Kitty graphics protocol
// accepts in one escape sequence.
const kittyChunkSize = 4096

// KittyRenderer transmits every frame as a PNG using the Kitty graphics
// protocol and reserves the cells it covers with blanks.
type KittyRenderer struct {
	// ImageID identifies the placement so the previous frame can be
	// deleted before the next one is sent.
	ImageID int
	// CellWidth and CellHeight are the pixels sampled per cell. The
	// terminal scales the image to the cell area.
	CellWidth  int
	CellHeight int
}

func (k KittyRenderer) CellSize() (int, int) {
	w, h := k.CellWidth, k.CellHeight
	if w <= 0 {
		w = 8
	}
	if h <= 0 {
		h = 2 * w
	}
	return w, h
}

func (k KittyRenderer) Render(frame image.Image, cols, rows int) string {
	encoded, err := encodeKitty(frame, k.id(), cols, rows)
	if err != nil {
		return blank(cols, rows)
	}
	// C=1 leaves the cursor where it was, so the blanks that follow
	// take up the space the image is drawn over.
	return encoded + blank(cols, rows)
}

func (k KittyRenderer) id() int {
	if k.ImageID <= 0 {
		return 42
	}
	return k.ImageID
}

// encodeKitty encodes img as PNG and wraps it in Kitty graphics escapes
// sized in cells, chunked as the protocol requires.
func encodeKitty(img image.Image, imageID, cols, rows int) (string, error) {
	if img == nil {
		return "", fmt.Errorf("nil image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode PNG: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())

	var result strings.Builder

	// Drop the previous frame first
	result.WriteString(fmt.Sprintf("\033_Ga=d,d=I,i=%d\033\\", imageID))

	if len(encoded) <= kittyChunkSize {
		result.WriteString(fmt.Sprintf("\033_Ga=T,f=100,t=d,i=%d,c=%d,r=%d,C=1;%s\033\\", imageID, cols, rows, encoded))
		return result.String(), nil
	}

	for i := 0; i < len(encoded); i += kittyChunkSize {
		end := min(i+kittyChunkSize, len(encoded))
		chunk := encoded[i:end]

		switch {
		case i == 0:
			result.WriteString(fmt.Sprintf("\033_Ga=T,f=100,t=d,i=%d,c=%d,r=%d,C=1,m=1;%s\033\\", imageID, cols, rows, chunk))
		case end == len(encoded):
			result.WriteString(fmt.Sprintf("\033_Gm=0;%s\033\\", chunk))
		default:
			result.WriteString(fmt.Sprintf("\033_Gm=1;%s\033\\", chunk))
		}
	}

	return result.String(), nil
}

// SupportsKittyGraphics checks the environment for a terminal known to
// implement the Kitty graphics protocol.
func SupportsKittyGraphics() bool {
	term := os.Getenv("TERM")
	termProgram := os.Getenv("TERM_PROGRAM")

	if strings.Contains(term, "kitty") || strings.Contains(term, "konsole") {
		return true
	}

	if termProgram == "ghostty" || termProgram == "WezTerm" {
		return true
	}

	return false
}

// Render modes accepted by DetectRenderer.
const (
	RenderAuto   = "auto"
	RenderBlocks = "blocks"
	RenderKitty  = "kitty"
)

// DetectRenderer returns the renderer for mode. Auto picks Kitty graphics
// when the terminal supports them and half blocks otherwise.
func DetectRenderer(mode string, cellWidth, cellHeight int) Renderer {
	switch strings.ToLower(mode) {
	case RenderKitty:
		return KittyRenderer{CellWidth: cellWidth, CellHeight: cellHeight}
	case RenderBlocks:
		return BlockRenderer{Profile: termenv.ColorProfile()}
	}
	if SupportsKittyGraphics() {
		return KittyRenderer{CellWidth: cellWidth, CellHeight: cellHeight}
	}
	return BlockRenderer{Profile: termenv.ColorProfile()}
}
