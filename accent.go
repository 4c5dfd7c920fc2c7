package main

import (
	"image"
	"sort"

	"github.com/EdlinOrg/prominentcolor"
	tea "github.com/charmbracelet/bubbletea"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// accentMsg carries the dominant colour computed for one image.
type accentMsg struct {
	ref   string
	color string
}

// accentCmd extracts the dominant colour of img off the UI goroutine.
func accentCmd(ref string, img image.Image) tea.Cmd {
	return func() tea.Msg {
		c, err := extractDominantColor(img)
		if err != nil {
			return accentMsg{ref: ref}
		}
		return accentMsg{ref: ref, color: c}
	}
}

// extractDominantColor finds a vibrant, reasonably light colour suitable
// as an accent on dark backgrounds, falling back to k-means clustering.
func extractDominantColor(img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("nil image")
	}

	// large images are sampled on a thumbnail
	if b := img.Bounds(); b.Dx() > 200 || b.Dy() > 200 {
		img = resize.Thumbnail(200, 200, img, resize.NearestNeighbor)
	}

	bounds := img.Bounds()
	counts := make(map[colorful.Color]int)
	const sampleRate = 5

	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleRate {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleRate {
			if _, _, _, a := img.At(x, y).RGBA(); a < 0x8000 {
				continue
			}
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			counts[c]++
		}
	}

	type candidate struct {
		hex   string
		score float64
	}
	var candidates []candidate

	for c, count := range counts {
		_, saturation, lightness := c.Hsl()

		// too dark, washed out or grey
		if lightness < 0.3 || lightness > 0.85 || saturation < 0.25 {
			continue
		}

		lightnessScore := lightness
		if lightness > 0.7 {
			lightnessScore = 0.7 - (lightness - 0.7)
		}
		score := saturation*2.5 + lightnessScore*1.5 + float64(count)/1000.0
		candidates = append(candidates, candidate{hex: c.Clamped().Hex(), score: score})
	}

	if len(candidates) == 0 {
		colors, err := prominentcolor.Kmeans(img)
		if err != nil || len(colors) == 0 {
			return "", errors.New("no suitable colors found")
		}
		return "#" + colors[0].AsString(), nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].hex < candidates[j].hex
	})
	return candidates[0].hex, nil
}
