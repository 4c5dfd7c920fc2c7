package main

import (
	"image"
	"image/color"
)

// generateTestImage creates a solid test image with the specified dimensions
func generateTestImage(width, height int, fillColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// generateGradientImage creates a vertical gradient for colour extraction tests
func generateGradientImage(width, height int, startColor, endColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		ratio := float64(y) / float64(height)
		c := color.RGBA{
			R: uint8(float64(startColor.R)*(1-ratio) + float64(endColor.R)*ratio),
			G: uint8(float64(startColor.G)*(1-ratio) + float64(endColor.G)*ratio),
			B: uint8(float64(startColor.B)*(1-ratio) + float64(endColor.B)*ratio),
			A: 255,
		}
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// isValidHexColor checks for the "#rrggbb" form
func isValidHexColor(c string) bool {
	return len(c) == 7 && hexColor.MatchString(c)
}
