// Package volume loads scan volumes from slice images or raw dumps.
package volume

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"

	"voxeleraser/internal/models"
)

var sliceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// LoadSlices loads the slice images of a directory into a volume.
//
// Files are ordered by the number embedded in their names, so slice_2.png
// sorts before slice_10.png. Every slice must have the same dimensions; colour
// images are reduced to luminance.
func LoadSlices(dir string) (*models.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if sliceExtensions[ext] {
			imageFiles = append(imageFiles, entry.Name())
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	sort.SliceStable(imageFiles, func(i, j int) bool {
		return extractNumber(imageFiles[i]) < extractNumber(imageFiles[j])
	})

	slices := make([]models.Slice, 0, len(imageFiles))
	for i, filename := range imageFiles {
		img, err := loadImage(filepath.Join(dir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}
		slices = append(slices, models.Slice{Image: img, Index: i, Filename: filename})
	}

	return stack(slices)
}

// stack converts ordered slices into a single-channel volume. Dimensions come
// from the first slice.
func stack(slices []models.Slice) (*models.Volume, error) {
	first := slices[0].Image.Bounds()
	vol := &models.Volume{
		Channels: 1,
		Width:    first.Dx(),
		Height:   first.Dy(),
		Depth:    len(slices),
	}
	vol.VoxelSize.X, vol.VoxelSize.Y, vol.VoxelSize.Z = 1, 1, 1

	plane := vol.Width * vol.Height
	vol.Data = make([]byte, plane*vol.Depth)
	for _, s := range slices {
		bounds := s.Image.Bounds()
		if bounds.Dx() != vol.Width || bounds.Dy() != vol.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d",
				s.Filename, bounds.Dx(), bounds.Dy(), vol.Width, vol.Height)
		}
		sliceToBytes(s.Image, vol.Data[s.Index*plane:(s.Index+1)*plane])
	}

	return vol, nil
}

// LoadRaw reads a headerless volume dump with the given dimensions and
// bytes per voxel (1 or 4).
func LoadRaw(path string, width, height, depth, channels int) (*models.Volume, error) {
	if channels != 1 && channels != 4 {
		return nil, fmt.Errorf("unsupported channel count %d", channels)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	want := width * height * depth * channels
	if len(data) != want {
		return nil, fmt.Errorf("raw volume %s has %d bytes, expected %d", path, len(data), want)
	}

	vol := &models.Volume{
		Data:     data,
		Channels: channels,
		Width:    width,
		Height:   height,
		Depth:    depth,
	}
	vol.VoxelSize.X, vol.VoxelSize.Y, vol.VoxelSize.Z = 1, 1, 1
	return vol, nil
}

// Phantom builds a synthetic sphere of the given radius and intensity
// centred in a width×height×depth volume.
func Phantom(width, height, depth int, radius float64, value byte) *models.Volume {
	vol := &models.Volume{
		Data:     make([]byte, width*height*depth),
		Channels: 1,
		Width:    width,
		Height:   height,
		Depth:    depth,
	}
	vol.VoxelSize.X, vol.VoxelSize.Y, vol.VoxelSize.Z = 1, 1, 1

	cx := float64(width-1) / 2
	cy := float64(height-1) / 2
	cz := float64(depth-1) / 2
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dx := float64(x) - cx
				dy := float64(y) - cy
				dz := float64(z) - cz
				if math.Sqrt(dx*dx+dy*dy+dz*dz) <= radius {
					vol.Data[z*width*height+y*width+x] = value
				}
			}
		}
	}
	return vol
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage loads an image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// sliceToBytes writes the luminance of img into dst, row by row
func sliceToBytes(img image.Image, dst []byte) {
	bounds := img.Bounds()
	width := bounds.Dx()
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < width; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			dst[y*width+x] = g.Y
		}
	}
}
