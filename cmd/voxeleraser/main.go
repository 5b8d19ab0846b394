package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"voxeleraser/internal/models"
	"voxeleraser/pkg/config"
	"voxeleraser/pkg/eraser"
	"voxeleraser/pkg/maskio"
	"voxeleraser/pkg/tiling"
	"voxeleraser/pkg/transfer"
	"voxeleraser/pkg/visualization"
	"voxeleraser/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "voxeleraser.yaml", "YAML configuration file")
	inputPath := flag.String("input", "", "Directory of slice images or raw volume file (overrides config)")
	phantomSize := flag.Int("phantom", 0, "Size of the synthetic sphere volume when no input is given (overrides config)")
	outputDir := flag.String("out", ".", "Directory for slices and the mask snapshot")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	verbose := flag.Bool("verbose", false, "Log eraser targets and normals")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *inputPath != "" {
		cfg.Volume.Input = *inputPath
	}
	if *phantomSize > 0 {
		cfg.Volume.PhantomSize = *phantomSize
	}
	if *verbose {
		cfg.Output.Verbose = true
	}

	fmt.Println("================================")
	fmt.Println("VOXEL ERASER")
	fmt.Println("================================")

	// Step 1: Load the volume
	fmt.Println("Step 1: Loading volume...")
	vol, err := loadVolume(cfg)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	fmt.Printf("Loaded %dx%dx%d volume (%d channel(s))\n", vol.Width, vol.Height, vol.Depth, vol.Channels)

	// Step 2: Pack into the tiled texture layout
	fmt.Println("Step 2: Packing volume into tiled layout...")
	layout, err := tiling.NewLayout(vol.Width, vol.Height, vol.Depth)
	if err != nil {
		log.Fatalf("Failed to create layout: %v", err)
	}
	intensity, roi, err := pack(layout, vol)
	if err != nil {
		log.Fatalf("Failed to pack volume: %v", err)
	}
	fmt.Printf("Texture %dx%d, %d tiles per side\n", layout.XTex, layout.YTex, layout.ZDimSqrt)

	logger := log.New(io.Discard, "", 0)
	if cfg.Output.Verbose {
		logger = log.New(os.Stdout, "eraser: ", 0)
	}

	er, err := eraser.New(layout, intensity, eraser.Options{
		GaussRadius:         cfg.Normal.GaussRadius,
		Sigma:               cfg.Normal.Sigma,
		ContinuityThreshold: cfg.Eraser.ContinuityThreshold,
		UndoIterations:      cfg.Eraser.UndoIterations,
		Logger:              logger,
	})
	if err != nil {
		log.Fatalf("Failed to create eraser: %v", err)
	}

	viewer := visualization.NewViewer(layout, intensity, er.Mask(), transfer.DefaultTable())
	if roi != nil {
		colors, err := transfer.NewColorMap(nil)
		if err != nil {
			log.Fatalf("Failed to create ROI colour map: %v", err)
		}
		viewer.SetROI(roi, transfer.NewSelection(), colors)
	}

	// Step 3: Replay the scripted session
	fmt.Printf("Step 3: Replaying %d stroke(s)...\n", len(cfg.Session.Strokes))
	startTime := time.Now()
	erased := replay(er, cfg)
	restored := 0
	for i := 0; i < cfg.Session.Undo; i++ {
		restored += er.UndoLastErasing()
	}
	er.ClearDirty()
	fmt.Printf("Erased %d voxel(s), restored %d, %d undo record(s) left in %s\n",
		erased, restored, er.Records(), time.Since(startTime))

	stats := viewer.Stats()
	fmt.Printf("\nMask statistics:\n")
	fmt.Printf("=======================================\n")
	fmt.Printf("Visible voxels: %d\n", stats.Visible)
	fmt.Printf("Erased voxels: %d (%.2f%%)\n", stats.Erased, stats.ErasedFraction()*100)
	fmt.Printf("Mean visible intensity: %.2f (std %.2f)\n", stats.MeanIntensity, stats.StdDevIntensity)

	// Step 4: Write outputs
	if cfg.Output.SaveSlices {
		slicesPath := filepath.Join(*outputDir, cfg.Output.SlicesDir)
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(slicesPath, axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)

			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}
	}

	if cfg.Output.MaskSnapshot != "" {
		snapshotPath := filepath.Join(*outputDir, cfg.Output.MaskSnapshot)
		if err := writeSnapshot(snapshotPath, layout, er.Mask()); err != nil {
			log.Fatalf("Failed to write mask snapshot: %v", err)
		}
		fmt.Printf("Mask snapshot saved to: %s\n", snapshotPath)
	}
}

// loadVolume reads the configured input or builds the phantom
func loadVolume(cfg *config.Config) (*models.Volume, error) {
	in := cfg.Volume.Input
	if in == "" {
		size := cfg.Volume.PhantomSize
		return volume.Phantom(size, size, size, cfg.Volume.PhantomRadius, 200), nil
	}

	info, err := os.Stat(in)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return volume.LoadSlices(in)
	}

	d := cfg.Volume.Dims
	return volume.LoadRaw(in, d[0], d[1], d[2], cfg.Volume.Channels)
}

// pack converts the volume to tiled intensity and, for segmented volumes, ROI planes
func pack(layout tiling.Layout, vol *models.Volume) (intensity, roi []byte, err error) {
	if vol.Channels == 4 {
		return layout.PackRGBA(vol.Data)
	}
	intensity, err = layout.Pack(vol.Data)
	return intensity, nil, err
}

// replay feeds the scripted strokes to the eraser as pointer samples and
// returns the number of erased voxels
func replay(er *eraser.Eraser, cfg *config.Config) int {
	layout := er.Layout()
	total := 0

	for _, stroke := range cfg.Session.Strokes {
		normalMode := cfg.Eraser.NormalMode
		if stroke.NormalMode != nil {
			normalMode = *stroke.NormalMode
		}
		viewDir := r3.Vec{X: stroke.ViewDir[0], Y: stroke.ViewDir[1], Z: stroke.ViewDir[2]}

		for i, s := range stroke.Samples {
			pick := eraser.Pick{
				Target:   r3.Vec{X: s.X, Y: s.Y, Z: s.Z},
				ViewDir:  viewDir,
				Distance: s.Distance,
			}
			g := pick.Gesture(layout, cfg.Eraser.Radius, cfg.Eraser.Depth, cfg.Eraser.IsoThreshold, i == 0, normalMode)
			total += er.ErasePixels(g)
		}
		er.ErasePixels(eraser.Gesture{MouseUp: true})
	}
	return total
}

// writeSnapshot saves the mask to path
func writeSnapshot(path string, layout tiling.Layout, mask []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return maskio.WriteSnapshot(file, layout, mask)
}
