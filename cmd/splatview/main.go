// Command splatview is a headless preview harness for the splat
// rasterisation pipeline: it loads a splat buffer from a binary file,
// renders one frame from a fixed look-at camera, and writes the result
// as a PNG. It is explicitly outside the core library's scope, kept as a
// thin caller for manual inspection and bug reports.
package main

import (
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"math"
	"os"

	"golang.org/x/image/draw"

	"github.com/gogpu/gg"

	splat "github.com/ath92/splat-renderer"
)

func main() {
	var (
		splatsPath = flag.String("splats", "", "path to a binary splat buffer (required)")
		outPath    = flag.String("out", "splatview_output.png", "output PNG path")
		width      = flag.Int("width", 512, "render width in pixels")
		height     = flag.Int("height", 512, "render height in pixels")
		scale      = flag.Int("scale", 1, "integer upscale factor applied to the output image")
		eyeX       = flag.Float64("eye-x", 0, "camera eye X")
		eyeY       = flag.Float64("eye-y", 0, "camera eye Y")
		eyeZ       = flag.Float64("eye-z", 3, "camera eye Z")
		targetX    = flag.Float64("target-x", 0, "camera look-at target X")
		targetY    = flag.Float64("target-y", 0, "camera look-at target Y")
		targetZ    = flag.Float64("target-z", 0, "camera look-at target Z")
		fovDeg     = flag.Float64("fov", 60, "vertical field of view in degrees")
		verbose    = flag.Bool("v", false, "log pipeline activity to stderr")
	)
	flag.Parse()

	if *splatsPath == "" {
		fmt.Fprintln(os.Stderr, "splatview: -splats is required")
		flag.Usage()
		os.Exit(2)
	}
	if *scale < 1 {
		log.Fatalf("splatview: -scale must be >= 1, got %d", *scale)
	}

	if *verbose {
		splat.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	splats, err := loadSplats(*splatsPath)
	if err != nil {
		log.Fatalf("splatview: %v", err)
	}

	renderer, err := splat.NewRenderer(splat.DefaultConfig(), *width, *height)
	if err != nil {
		log.Fatalf("splatview: create renderer: %v", err)
	}
	defer renderer.Close()

	eye := vec3{float32(*eyeX), float32(*eyeY), float32(*eyeZ)}
	target := vec3{float32(*targetX), float32(*targetY), float32(*targetZ)}
	aspect := float32(*width) / float32(*height)
	fovY := float32(*fovDeg * math.Pi / 180)

	viewProj := lookAtPerspective(eye, target, vec3{0, 1, 0}, fovY, aspect, 0.01, 100)
	cam := splat.Camera{ViewProj: viewProj, Position: eye}

	img, err := renderer.Frame(splats, cam)
	if err != nil {
		log.Fatalf("splatview: render frame: %v", err)
	}

	if err := savePNG(*outPath, img, *scale); err != nil {
		log.Fatalf("splatview: save PNG: %v", err)
	}

	fmt.Printf("splatview: rendered %d splats into %dx%d, wrote %s\n", len(splats), img.Width, img.Height, *outPath)
}

// savePNG converts a splat.Image into a gg.Pixmap (reusing its
// image.Image/draw.Image adapter and SavePNG), optionally upscaling with
// golang.org/x/image/draw first.
func savePNG(path string, img splat.Image, scale int) error {
	src := &image.RGBA{
		Pix:    img.Pixels,
		Stride: img.Width * 4,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}

	if scale == 1 {
		return gg.FromImage(src).SavePNG(path)
	}

	dst := gg.NewPixmap(img.Width*scale, img.Height*scale)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst.SavePNG(path)
}
