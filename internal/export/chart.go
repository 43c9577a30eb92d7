package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/fluorscan/nmr-engine/internal/analysis"
)

const (
	chartDPI        = 96.0
	defaultFontSize = 12.0
	defaultWidth    = 900
	defaultHeight   = 420
	tickMarkHeight  = 5
	pixelsPerLabel  = 110.0

	defaultTopBorder    = 30
	defaultLeftBorder   = 60
	defaultBottomBorder = 60
	defaultRightBorder  = 30

	defaultTopPeaks = 3
)

var (
	traceColor  = color.RGBA{R: 0x1f, G: 0x4e, B: 0x9c, A: 0xff}
	markerColor = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}
	axisColor   = color.Black
)

// ChartBorders defines the white space around the plot area.
type ChartBorders struct {
	Top    int
	Left   int
	Bottom int // Space for the ppm scale and info bar
	Right  int
}

// ChartConfig holds configuration for spectrum chart rendering.
type ChartConfig struct {
	Width    int    // Plot area width in pixels
	Height   int    // Plot area height in pixels
	FontPath string // TTF file for labels; empty renders without text
	FontSize float64
	TopPeaks int // Number of peaks to mark, by descending intensity
	Borders  ChartBorders
}

// ChartRenderer draws an analyzed spectrum as an annotated trace plot.
// The chemical shift axis follows NMR convention: ppm decreases from left
// to right.
type ChartRenderer struct {
	config   ChartConfig
	font     *truetype.Font
	fontFace font.Face
}

// NewChartRenderer creates a renderer, loading the label font when one is
// configured.
func NewChartRenderer(config ChartConfig) (*ChartRenderer, error) {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.TopPeaks == 0 {
		config.TopPeaks = defaultTopPeaks
	}
	if config.Borders.Top == 0 {
		config.Borders.Top = defaultTopBorder
	}
	if config.Borders.Left == 0 {
		config.Borders.Left = defaultLeftBorder
	}
	if config.Borders.Bottom == 0 {
		config.Borders.Bottom = defaultBottomBorder
	}
	if config.Borders.Right == 0 {
		config.Borders.Right = defaultRightBorder
	}

	r := ChartRenderer{config: config}
	if config.FontPath != "" {
		fontBytes, err := os.ReadFile(config.FontPath)
		if err != nil {
			return nil, fmt.Errorf("reading font file: %w", err)
		}
		parsedFont, err := freetype.ParseFont(fontBytes)
		if err != nil {
			return nil, fmt.Errorf("parsing font: %w", err)
		}
		r.font = parsedFont
		r.fontFace = truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     chartDPI,
			Hinting: font.HintingNone,
		})
	}

	return &r, nil
}

// Close releases the font face resources.
func (r *ChartRenderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Render draws the spectrum trace with axis ticks, top-peak markers and an
// info bar. Text annotations are skipped when no font is configured.
func (r *ChartRenderer) Render(result *analysis.Result) (*image.RGBA, error) {
	if result.Spectrum == nil || result.Spectrum.Len() < 2 {
		return nil, fmt.Errorf("result for %q carries no spectrum to plot", result.Filename)
	}

	fullWidth := r.config.Width + r.config.Borders.Left + r.config.Borders.Right
	fullHeight := r.config.Height + r.config.Borders.Top + r.config.Borders.Bottom
	img := image.NewRGBA(image.Rect(0, 0, fullWidth, fullHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r.drawTrace(img, result)
	r.drawAxis(img, result)
	r.drawPeakMarkers(img, result)

	if r.font != nil {
		if err := r.annotate(img, result); err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	return img, nil
}

// xFor maps a chemical shift to a pixel column. High ppm sits on the left.
func (r *ChartRenderer) xFor(ppm, minPPM, maxPPM float64) int {
	ratio := (maxPPM - ppm) / (maxPPM - minPPM)
	return r.config.Borders.Left + int(ratio*float64(r.config.Width-1))
}

func (r *ChartRenderer) yFor(intensity, maxIntensity float64) int {
	bottom := r.config.Borders.Top + r.config.Height - 1
	if maxIntensity <= 0 {
		return bottom
	}
	ratio := intensity / maxIntensity
	if ratio < 0 {
		ratio = 0
	}
	return bottom - int(ratio*float64(r.config.Height-1))
}

func maxIntensity(result *analysis.Result) float64 {
	var maxI float64
	for _, p := range result.Spectrum.Points {
		if p.Intensity > maxI {
			maxI = p.Intensity
		}
	}
	return maxI
}

func (r *ChartRenderer) drawTrace(img *image.RGBA, result *analysis.Result) {
	spec := result.Spectrum
	minPPM, maxPPM := spec.MinPPM(), spec.MaxPPM()
	maxI := maxIntensity(result)

	prevX := r.xFor(spec.Points[0].PPM, minPPM, maxPPM)
	prevY := r.yFor(spec.Points[0].Intensity, maxI)
	for _, p := range spec.Points[1:] {
		x := r.xFor(p.PPM, minPPM, maxPPM)
		y := r.yFor(p.Intensity, maxI)
		drawLine(img, prevX, prevY, x, y, traceColor)
		prevX, prevY = x, y
	}
}

func (r *ChartRenderer) drawAxis(img *image.RGBA, result *analysis.Result) {
	spec := result.Spectrum
	minPPM, maxPPM := spec.MinPPM(), spec.MaxPPM()
	axisY := r.config.Borders.Top + r.config.Height

	for x := r.config.Borders.Left; x < r.config.Borders.Left+r.config.Width; x++ {
		img.Set(x, axisY, axisColor)
	}

	step := niceStep(maxPPM-minPPM, r.config.Width)
	start := math.Ceil(minPPM/step) * step
	for ppm := start; ppm <= maxPPM; ppm += step {
		x := r.xFor(ppm, minPPM, maxPPM)
		for y := axisY; y < axisY+tickMarkHeight; y++ {
			img.Set(x, y, axisColor)
		}
	}
}

func (r *ChartRenderer) drawPeakMarkers(img *image.RGBA, result *analysis.Result) {
	spec := result.Spectrum
	minPPM, maxPPM := spec.MinPPM(), spec.MaxPPM()
	maxI := maxIntensity(result)

	for _, p := range analysis.TopByIntensity(result.Peaks, r.config.TopPeaks) {
		x := r.xFor(p.PPM, minPPM, maxPPM)
		y := r.yFor(p.Intensity, maxI)
		// Short vertical marker above the apex.
		for dy := 4; dy <= 12; dy++ {
			if y-dy >= r.config.Borders.Top {
				img.Set(x, y-dy, markerColor)
			}
		}
	}
}

func (r *ChartRenderer) annotate(img *image.RGBA, result *analysis.Result) error {
	ctx := freetype.NewContext()
	ctx.SetDPI(chartDPI)
	ctx.SetFont(r.font)
	ctx.SetFontSize(r.config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	spec := result.Spectrum
	minPPM, maxPPM := spec.MinPPM(), spec.MaxPPM()
	axisY := r.config.Borders.Top + r.config.Height

	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	labelY := axisY + tickMarkHeight + fontHeight

	step := niceStep(maxPPM-minPPM, r.config.Width)
	start := math.Ceil(minPPM/step) * step
	for ppm := start; ppm <= maxPPM; ppm += step {
		label := fmt.Sprintf("%.0f", ppm)
		if step < 1 {
			label = fmt.Sprintf("%.1f", ppm)
		}
		width := font.MeasureString(r.fontFace, label)
		x := r.xFor(ppm, minPPM, maxPPM)
		if _, err := ctx.DrawString(label, freetype.Pt(x-width.Round()/2, labelY)); err != nil {
			return fmt.Errorf("drawing ppm label: %w", err)
		}
	}

	info := fmt.Sprintf("Sample: %s; Peaks: %d; Integral: %s; SNR: %.1f; Quality: %.1f/10",
		result.SampleName,
		len(result.Peaks),
		humanize.SIWithDigits(result.Analysis.TotalIntegral, 1, ""),
		result.Analysis.SignalToNoise,
		result.QualityScore)

	infoY := img.Bounds().Max.Y - (r.config.Borders.Bottom-tickMarkHeight-2*fontHeight)/2 - metrics.Descent.Round()
	if _, err := ctx.DrawString(info, freetype.Pt(r.config.Borders.Left, infoY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// niceStep picks a round ppm label interval targeting one label per
// pixelsPerLabel pixels.
func niceStep(span float64, width int) float64 {
	steps := []float64{0.1, 0.2, 0.5, 1, 2, 5, 10, 20, 50, 100}

	desired := float64(width) / pixelsPerLabel
	target := span / desired

	for _, step := range steps {
		if step >= target && span/step >= 2 {
			return step
		}
	}
	return span / 2
}

// drawLine draws a straight segment between two points.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}

	err := dx + dy
	for {
		img.Set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// EncodePNG serializes a rendered chart.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}
