package capturer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"strings"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxCodeLines = 25

// CardRenderer draws branded PNG cards at video resolution.
type CardRenderer struct {
	width, height int
	background    color.RGBA
	panel         color.RGBA
	text          color.RGBA
	muted         color.RGBA
	regular       *opentype.Font
	bold          *opentype.Font
	mono          *opentype.Font
}

// NewCardRenderer parses the bundled Go fonts. brand is a #rrggbb color.
func NewCardRenderer(width, height int, brand string) (*CardRenderer, error) {
	bg, err := parseHexColor(brand)
	if err != nil {
		return nil, err
	}
	r := &CardRenderer{
		width:      width,
		height:     height,
		background: bg,
		panel:      shade(bg, 0.6),
		text:       color.RGBA{248, 250, 252, 255},
		muted:      color.RGBA{148, 163, 184, 255},
	}
	for _, f := range []struct {
		dst **opentype.Font
		ttf []byte
	}{{&r.regular, goregular.TTF}, {&r.bold, gobold.TTF}, {&r.mono, gomono.TTF}} {
		parsed, err := opentype.Parse(f.ttf)
		if err != nil {
			return nil, fmt.Errorf("parse font: %w", err)
		}
		*f.dst = parsed
	}
	return r, nil
}

// Title renders a heading with an optional caption.
func (r *CardRenderer) Title(path, heading, caption string) error {
	img := r.canvas()
	size := 110.0
	switch n := len([]rune(heading)); {
	case n > 100:
		size = 60
	case n > 50:
		size = 80
	}
	head, err := r.face(r.bold, size)
	if err != nil {
		return err
	}
	defer head.Close()
	lines := wrapPixels(head, titleCase(heading), r.width*8/10)
	lineHeight := head.Metrics().Height.Ceil() + 16
	block := len(lines) * lineHeight

	var capLines []string
	var capFace font.Face
	if caption = strings.TrimSpace(caption); caption != "" {
		capFace, err = r.face(r.regular, 44)
		if err != nil {
			return err
		}
		defer capFace.Close()
		capLines = wrapPixels(capFace, caption, r.width*7/10)
		if len(capLines) > 3 {
			capLines = capLines[:3]
		}
		block += 40 + len(capLines)*(capFace.Metrics().Height.Ceil()+8)
	}

	y := (r.height-block)/2 + head.Metrics().Ascent.Ceil()
	for _, line := range lines {
		r.centered(img, head, r.text, line, y)
		y += lineHeight
	}
	if capFace != nil {
		y += 40 - 16
		for _, line := range capLines {
			r.centered(img, capFace, r.muted, line, y)
			y += capFace.Metrics().Height.Ceil() + 8
		}
	}
	return savePNG(path, img)
}

// Code renders a monospace snippet on a dark panel.
func (r *CardRenderer) Code(path, heading, code string) error {
	img := r.canvas()
	margin := r.width / 20
	draw.Draw(img, image.Rect(margin, margin, r.width-margin, r.height-margin), image.NewUniform(r.panel), image.Point{}, draw.Src)

	y := margin * 2
	if heading = strings.TrimSpace(heading); heading != "" {
		head, err := r.face(r.bold, 40)
		if err != nil {
			return err
		}
		r.drawString(img, head, r.muted, heading, margin*2, y)
		y += head.Metrics().Height.Ceil() + 24
		head.Close()
	}
	mono, err := r.face(r.mono, 34)
	if err != nil {
		return err
	}
	defer mono.Close()
	lineHeight := mono.Metrics().Height.Ceil() + 6
	lines := strings.Split(strings.ReplaceAll(code, "\t", "    "), "\n")
	if len(lines) > maxCodeLines {
		lines = lines[:maxCodeLines]
	}
	for _, line := range lines {
		if y > r.height-margin*2 {
			break
		}
		r.drawString(img, mono, r.text, line, margin*2, y+mono.Metrics().Ascent.Ceil())
		y += lineHeight
	}
	return savePNG(path, img)
}

// Diagram renders up to six labelled steps joined by arrows.
func (r *CardRenderer) Diagram(path, heading string, steps []string) error {
	img := r.canvas()
	if len(steps) > 6 {
		steps = steps[:6]
	}
	if heading = strings.TrimSpace(heading); heading != "" {
		head, err := r.face(r.bold, 64)
		if err != nil {
			return err
		}
		r.centered(img, head, r.text, titleCase(heading), r.height/5)
		head.Close()
	}
	if len(steps) == 0 {
		return savePNG(path, img)
	}
	label, err := r.face(r.regular, 36)
	if err != nil {
		return err
	}
	defer label.Close()

	gap := r.width / 24
	boxW := (r.width - gap*(len(steps)+1)) / len(steps)
	boxH := r.height / 4
	top := (r.height - boxH) / 2
	for i, step := range steps {
		x0 := gap + i*(boxW+gap)
		draw.Draw(img, image.Rect(x0, top, x0+boxW, top+boxH), image.NewUniform(r.panel), image.Point{}, draw.Src)
		lines := wrapPixels(label, strings.TrimSpace(step), boxW-24)
		if len(lines) > 3 {
			lines = lines[:3]
		}
		lh := label.Metrics().Height.Ceil()
		y := top + (boxH-len(lines)*lh)/2 + label.Metrics().Ascent.Ceil()
		for _, line := range lines {
			w := font.MeasureString(label, line).Ceil()
			r.drawString(img, label, r.text, line, x0+(boxW-w)/2, y)
			y += lh
		}
		if i < len(steps)-1 {
			midY := top + boxH/2
			draw.Draw(img, image.Rect(x0+boxW+gap/6, midY-3, x0+boxW+gap*5/6, midY+3), image.NewUniform(r.muted), image.Point{}, draw.Src)
		}
	}
	return savePNG(path, img)
}

// Outro renders the call to action, the project URL and a QR code for it.
func (r *CardRenderer) Outro(path, callToAction, projectURL string) error {
	img := r.canvas()
	head, err := r.face(r.bold, 90)
	if err != nil {
		return err
	}
	defer head.Close()

	qrSize := 0
	if projectURL != "" {
		qr, err := qrcode.New(projectURL, qrcode.Medium)
		if err != nil {
			return fmt.Errorf("encode qr code: %w", err)
		}
		qrSize = r.height / 3
		qrImg := qr.Image(qrSize)
		at := image.Pt((r.width-qrSize)/2, r.height/2)
		draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(qrSize, qrSize))}, qrImg, image.Point{}, draw.Src)
	}

	lines := wrapPixels(head, callToAction, r.width*8/10)
	if len(lines) > 2 {
		lines = lines[:2]
	}
	lh := head.Metrics().Height.Ceil() + 12
	y := r.height/2 - len(lines)*lh - 40 + head.Metrics().Ascent.Ceil()
	if qrSize == 0 {
		y = (r.height-len(lines)*lh)/2 + head.Metrics().Ascent.Ceil()
	}
	for _, line := range lines {
		r.centered(img, head, r.text, line, y)
		y += lh
	}
	if projectURL != "" {
		small, err := r.face(r.regular, 40)
		if err != nil {
			return err
		}
		defer small.Close()
		r.centered(img, small, r.muted, projectURL, r.height/2+qrSize+60)
	}
	return savePNG(path, img)
}

func (r *CardRenderer) canvas() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
	return img
}

func (r *CardRenderer) face(f *opentype.Font, size float64) (font.Face, error) {
	// Sizes are tuned for 1080p; scale with the canvas height.
	size = size * float64(r.height) / 1080
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("build font face: %w", err)
	}
	return face, nil
}

func (r *CardRenderer) centered(dst draw.Image, face font.Face, c color.Color, text string, baseline int) {
	w := font.MeasureString(face, text).Ceil()
	r.drawString(dst, face, c, text, (r.width-w)/2, baseline)
}

func (r *CardRenderer) drawString(dst draw.Image, face font.Face, c color.Color, text string, x, baseline int) {
	d := font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: face, Dot: fixed.P(x, baseline)}
	d.DrawString(text)
}

// wrapPixels greedily wraps text so each line fits maxWidth pixels.
func wrapPixels(face font.Face, text string, maxWidth int) []string {
	var lines []string
	var current string
	for _, word := range strings.Fields(text) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if current != "" && font.MeasureString(face, candidate).Ceil() > maxWidth {
			lines = append(lines, current)
			current = word
			continue
		}
		current = candidate
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// titleCase capitalizes short all-lowercase headings and leaves anything
// with deliberate casing alone.
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s != strings.ToLower(s) || len(strings.Fields(s)) > 8 {
		return s
	}
	return cases.Title(language.English).String(s)
}

func parseHexColor(s string) (color.RGBA, error) {
	var c color.RGBA
	c.A = 255
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return c, fmt.Errorf("brand color %q must be #rrggbb", s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("brand color %q: %w", s, err)
	}
	return c, nil
}

func shade(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{uint8(float64(c.R) * factor), uint8(float64(c.G) * factor), uint8(float64(c.B) * factor), 255}
}

func savePNG(path string, img image.Image) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode card: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close card: %w", err)
	}
	return os.Rename(tmp, path)
}
