package rankcard

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
	"time"

	"guildkeeper/internal/leveling"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	width  = 1100
	height = 380

	defaultAccent = "#5865F2"
	maxNameRunes  = 15
)

// ProgressInfo is the XP position of a user inside their current level.
type ProgressInfo struct {
	LevelStartXP int64
	NextLevelXP  int64
	IntoLevel    int64
	LevelSpan    int64
	Remaining    int64
	Percent      float64
}

// Progress places xp between the requirement of level and of level+1. Level 1
// starts at zero XP rather than at RequiredXP(1).
func Progress(xp int64, level int, calc leveling.Calculator) ProgressInfo {
	if level < 1 {
		level = 1
	}
	var start int64
	if level > 1 {
		start = calc.RequiredXP(level)
	}
	next := calc.RequiredXP(level + 1)

	info := ProgressInfo{
		LevelStartXP: start,
		NextLevelXP:  next,
		IntoLevel:    xp - start,
		LevelSpan:    next - start,
		Remaining:    next - xp,
	}
	if info.Remaining < 0 {
		info.Remaining = 0
	}
	if info.LevelSpan > 0 {
		info.Percent = float64(info.IntoLevel) / float64(info.LevelSpan) * 100
	}
	if info.Percent < 0 {
		info.Percent = 0
	}
	if info.Percent > 100 {
		info.Percent = 100
	}
	return info
}

// Card holds everything drawn on a rank card.
type Card struct {
	Username     string
	Level        int
	XP           int64
	Rank         int
	Prestige     int
	PrestigeName string
	AccentColor  string
	Avatar       image.Image
	Progress     ProgressInfo
}

type Renderer struct {
	logger *zap.Logger
}

func NewRenderer(logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{logger: logger}
}

// Render draws the card and encodes it as PNG.
func (r *Renderer) Render(card Card) ([]byte, error) {
	start := time.Now()
	defer func() {
		r.logger.Debug("rank card rendered", zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	}()

	accent := ParseHexColor(card.AccentColor, ParseHexColor(defaultAccent, color.RGBA{0x58, 0x65, 0xF2, 0xFF}))

	dc := gg.NewContext(width, height)

	dc.SetHexColor("#2C2F33")
	dc.DrawRoundedRectangle(0, 0, width, height, 20)
	dc.Fill()

	shade := gg.NewLinearGradient(0, 0, width, height)
	shade.AddColorStop(0, color.RGBA{0, 0, 0, 0})
	shade.AddColorStop(1, color.RGBA{0, 0, 0, 51})
	dc.SetFillStyle(shade)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	dc.SetHexColor("#1E2124")
	dc.DrawRectangle(0, 0, 15, height)
	dc.Fill()
	dc.SetColor(accent)
	dc.DrawRectangle(15, 0, 10, height)
	dc.Fill()

	dc.Push()
	dc.SetColor(withAlpha(accent, 51))
	dc.MoveTo(width, 0)
	dc.LineTo(width-250, 0)
	dc.LineTo(width, 150)
	dc.ClosePath()
	dc.Fill()
	dc.Pop()

	r.drawAvatar(dc, card.Avatar, accent)

	bold48, err := loadFont(gobold.TTF, 48)
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	bold26, _ := loadFont(gobold.TTF, 26)
	bold30, _ := loadFont(gobold.TTF, 30)
	bold16, _ := loadFont(gobold.TTF, 16)
	bold24, _ := loadFont(gobold.TTF, 24)
	regular24, _ := loadFont(goregular.TTF, 24)
	regular20, _ := loadFont(goregular.TTF, 20)

	dc.SetFontFace(bold48)
	dc.SetRGB(1, 1, 1)
	drawSharpText(dc, truncate(card.Username, maxNameRunes), 350, 130)

	if card.Prestige > 0 && card.PrestigeName != "" {
		label := "★ " + card.PrestigeName + " Prestige"
		dc.SetFontFace(bold26)
		w, _ := dc.MeasureString(label)
		dc.SetRGBA(0, 0, 0, 0.3)
		dc.DrawRoundedRectangle(350, 150, w+20, 35, 10)
		dc.Fill()
		dc.SetColor(accent)
		dc.DrawString(label, 360, 175)
	}

	const levelX, levelY, levelRadius = 800.0, 125.0, 45.0
	dc.DrawCircle(levelX, levelY, levelRadius)
	dc.SetRGBA(0, 0, 0, 0.3)
	dc.FillPreserve()
	dc.SetColor(accent)
	dc.SetLineWidth(5)
	dc.Stroke()

	dc.SetRGB(1, 1, 1)
	dc.SetFontFace(bold16)
	dc.DrawStringAnchored("LEVEL", levelX, levelY-20, 0.5, 0.5)
	dc.SetFontFace(bold30)
	dc.DrawStringAnchored(strconv.Itoa(card.Level), levelX, levelY+10, 0.5, 0.5)

	if card.Rank > 0 {
		dc.SetFontFace(bold24)
		dc.SetHexColor("#B9BBBE")
		dc.DrawStringAnchored("RANK #"+strconv.Itoa(card.Rank), 970, 125, 0.5, 0.5)
	}

	dc.SetFontFace(regular24)
	dc.SetHexColor("#B9BBBE")
	dc.DrawString("XP:", 350, 235)
	dc.SetFontFace(bold24)
	dc.SetRGB(1, 1, 1)
	dc.DrawString(FormatNumber(card.XP)+" / "+FormatNumber(card.Progress.NextLevelXP), 400, 235)

	dc.SetFontFace(regular20)
	dc.SetHexColor("#B9BBBE")
	dc.DrawString(FormatNumber(card.Progress.Remaining)+" XP needed for next level", 350, 270)

	const barX, barY, barW, barH = 350.0, 290.0, 730.0, 30.0
	dc.SetHexColor("#40444B")
	dc.DrawRoundedRectangle(barX, barY, barW, barH, barH/2)
	dc.Fill()
	if card.Progress.Percent > 0 {
		filled := barW * card.Progress.Percent / 100
		if filled < barH {
			filled = barH
		}
		dc.SetColor(accent)
		dc.DrawRoundedRectangle(barX, barY, filled, barH, barH/2)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawAvatar(dc *gg.Context, avatar image.Image, accent color.Color) {
	const size = 200.0
	const x, y = 100.0, 90.0
	cx, cy := x+size/2, y+size/2

	dc.SetHexColor("#1E2124")
	dc.DrawCircle(cx, cy, size/2+10)
	dc.Fill()

	if avatar != nil {
		scaled := scaleTo(avatar, int(size))
		dc.Push()
		dc.DrawCircle(cx, cy, size/2)
		dc.Clip()
		dc.DrawImage(scaled, int(x), int(y))
		dc.ResetClip()
		dc.Pop()
	}

	dc.SetColor(accent)
	dc.SetLineWidth(8)
	dc.DrawCircle(cx, cy, size/2+4)
	dc.Stroke()
}

// scaleTo resizes img to a size x size square using gg's transform.
func scaleTo(img image.Image, size int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == size && bounds.Dy() == size {
		return img
	}
	dc := gg.NewContext(size, size)
	dc.Scale(float64(size)/float64(bounds.Dx()), float64(size)/float64(bounds.Dy()))
	dc.DrawImage(img, -bounds.Min.X, -bounds.Min.Y)
	return dc.Image()
}

// ParseHexColor parses #RRGGBB, returning fallback for anything else.
func ParseHexColor(hex string, fallback color.Color) color.Color {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return fallback
	}
	value, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(value >> 16), G: uint8(value >> 8), B: uint8(value), A: 0xFF}
}

// FormatNumber groups digits with commas, e.g. 12,345.
func FormatNumber(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + b.String()
}

func truncate(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max]) + "..."
}

func withAlpha(c color.Color, alpha uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}

func drawSharpText(dc *gg.Context, text string, x, y float64) {
	dc.Push()
	dc.SetRGBA(0, 0, 0, 0.4)
	dc.DrawString(text, x+2, y+2)
	dc.Pop()
	dc.DrawString(text, x, y)
}

func loadFont(fontData []byte, size float64) (font.Face, error) {
	f, err := truetype.Parse(fontData)
	if err != nil {
		return nil, err
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:       size,
		DPI:        72,
		Hinting:    font.HintingFull,
		SubPixelsX: 4,
		SubPixelsY: 4,
	}), nil
}
