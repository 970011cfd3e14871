// Package board рисует PNG-расписание дня: слоты слева, брони произвольной длины справа.
package board

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/Freeeeeet/booking_bot/internal/availability"
	"github.com/Freeeeeet/booking_bot/internal/controller/formatting"
	"github.com/Freeeeeet/booking_bot/internal/model"
)

// Константы размеров и отступов
const (
	imageWidth       = 900
	headerHeight     = 90
	footerHeight     = 60
	leftLabelsWidth  = 80
	hourHeight       = 120.0
	columnPaddingX   = 10
	minItemHeight    = 14.0
	itemBorderRadius = 6.0
	shadowOffset     = 3.0
	defaultMinHour   = 10
	defaultMaxHour   = 20
)

const (
	titleFontSize     = 28.0
	columnFontSize    = 20.0
	hourLabelFontSize = 18.0
	itemFontSize      = 16.0
	legendFontSize    = 14.0
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	slotColumnColor  = color.NRGBA{240, 240, 240, 255}
	rangeColumnColor = color.NRGBA{228, 228, 228, 255}

	slotFreeColor       = color.RGBA{133, 193, 85, 220}
	slotBookedColor     = color.RGBA{255, 182, 193, 255}
	reservationColor    = color.RGBA{255, 165, 79, 230}
	itemTextColor       = color.RGBA{20, 24, 28, 230}
	slotBookedTextColor = color.RGBA{120, 40, 50, 255}
	itemShadowColor     = color.RGBA{0, 0, 0, 20}
)

type fontWeight int

const (
	weightRegular fontWeight = iota
	weightBold
)

var (
	fontsOnce   sync.Once
	parsedFonts map[fontWeight]*opentype.Font
)

// setFont выставляет шрифт Go нужного размера или basicfont, если шрифт не разобрался
func setFont(dc *gg.Context, size float64, weight fontWeight) {
	fontsOnce.Do(func() {
		parsedFonts = make(map[fontWeight]*opentype.Font, 2)
		if f, err := opentype.Parse(goregular.TTF); err == nil {
			parsedFonts[weightRegular] = f
		}
		if f, err := opentype.Parse(gobold.TTF); err == nil {
			parsedFonts[weightBold] = f
		}
	})

	f, ok := parsedFonts[weight]
	if !ok {
		dc.SetFontFace(basicfont.Face7x13)
		return
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		dc.SetFontFace(basicfont.Face7x13)
		return
	}
	dc.SetFontFace(face)
}

// hourRange содержит диапазон часов для отображения
type hourRange struct {
	start int
	end   int
}

func (h hourRange) total() int {
	return h.end - h.start
}

// item общий вид прямоугольника на доске
type item struct {
	start    int // минуты от начала дня
	duration int
	title    string
	subtitle string
	fill     color.RGBA
	text     color.RGBA
}

// Render рисует доску на дату. Элементы других дат пропускаются.
func Render(date string, slots []*model.Slot, reservations []*model.Reservation) ([]byte, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("parse board date: %w", err)
	}

	slotItems := slotsToItems(date, slots)
	rangeItems := reservationsToItems(date, reservations)
	hours := calculateHourRange(append(append([]item{}, slotItems...), rangeItems...))

	height := headerHeight + int(float64(hours.total())*hourHeight) + footerHeight
	dc := gg.NewContext(imageWidth, height)
	dc.SetColor(bgColor)
	dc.Clear()

	columnWidth := (imageWidth - leftLabelsWidth) / 2

	drawHeader(dc, day)
	drawColumn(dc, 0, columnWidth, height, "Слоты", slotColumnColor)
	drawColumn(dc, 1, columnWidth, height, "Брони", rangeColumnColor)
	drawHourGrid(dc, hours)

	for _, it := range slotItems {
		drawItem(dc, it, 0, columnWidth, hours)
	}
	for _, it := range rangeItems {
		drawItem(dc, it, 1, columnWidth, hours)
	}

	drawLegend(dc, height)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode board: %w", err)
	}
	return buf.Bytes(), nil
}

func slotsToItems(date string, slots []*model.Slot) []item {
	items := make([]item, 0, len(slots))
	for _, slot := range slots {
		if slot.Date != date {
			continue
		}
		start, err := availability.ParseClock(slot.Time)
		if err != nil {
			continue
		}

		it := item{
			start:    start,
			duration: slot.DurationMinutes,
			title:    slot.Time,
			fill:     slotFreeColor,
			text:     itemTextColor,
		}
		if !slot.Available {
			it.fill = slotBookedColor
			it.text = slotBookedTextColor
			if slot.BookedBy != nil {
				it.subtitle = slot.BookedBy.Name
			}
		}
		items = append(items, it)
	}
	return items
}

func reservationsToItems(date string, reservations []*model.Reservation) []item {
	items := make([]item, 0, len(reservations))
	for _, r := range reservations {
		if r.Date != date || !r.Confirmed {
			continue
		}
		start, err := availability.ParseClock(r.StartTime)
		if err != nil {
			continue
		}

		subtitle := r.Name
		if r.Note != "" {
			subtitle += ", " + r.Note
		}
		items = append(items, item{
			start:    start,
			duration: r.DurationMinutes,
			title:    fmt.Sprintf("%s-%s", r.StartTime, availability.FormatClock(start+r.DurationMinutes)),
			subtitle: subtitle,
			fill:     reservationColor,
			text:     itemTextColor,
		})
	}
	return items
}

// calculateHourRange определяет диапазон часов с запасом в час сверху и снизу
func calculateHourRange(items []item) hourRange {
	if len(items) == 0 {
		return hourRange{start: defaultMinHour, end: defaultMaxHour}
	}

	minHour, maxHour := 24, 0
	for _, it := range items {
		startH := it.start / 60
		endH := (it.start + it.duration + 59) / 60
		if startH < minHour {
			minHour = startH
		}
		if endH > maxHour {
			maxHour = endH
		}
	}

	start := max(minHour-1, 0)
	end := min(maxHour+1, 24)
	return hourRange{start: start, end: end}
}

func drawHeader(dc *gg.Context, day time.Time) {
	title := fmt.Sprintf("%d %s %d", day.Day(), formatting.MonthGenitive(day.Month()), day.Year())

	setFont(dc, titleFontSize, weightBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(imageWidth)/2, float64(headerHeight)/3, 0.5, 0.5)
}

func drawColumn(dc *gg.Context, index, columnWidth, height int, title string, bg color.Color) {
	x := float64(leftLabelsWidth + index*columnWidth)

	dc.SetColor(bg)
	dc.DrawRectangle(x, float64(headerHeight), float64(columnWidth), float64(height-headerHeight-footerHeight))
	dc.Fill()

	setFont(dc, columnFontSize, weightBold)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, x+float64(columnWidth)/2, float64(headerHeight)-18, 0.5, 0.5)
}

func drawHourGrid(dc *gg.Context, hours hourRange) {
	setFont(dc, hourLabelFontSize, weightRegular)

	for h := hours.start; h <= hours.end; h++ {
		y := float64(headerHeight) + float64(h-hours.start)*hourHeight

		dc.SetColor(hourLineColor)
		dc.SetLineWidth(0.5)
		dc.DrawLine(float64(leftLabelsWidth), y, float64(imageWidth), y)
		dc.Stroke()

		dc.SetColor(hourLabelColor)
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", h%24), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawItem(dc *gg.Context, it item, column, columnWidth int, hours hourRange) {
	x := float64(leftLabelsWidth+column*columnWidth) + columnPaddingX
	y := float64(headerHeight) + (float64(it.start)/60-float64(hours.start))*hourHeight
	w := float64(columnWidth) - columnPaddingX*2
	h := float64(it.duration) / 60 * hourHeight
	if h < minItemHeight {
		h = minItemHeight
	}

	// Тень
	dc.SetColor(itemShadowColor)
	dc.DrawRoundedRectangle(x+shadowOffset, y+2+shadowOffset, w, h-4, itemBorderRadius)
	dc.Fill()

	dc.SetColor(it.fill)
	dc.DrawRoundedRectangle(x, y+2, w, h-4, itemBorderRadius)
	dc.Fill()

	dc.SetColor(darkenColor(it.fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x, y+2, w, h-4, itemBorderRadius)
	dc.Stroke()

	setFont(dc, itemFontSize, weightBold)
	dc.SetColor(it.text)
	dc.DrawStringAnchored(it.title, x+8, y+18, 0, 0)

	if it.subtitle != "" && h > 40 {
		setFont(dc, itemFontSize-2, weightRegular)
		dc.DrawStringAnchored(truncate(it.subtitle, 32), x+8, y+36, 0, 0)
	}
}

func drawLegend(dc *gg.Context, height int) {
	items := []struct {
		label string
		clr   color.Color
	}{
		{"Свободно", slotFreeColor},
		{"Забронировано", slotBookedColor},
		{"Бронь по времени", reservationColor},
	}

	x := float64(leftLabelsWidth)
	y := float64(height-footerHeight) + 22

	setFont(dc, legendFontSize, weightRegular)
	for _, it := range items {
		dc.SetColor(it.clr)
		dc.DrawRoundedRectangle(x, y, 20, 14, 3)
		dc.Fill()

		dc.SetColor(textColor)
		dc.DrawStringAnchored(it.label, x+28, y+8, 0, 0.3)
		w, _ := dc.MeasureString(it.label)
		x += 28 + w + 30
	}
}

// darkenColor затемняет цвет на указанный множитель
func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-3]) + "..."
}
