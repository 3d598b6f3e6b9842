// Package screen draws the controller's status on the 128x128 TFT that
// sits on the robot (an RGB565 framebuffer, usually /dev/fb1).
package screen

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fogleman/gg"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/ina219"
)

const (
	S = 128

	updateInterval = 500 * time.Millisecond
)

// Frame is everything shown on one refresh.
type Frame struct {
	Status controller.Status
	// Nil when there is no battery monitor.
	Power *ina219.Reading
}

// Render draws f onto a fresh S x S image.
func Render(f Frame) image.Image {
	dc := gg.NewContext(S, S)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGBA(1, 0.9, 0, 1)

	st := f.Status
	lines := []string{
		fmt.Sprintf("%v %v", st.State, st.Heading),
		fmt.Sprintf("Q:%d Done:%d", st.Queued, st.Executed),
		"Next " + upcoming(st.Pending),
		fmt.Sprintf("Cell %v", st.Position),
		fmt.Sprintf("L %.2f/%.2f", st.Encoders.Left, st.Target.Left),
		fmt.Sprintf("R %.2f/%.2f", st.Encoders.Right, st.Target.Right),
	}
	for i, l := range lines {
		dc.DrawString(l, 2, float64(12+12*i))
	}

	drawSpeedBar(dc, 4, st.LeftSpeed)
	drawSpeedBar(dc, 20, st.RightSpeed)

	if f.Power != nil {
		dc.Push()
		dc.Translate(94, 5)
		dc.SetRGBA(1, 0.9, 0, 1)
		drawPowerBar(dc, f.Power.Volts)
		dc.Pop()
	}

	if st.Faults > 0 {
		dc.Push()
		dc.Translate(60, 108)
		DrawWarning(dc)
		dc.Pop()
		dc.SetRGB(1, 0.2, 0)
		dc.DrawString(fmt.Sprintf("%d", st.Faults), 76, 112)
	}
	return dc.Image()
}

// upcoming abbreviates the first few queued directions, e.g. "FLLB".
func upcoming(pending []direction.Direction) string {
	const shown = 6
	var sb strings.Builder
	for i, d := range pending {
		if i == shown {
			sb.WriteString("+")
			break
		}
		sb.WriteString(d.String()[:1])
	}
	return sb.String()
}

// drawSpeedBar draws a bar that grows up from the middle of the bottom
// strip for forward and down for backward.
func drawSpeedBar(dc *gg.Context, x, speed float64) {
	const (
		mid    = 100
		height = 20
	)
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.DrawRectangle(x, mid-height, 12, 2*height)
	dc.Stroke()
	if speed >= 0 {
		dc.SetRGB(0, 0.8, 0)
		dc.DrawRectangle(x+2, mid-speed*height, 8, speed*height)
	} else {
		dc.SetRGB(0.9, 0.4, 0)
		dc.DrawRectangle(x+2, mid, 8, -speed*height)
	}
	dc.Fill()
}

const (
	minCellVoltage = 3
	maxCellVoltage = 4.2
)

func drawPowerBar(dc *gg.Context, voltage float64) {
	var cellVoltage float64
	if voltage > 9 {
		// assume the 4-cell pack
		cellVoltage = voltage / 4
	} else {
		// assume the 2-cell pack
		cellVoltage = voltage / 2
	}
	charge := (cellVoltage - minCellVoltage) / (maxCellVoltage - minCellVoltage)

	// Colour depends on charge level.
	if charge < 0.1 {
		dc.SetRGBA(1, 0.2, 0, 1)
	}
	dc.DrawRectangle(0, 70, 30, 10)
	for n := 2; n < 13; n++ {
		if charge >= (float64(n) / 13) {
			dc.DrawRectangle(2, 75-float64(n)*5, 26, 3)
		}
	}
	dc.Fill()
	dc.DrawString(fmt.Sprintf("%.1fv", voltage), -2, 93)
}

func DrawWarning(dc *gg.Context) {
	dc.SetRGB(1, 0.2, 0)
	dc.DrawRegularPolygon(3, 0, 0, 14, 0)
	dc.Fill()
	dc.SetRGBA(0, 0, 0, 0.9)
	dc.DrawString("!", -3, 3)
}

// ToFramebuffer converts img to the panel's RGB565 layout.  The panel is
// mounted rotated, so columns of the image become rows of the buffer.
func ToFramebuffer(img image.Image) []byte {
	buf := make([]byte, S*S*2)
	for y := 0; y < S; y++ {
		for x := 0; x < S; x++ {
			r, g, b, _ := img.At(x, y).RGBA() // 16-bit pre-multiplied

			rb := byte(r >> (16 - 5))
			gb := byte(g >> (16 - 6)) // Green has 6 bits
			bb := byte(b >> (16 - 5))

			buf[(S-1-y)*2+x*S*2+1] = (rb << 3) | (gb >> 3)
			buf[(S-1-y)*2+x*S*2] = bb | (gb << 5)
		}
	}
	return buf
}

func writeFrame(w io.WriteSeeker, buf []byte) error {
	if _, err := w.Seek(0, 0); err != nil {
		return err
	}
	for i := 0; i < S; i++ {
		if _, err := w.Write(buf[i*S*2 : (i+1)*S*2]); err != nil {
			return err
		}
		time.Sleep(10 * time.Microsecond)
	}
	return nil
}

// LoopUpdatingScreen redraws every half second until ctx is cancelled,
// writing to the framebuffer device and/or a PNG file (either may be
// empty).  The screen is blanked on exit.
func LoopUpdatingScreen(ctx context.Context, device, pngPath string, frame func() Frame) {
	var fb *os.File
	if device != "" {
		f, err := os.OpenFile(device, os.O_RDWR, 0666)
		if err != nil {
			fmt.Println("SCR: Failed to open screen, ignoring:", err)
		} else {
			fb = f
			defer f.Close()
		}
	}
	if fb == nil && pngPath == "" {
		return
	}

	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if fb != nil {
				_ = writeFrame(fb, make([]byte, S*S*2))
			}
			return
		case <-ticker.C:
		}

		img := Render(frame())
		if fb != nil {
			if err := writeFrame(fb, ToFramebuffer(img)); err != nil {
				fmt.Println("SCR: Screen failure:", err)
				_ = fb.Close()
				fb = nil
			}
		}
		if pngPath != "" {
			if err := gg.SavePNG(pngPath, img); err != nil {
				fmt.Println("SCR: Failed to write", pngPath, err)
			}
		}
	}
}
