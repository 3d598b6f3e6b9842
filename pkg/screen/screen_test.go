package screen

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/controller"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/direction"
	"github.com/tigerbot-team/tigerbot/diffdrive/pkg/ina219"
)

func TestRenderSize(t *testing.T) {
	img := Render(Frame{
		Status: controller.Status{State: controller.Seeking, LeftSpeed: 1, RightSpeed: -0.5, Faults: 2},
		Power:  &ina219.Reading{Volts: 7.9},
	})
	assert.Equal(t, image.Rect(0, 0, S, S), img.Bounds())
}

func TestUpcoming(t *testing.T) {
	assert.Equal(t, "", upcoming(nil))
	assert.Equal(t, "FLBR", upcoming([]direction.Direction{
		direction.Forward, direction.Left, direction.Backward, direction.Right,
	}))
	assert.Equal(t, "FFFFFF+", upcoming(make([]direction.Direction, 9)))
}

func TestToFramebufferPacksRGB565(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, S, S))
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	img.Set(1, 0, color.RGBA{G: 0xff, A: 0xff})
	img.Set(0, 1, color.RGBA{B: 0xff, A: 0xff})

	buf := ToFramebuffer(img)
	require.Len(t, buf, S*S*2)

	// (0,0) is rotated to the end of the first row.
	assert.Equal(t, []byte{0x00, 0xf8}, buf[(S-1)*2:(S-1)*2+2])
	// (1,0) starts the second row's last pixel.
	assert.Equal(t, []byte{0xe0, 0x07}, buf[S*2+(S-1)*2:S*2+(S-1)*2+2])
	// (0,1) is the second to last pixel of the first row.
	assert.Equal(t, []byte{0x1f, 0x00}, buf[(S-2)*2:(S-2)*2+2])
}

func TestLoopWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.png")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		LoopUpdatingScreen(ctx, "", path, func() Frame { return Frame{} })
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 3*time.Second, 50*time.Millisecond)
	cancel()
	<-done

	img, err := gg.LoadPNG(path)
	require.NoError(t, err)
	assert.Equal(t, S, img.Bounds().Dx())
}
