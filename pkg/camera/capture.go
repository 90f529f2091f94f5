package camera

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eva/internal/log"
)

// Capture is the frame-source boundary. Implementations return one
// JPEG-encoded frame per call and may block briefly.
type Capture interface {
	CaptureFrame(id ID) ([]byte, error)
	Close() error
}

// Device is a gocv-backed capture pair over the two V4L2 devices. Only the
// active device is held open; switching releases one and acquires the other.
type Device struct {
	mu      sync.Mutex
	open    *gocv.VideoCapture
	openID  ID
	devices map[ID]int // camera -> V4L2 index
	quality int
	buf     gocv.Mat
}

// NewDevice maps camera IDs to V4L2 device indexes. quality is the JPEG
// encode quality (1-100).
func NewDevice(navIndex, headIndex, quality int) *Device {
	if quality <= 0 || quality > 100 {
		quality = 70
	}
	return &Device{
		devices: map[ID]int{Nav: navIndex, Head: headIndex},
		quality: quality,
		buf:     gocv.NewMat(),
	}
}

// Switch releases the currently open device and acquires the target.
// Safe to call with the already-open camera.
func (d *Device) Switch(to ID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open != nil && d.openID == to {
		return nil
	}
	if d.open != nil {
		d.open.Close()
		d.open = nil
	}

	idx, ok := d.devices[to]
	if !ok {
		return fmt.Errorf("camera: unknown id %q", to)
	}
	vc, err := gocv.VideoCaptureDevice(idx)
	if err != nil {
		return fmt.Errorf("camera: open device %d: %w", idx, err)
	}
	d.open = vc
	d.openID = to
	return nil
}

// CaptureFrame grabs and JPEG-encodes one frame from the named camera.
// The camera must be the open one; the selector guarantees that.
func (d *Device) CaptureFrame(id ID) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.open == nil || d.openID != id {
		return nil, fmt.Errorf("camera: %q is not the open device", id)
	}
	if ok := d.open.Read(&d.buf); !ok || d.buf.Empty() {
		return nil, fmt.Errorf("camera: read from %q failed", id)
	}
	jpeg, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.buf,
		[]int{gocv.IMWriteJpegQuality, d.quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer jpeg.Close()

	out := make([]byte, len(jpeg.GetBytes()))
	copy(out, jpeg.GetBytes())
	return out, nil
}

// Close releases the open device and encode buffer.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var err error
	if d.open != nil {
		err = d.open.Close()
		d.open = nil
	}
	d.buf.Close()
	return err
}

// Loop pulls frames from the selected camera at the given rate and hands
// them to sink. While a switch is in progress frames are skipped entirely,
// never encoded, so the stream cannot interleave two sources. The loop
// exits when ctx is cancelled.
func Loop(ctx context.Context, sel *Selector, src Capture, fps int, sink func(jpeg []byte)) {
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sel.Switching() {
				continue
			}
			id := sel.Active()
			frame, err := src.CaptureFrame(id)
			if err != nil {
				log.Debug("frame capture failed", "camera", id, "error", err)
				continue
			}
			sink(frame)
		}
	}
}
