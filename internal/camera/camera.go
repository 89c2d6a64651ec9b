package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrNotReady is returned when no frame can be captured.
var ErrNotReady = errors.New("camera not ready")

// Camera is the capture collaborator. TakePhoto returns one encoded JPEG
// frame.
type Camera interface {
	TakePhoto(ctx context.Context) ([]byte, error)
	Close() error
}

// Webcam captures frames from a V4L/AVFoundation device through OpenCV.
type Webcam struct {
	mu     sync.Mutex
	device *gocv.VideoCapture
	closed bool
}

// OpenWebcam opens the capture device with the given id.
func OpenWebcam(deviceID int) (*Webcam, error) {
	device, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %d: %w", deviceID, err)
	}
	return &Webcam{device: device}, nil
}

// TakePhoto grabs the next frame and encodes it as JPEG.
func (w *Webcam) TakePhoto(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrNotReady
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := w.device.Read(&frame); !ok || frame.Empty() {
		return nil, fmt.Errorf("%w: no frame from device", ErrNotReady)
	}

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	photo := make([]byte, len(buf.GetBytes()))
	copy(photo, buf.GetBytes())
	return photo, nil
}

// Close releases the capture device. Safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.device.Close()
}
