package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// deviceGrabber wraps a webcam through gocv. A single Mat is reused across
// grabs to avoid per-frame allocation churn.
type deviceGrabber struct {
	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenDefault opens the first webcam on the system.
func OpenDefault() (Grabber, error) {
	return OpenDevice(0)
}

// OpenDevice opens the webcam at the given index.
func OpenDevice(index int) (Grabber, error) {
	cap, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", index, err)
	}
	return &deviceGrabber{cap: cap, mat: gocv.NewMat()}, nil
}

func (g *deviceGrabber) Grab(quality int) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cap == nil {
		return nil, ErrNotActive
	}
	if ok := g.cap.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, g.mat, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, len(buf.GetBytes()))
	copy(jpeg, buf.GetBytes())
	return jpeg, nil
}

func (g *deviceGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cap == nil {
		return nil
	}
	g.mat.Close()
	err := g.cap.Close()
	g.cap = nil
	return err
}
