package vision

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"roadsafe/internal/logger"
)

// Model scores a preprocessed frame. Higher means more likely hazard. The
// network internals are opaque to the rest of the pipeline.
type Model interface {
	Run(t Tensor) (float64, error)
	Close() error
}

// ScoreNet wraps an OpenCV DNN as a Model. One frame at a time; Net is not
// safe for concurrent Forward calls.
type ScoreNet struct {
	net       gocv.Net
	loaded    bool
	modelPath string
	log       *logger.Logger
	mu        sync.Mutex
}

// NewScoreNet loads the network from modelPath.
func NewScoreNet(modelPath string, log *logger.Logger) (*ScoreNet, error) {
	s := &ScoreNet{modelPath: modelPath, log: log}

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return nil, fmt.Errorf("failed to set network backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return nil, fmt.Errorf("failed to set network target: %w", err)
	}

	s.net = net
	s.loaded = true
	log.Info("Hazard network loaded from %s", modelPath)
	return s, nil
}

// Run feeds the tensor through the network and returns the highest class
// score.
func (s *ScoreNet) Run(t Tensor) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return 0, fmt.Errorf("hazard network not initialized")
	}

	mat, err := matFromTensor(t)
	if err != nil {
		return 0, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(t.Width, t.Height), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	defer output.Close()

	best := float32(0)
	for col := 0; col < output.Cols(); col++ {
		if v := output.GetFloatAt(0, col); v > best {
			best = v
		}
	}
	return float64(best), nil
}

// Close releases the network.
func (s *ScoreNet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil
	}
	s.loaded = false
	return s.net.Close()
}

func matFromTensor(t Tensor) (gocv.Mat, error) {
	switch t.DType {
	case DTypeFloat32:
		raw := make([]byte, len(t.F32)*4)
		for i, v := range t.F32 {
			binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
		}
		mat, err := gocv.NewMatFromBytes(t.Height, t.Width, gocv.MatTypeCV32FC3, raw)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("failed to build input mat: %w", err)
		}
		return mat, nil
	default:
		mat, err := gocv.NewMatFromBytes(t.Height, t.Width, gocv.MatTypeCV8UC3, t.U8)
		if err != nil {
			return gocv.Mat{}, fmt.Errorf("failed to build input mat: %w", err)
		}
		return mat, nil
	}
}
