package vision

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Model input contract: exactly 224x224 RGB, row-major, channel-interleaved.
const (
	InputWidth    = 224
	InputHeight   = 224
	InputChannels = 3
)

var (
	// ErrDecode means the photo bytes could not be decoded. Non-retriable
	// for that photo.
	ErrDecode = errors.New("failed to decode photo")
	// ErrResize means the decoded image could not be resized to the model
	// input shape. Non-retriable for that photo.
	ErrResize = errors.New("failed to resize photo")
)

// DType selects the numeric representation of the produced tensor, matching
// the active model's expected input.
type DType int

const (
	DTypeUint8 DType = iota
	DTypeFloat32
)

// Tensor is a fixed-shape model input. Exactly one of U8 and F32 is set,
// according to DType. Float samples are normalized as v/127.5 - 1.0, giving
// a range of roughly [-1, 1].
type Tensor struct {
	Width    int
	Height   int
	Channels int
	DType    DType
	U8       []uint8
	F32      []float32
}

// Len returns the number of samples in the tensor.
func (t Tensor) Len() int {
	return t.Width * t.Height * t.Channels
}

// Preprocess turns raw photo bytes into a model input tensor:
//
//  1. decode (alpha dropped),
//  2. stretch-resize to exactly 224x224 with both axes scaled independently,
//     the model requires this shape regardless of source aspect ratio,
//  3. reorder to interleaved RGB,
//  4. keep uint8 samples or normalize to float32.
//
// A decode or resize failure aborts the attempt; callers must not substitute
// a default tensor, a zero input would produce a silent false detection.
func Preprocess(photo []byte, dtype DType) (Tensor, error) {
	mat, err := gocv.IMDecode(photo, gocv.IMReadColor)
	if err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer mat.Close()

	if mat.Empty() {
		return Tensor{}, fmt.Errorf("%w: decoded image is empty", ErrDecode)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(mat, &resized, image.Pt(InputWidth, InputHeight), 0, 0, gocv.InterpolationLinear); err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrResize, err)
	}
	if resized.Empty() || resized.Cols() != InputWidth || resized.Rows() != InputHeight {
		return Tensor{}, fmt.Errorf("%w: got %dx%d", ErrResize, resized.Cols(), resized.Rows())
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(resized, &rgb, gocv.ColorBGRToRGB); err != nil {
		return Tensor{}, fmt.Errorf("%w: %v", ErrResize, err)
	}

	samples := rgb.ToBytes()
	if len(samples) != InputWidth*InputHeight*InputChannels {
		return Tensor{}, fmt.Errorf("%w: unexpected sample count %d", ErrResize, len(samples))
	}

	tensor := Tensor{
		Width:    InputWidth,
		Height:   InputHeight,
		Channels: InputChannels,
		DType:    dtype,
	}

	if dtype == DTypeFloat32 {
		tensor.F32 = make([]float32, len(samples))
		for i, v := range samples {
			tensor.F32[i] = float32(v)/127.5 - 1.0
		}
		return tensor, nil
	}

	tensor.U8 = make([]uint8, len(samples))
	copy(tensor.U8, samples)
	return tensor, nil
}
