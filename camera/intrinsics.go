// Package camera models the pinhole camera that produced a scan: intrinsics,
// rigid poses, and dense depth maps, plus the projections between them.
package camera

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// ErrCornerOutOfBounds is when a normalized corner lands outside the unit square
// and therefore outside the depth image.
var ErrCornerOutOfBounds = errors.New("corner out of image bounds")

// NewNoIntrinsicsError is used when the intrinsics are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrapf(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the intrinsics for a pinhole camera.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	intrinsics := &PinholeCameraIntrinsics{}
	jsonData, err := os.ReadFile(filepath.Clean(jsonPath))
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	if err = json.Unmarshal(jsonData, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	if err = intrinsics.CheckValid(); err != nil {
		return nil, err
	}
	return intrinsics, nil
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width <= 0 || params.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point cloud.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	// get x and y
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// PointToPixel projects a 3D point to a pixel in an image plane.
// The intrinsics parameters should be the ones of the sensor we want to project to.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if z != 0 {
		xPx := math.Round((x/z)*params.Fx + params.Ppx)
		yPx := math.Round((y/z)*params.Fy + params.Ppy)
		return xPx, yPx
	}
	// if depth is zero at this pixel, return negative coordinates so that the cropping to bounds will filter it out
	return -1.0, -1.0
}

// NormalizedToPixel converts a corner in the detector's normalized convention
// to depth-image pixel coordinates. Detections use a bottom-left origin with
// both coordinates in [0, 1], while depth maps are indexed from the top-left
// corner, so the y axis is flipped here and nowhere else. Every consumer of
// detected corners must go through this function.
func (params *PinholeCameraIntrinsics) NormalizedToPixel(pt r2.Point) (image.Point, error) {
	if pt.X < 0 || pt.X > 1 || pt.Y < 0 || pt.Y > 1 {
		return image.Point{}, errors.Wrapf(ErrCornerOutOfBounds, "normalized corner (%v, %v)", pt.X, pt.Y)
	}
	px := int(math.Round(pt.X * float64(params.Width-1)))
	py := int(math.Round((1 - pt.Y) * float64(params.Height-1)))
	return image.Point{X: px, Y: py}, nil
}

// GetCameraMatrix creates a new camera matrix from the intrinsics.
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	cameraMatrix := mat.NewDense(3, 3, nil)
	cameraMatrix.Set(0, 0, params.Fx)
	cameraMatrix.Set(1, 1, params.Fy)
	cameraMatrix.Set(0, 2, params.Ppx)
	cameraMatrix.Set(1, 2, params.Ppy)
	cameraMatrix.Set(2, 2, 1)
	return cameraMatrix
}
