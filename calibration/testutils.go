package calibration

import (
	"math"

	"github.com/golang/geo/r2"

	"github.com/volumetriclabs/scancore/camera"
	"github.com/volumetriclabs/scancore/utils"
)

// ProjectRectangleCorners projects a camera-facing rectangle of the given
// physical size, centered on the optical axis at the given depth, into the
// detector's normalized corner convention.
func ProjectRectangleCorners(intr *camera.PinholeCameraIntrinsics, widthM, heightM, depthM float64) [4]r2.Point {
	hw := widthM / 2
	hh := heightM / 2
	// Camera frame has +Y pointing down, so the top edge sits at -hh.
	cameraCorners := [4][2]float64{
		{-hw, -hh},
		{hw, -hh},
		{hw, hh},
		{-hw, hh},
	}
	var corners [4]r2.Point
	for i, c := range cameraCorners {
		px, py := intr.PointToPixel(c[0], c[1], depthM)
		corners[i] = r2.Point{
			X: px / float64(intr.Width-1),
			Y: 1 - py/float64(intr.Height-1),
		}
	}
	return corners
}

// MakeFrontalFrame builds a frame observing a flat rectangle of the given
// physical size square on to the camera at a uniform depth, from an
// identity pose.
func MakeFrontalFrame(intr *camera.PinholeCameraIntrinsics, widthM, heightM, depthM float64) Frame {
	dm := camera.NewEmptyDepthMap(intr.Width, intr.Height)
	for y := 0; y < intr.Height; y++ {
		for x := 0; x < intr.Width; x++ {
			dm.Set(x, y, depthM)
		}
	}
	return Frame{
		Corners:    ProjectRectangleCorners(intr, widthM, heightM, depthM),
		Depth:      dm,
		Intrinsics: intr,
		Pose:       camera.IdentityPose(),
	}
}

// MakeRampFrame is MakeFrontalFrame with the surface tilted about the
// vertical axis by tiltDeg. Depth varies along x so that every pixel lifts
// onto the plane z = depthM + tan(tilt)*x in the camera frame, with depthM
// the depth on the optical axis. Corners are reported where a detector
// would find them on the untilted surface.
func MakeRampFrame(intr *camera.PinholeCameraIntrinsics, widthM, heightM, depthM, tiltDeg float64) Frame {
	frame := MakeFrontalFrame(intr, widthM, heightM, depthM)
	slope := math.Tan(utils.DegToRad(tiltDeg))
	for y := 0; y < intr.Height; y++ {
		for x := 0; x < intr.Width; x++ {
			u := (float64(x) - intr.Ppx) / intr.Fx
			frame.Depth.Set(x, y, depthM/(1-slope*u))
		}
	}
	return frame
}
