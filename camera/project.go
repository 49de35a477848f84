package camera

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/volumetriclabs/scancore/pointcloud"
)

// ToPointCloud back-projects every valid depth reading into a camera-frame
// point cloud. A stride of n keeps every nth pixel along both axes, stride 1
// keeps everything.
func ToPointCloud(dm *DepthMap, params *PinholeCameraIntrinsics, stride int) (*pointcloud.PointCloud, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if !dm.HasData() {
		return nil, errors.New("depth map has no data")
	}
	if stride < 1 {
		return nil, errors.Errorf("stride must be positive, got %d", stride)
	}
	cloud := pointcloud.NewWithPrealloc(dm.Width() * dm.Height() / (stride * stride))
	for y := 0; y < dm.Height(); y += stride {
		for x := 0; x < dm.Width(); x += stride {
			z := dm.GetDepth(x, y)
			if !ValidDepth(z) {
				continue
			}
			px, py, pz := params.PixelToPoint(float64(x), float64(y), z)
			cloud.Add(r3.Vector{X: px, Y: py, Z: pz})
		}
	}
	return cloud, nil
}

// ToPointCloudInWorld back-projects the depth map and moves the result into
// the world frame using the camera pose. A nil pose leaves the cloud in the
// camera frame.
func ToPointCloudInWorld(dm *DepthMap, params *PinholeCameraIntrinsics, pose *Pose, stride int) (*pointcloud.PointCloud, error) {
	cloud, err := ToPointCloud(dm, params, stride)
	if err != nil {
		return nil, err
	}
	if pose == nil {
		return cloud, nil
	}
	world := pointcloud.NewWithPrealloc(cloud.Size())
	for i := 0; i < cloud.Size(); i++ {
		world.Add(pose.TransformPoint(cloud.At(i)))
	}
	return world, nil
}
