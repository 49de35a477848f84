package pointcloud

import (
	"sync"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils"

	"github.com/volumetriclabs/scancore/mesh"
)

func TestPointCloudBasic(t *testing.T) {
	cloud := New()
	test.That(t, cloud.Size(), test.ShouldEqual, 0)
	test.That(t, cloud.HasNormals(), test.ShouldBeFalse)

	cloud.Add(r3.Vector{X: 1, Y: 2, Z: 3})
	cloud.Add(r3.Vector{X: 4, Y: 2, Z: 3})
	cloud.Add(r3.Vector{X: 3, Y: 1, Z: 7})

	test.That(t, cloud.Size(), test.ShouldEqual, 3)
	test.That(t, cloud.At(1), test.ShouldResemble, r3.Vector{X: 4, Y: 2, Z: 3})

	meta := cloud.MetaData()
	test.That(t, meta.MinX, test.ShouldEqual, 1)
	test.That(t, meta.MaxX, test.ShouldEqual, 4)
	test.That(t, meta.MinY, test.ShouldEqual, 1)
	test.That(t, meta.MaxY, test.ShouldEqual, 2)
	test.That(t, meta.MinZ, test.ShouldEqual, 3)
	test.That(t, meta.MaxZ, test.ShouldEqual, 7)
	test.That(t, meta.Extents(), test.ShouldResemble, r3.Vector{X: 3, Y: 1, Z: 4})

	centroid := cloud.Centroid()
	test.That(t, centroid.X, test.ShouldAlmostEqual, 8/3.0)
	test.That(t, centroid.Y, test.ShouldAlmostEqual, 5/3.0)
	test.That(t, centroid.Z, test.ShouldAlmostEqual, 13/3.0)

	test.That(t, New().Centroid(), test.ShouldResemble, r3.Vector{})
}

func TestNormalsStorage(t *testing.T) {
	cloud := New()
	cloud.Add(r3.Vector{X: 1})
	test.That(t, cloud.HasNormals(), test.ShouldBeFalse)
	test.That(t, cloud.NormalAt(0), test.ShouldResemble, r3.Vector{})

	cloud.AddWithNormal(r3.Vector{X: 2}, r3.Vector{Z: 1})
	test.That(t, cloud.HasNormals(), test.ShouldBeTrue)
	// the point added before any normal was known is backfilled with zero
	test.That(t, cloud.NormalAt(0), test.ShouldResemble, r3.Vector{})
	test.That(t, cloud.NormalAt(1), test.ShouldResemble, r3.Vector{Z: 1})

	cloud.Add(r3.Vector{X: 3})
	test.That(t, cloud.NormalAt(2), test.ShouldResemble, r3.Vector{})
	test.That(t, cloud.Size(), test.ShouldEqual, 3)
}

func TestClonePointCloud(t *testing.T) {
	cloud := New()
	cloud.AddWithNormal(r3.Vector{X: 1}, r3.Vector{Z: 1})
	cloud.AddWithNormal(r3.Vector{X: 2}, r3.Vector{Y: 1})

	clone := cloud.Clone()
	clone.Add(r3.Vector{X: 50})

	test.That(t, cloud.Size(), test.ShouldEqual, 2)
	test.That(t, clone.Size(), test.ShouldEqual, 3)
	test.That(t, clone.NormalAt(1), test.ShouldResemble, r3.Vector{Y: 1})
}

func testCloudIterate(t *testing.T, cloud *PointCloud, numBatches int, expectedCentroid r3.Vector) {
	t.Helper()

	var totalX, totalY, totalZ float64
	var count int
	if numBatches == 0 {
		cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
			totalX += p.X
			totalY += p.Y
			totalZ += p.Z
			count++
			return true
		})
	} else {
		var wg sync.WaitGroup
		wg.Add(numBatches)
		totalChan := make(chan r3.Vector, numBatches)
		countChan := make(chan int, numBatches)
		for loop := 0; loop < numBatches; loop++ {
			loopCopy := loop
			utils.PanicCapturingGo(func() {
				defer wg.Done()
				var batchTotal r3.Vector
				var batchCount int
				cloud.Iterate(numBatches, loopCopy, func(i int, p r3.Vector) bool {
					batchTotal = batchTotal.Add(p)
					batchCount++
					return true
				})
				totalChan <- batchTotal
				countChan <- batchCount
			})
		}
		wg.Wait()
		for loop := 0; loop < numBatches; loop++ {
			batchTotal := <-totalChan
			totalX += batchTotal.X
			totalY += batchTotal.Y
			totalZ += batchTotal.Z
			count += <-countChan
		}
	}

	test.That(t, count, test.ShouldEqual, cloud.Size())
	if count > 0 {
		test.That(t, totalX/float64(count), test.ShouldAlmostEqual, expectedCentroid.X)
		test.That(t, totalY/float64(count), test.ShouldAlmostEqual, expectedCentroid.Y)
		test.That(t, totalZ/float64(count), test.ShouldAlmostEqual, expectedCentroid.Z)
	}
}

func TestIterateBatching(t *testing.T) {
	cloud := New()
	cloud.Add(r3.Vector{X: 1, Y: 2, Z: 3})
	cloud.Add(r3.Vector{X: 4, Y: 2, Z: 3})
	cloud.Add(r3.Vector{X: 3, Y: 1, Z: 7})
	expectedCentroid := r3.Vector{X: 8 / 3.0, Y: 5 / 3.0, Z: 13 / 3.0}

	// zero batches means visit everything in one pass
	testCloudIterate(t, cloud, 0, expectedCentroid)
	testCloudIterate(t, cloud, 1, expectedCentroid)
	testCloudIterate(t, cloud, cloud.Size(), expectedCentroid)
	testCloudIterate(t, cloud, cloud.Size()*2, expectedCentroid)

	// iterating an empty cloud visits nothing
	testCloudIterate(t, New(), 0, r3.Vector{})
	testCloudIterate(t, New(), 4, r3.Vector{})

	t.Run("early stop", func(t *testing.T) {
		visited := 0
		cloud.Iterate(0, 0, func(i int, p r3.Vector) bool {
			visited++
			return false
		})
		test.That(t, visited, test.ShouldEqual, 1)
	})
}

func TestMergeClouds(t *testing.T) {
	a := New()
	a.AddWithNormal(r3.Vector{X: 1}, r3.Vector{Z: 1})
	b := New()
	b.AddWithNormal(r3.Vector{X: 2}, r3.Vector{Y: 1})
	b.AddWithNormal(r3.Vector{X: 3}, r3.Vector{X: 1})

	merged := MergeClouds(a, b)
	test.That(t, merged.Size(), test.ShouldEqual, 3)
	test.That(t, merged.HasNormals(), test.ShouldBeTrue)
	test.That(t, merged.NormalAt(2), test.ShouldResemble, r3.Vector{X: 1})

	t.Run("normals dropped when any cloud lacks them", func(t *testing.T) {
		c := New()
		c.Add(r3.Vector{X: 4})
		merged := MergeClouds(a, c)
		test.That(t, merged.Size(), test.ShouldEqual, 2)
		test.That(t, merged.HasNormals(), test.ShouldBeFalse)
	})
}

func TestMakeShapeClouds(t *testing.T) {
	sphere := MakeSphereCloud(200, r3.Vector{X: 1}, 0.5)
	test.That(t, sphere.Size(), test.ShouldEqual, 200)
	for i := 0; i < sphere.Size(); i++ {
		d := sphere.At(i).Sub(r3.Vector{X: 1}).Norm()
		test.That(t, d, test.ShouldAlmostEqual, 0.5, 1e-9)
	}

	cube := MakeCubeCloud(4, r3.Vector{}, 2)
	test.That(t, cube.Size(), test.ShouldEqual, 96)
	meta := cube.MetaData()
	test.That(t, meta.MinX, test.ShouldAlmostEqual, -1)
	test.That(t, meta.MaxZ, test.ShouldAlmostEqual, 1)

	plane := MakePlaneCloud(5, r3.Vector{Z: 2}, r3.Vector{Z: 1}, 1)
	test.That(t, plane.Size(), test.ShouldEqual, 25)
	for i := 0; i < plane.Size(); i++ {
		test.That(t, plane.At(i).Z, test.ShouldAlmostEqual, 2)
	}
}

func TestFromMesh(t *testing.T) {
	t.Run("connected mesh carries outward normals", func(t *testing.T) {
		center := r3.Vector{X: 1}
		cube := mesh.MakeCubeMesh(center, 0.5)
		cloud, err := FromMesh(cube)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.Size(), test.ShouldEqual, 8)
		test.That(t, cloud.HasNormals(), test.ShouldBeTrue)
		for i := 0; i < cloud.Size(); i++ {
			n := cloud.NormalAt(i)
			test.That(t, n.Norm(), test.ShouldAlmostEqual, 1, 1e-9)
			test.That(t, n.Dot(cloud.At(i).Sub(center)), test.ShouldBeGreaterThan, 0)
		}
	})

	t.Run("stray vertices are dropped", func(t *testing.T) {
		cube := mesh.MakeCubeMesh(r3.Vector{}, 1)
		cube.Vertices = append(cube.Vertices, r3.Vector{X: 50})
		cloud, err := FromMesh(cube)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.Size(), test.ShouldEqual, 8)
		test.That(t, cloud.MetaData().MaxX, test.ShouldAlmostEqual, 0.5)
	})

	t.Run("point soup converts unoriented", func(t *testing.T) {
		soup := mesh.NewEmpty()
		soup.Vertices = []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}}
		cloud, err := FromMesh(soup)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cloud.Size(), test.ShouldEqual, 3)
		test.That(t, cloud.HasNormals(), test.ShouldBeFalse)
	})

	t.Run("rejects nil, empty and invalid meshes", func(t *testing.T) {
		_, err := FromMesh(nil)
		test.That(t, errors.Is(err, ErrEmptyCloud), test.ShouldBeTrue)

		_, err = FromMesh(mesh.NewEmpty())
		test.That(t, errors.Is(err, ErrEmptyCloud), test.ShouldBeTrue)

		bad := mesh.NewEmpty()
		bad.Vertices = []r3.Vector{{}}
		bad.Indices = []uint32{0, 1, 2}
		_, err = FromMesh(bad)
		test.That(t, errors.Is(err, mesh.ErrInvalidMesh), test.ShouldBeTrue)
	})
}
