package meshrepair

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestMethodString(t *testing.T) {
	for method, want := range map[Method]string{
		MethodAuto:    "auto",
		MethodVoxel:   "voxel",
		MethodPoisson: "poisson",
		MethodNeural:  "neural",
		MethodHybrid:  "hybrid",
		Method(99):    "unknown",
	} {
		test.That(t, method.String(), test.ShouldEqual, want)
	}
}

func TestParseMethod(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Method
	}{
		{"auto", MethodAuto},
		{"voxel", MethodVoxel},
		{"poisson", MethodPoisson},
		{"implicit", MethodPoisson},
		{"neural", MethodNeural},
		{"hybrid", MethodHybrid},
		{"  Voxel ", MethodVoxel},
		{"POISSON", MethodPoisson},
	} {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMethod(tc.in)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldEqual, tc.want)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseMethod("marching cubes")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, errors.Is(err, ErrUnknownMethod), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"marching cubes"`)
	})

	t.Run("round trip", func(t *testing.T) {
		for _, method := range []Method{MethodAuto, MethodVoxel, MethodPoisson, MethodNeural, MethodHybrid} {
			got, err := ParseMethod(method.String())
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldEqual, method)
		}
	})
}
