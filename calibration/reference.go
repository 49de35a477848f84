package calibration

import (
	"github.com/pkg/errors"
)

// ReferenceObject is a rigid, flat object of known physical size that a
// calibration session measures against.
type ReferenceObject struct {
	Name string `json:"name"`
	// WidthM is the physical width in meters of the object's top edge as
	// detected, the length the scale factor is derived from.
	WidthM float64 `json:"width_m"`
	// HeightM is the physical height in meters, kept for diagnostics.
	HeightM float64 `json:"height_m"`
}

// DefaultReferenceCard returns an ISO/IEC 7810 ID-1 card, the format of
// bank and ID cards, which nearly every operator has on hand.
func DefaultReferenceCard() ReferenceObject {
	return ReferenceObject{
		Name:    "iso-id1-card",
		WidthM:  0.0856,
		HeightM: 0.05398,
	}
}

// Validate returns an error if the object cannot serve as a measurement
// reference.
func (ref ReferenceObject) Validate() error {
	if ref.Name == "" {
		return errors.New("reference object must have a name")
	}
	if ref.WidthM <= 0 {
		return errors.Errorf("reference width must be positive, got %v", ref.WidthM)
	}
	if ref.HeightM <= 0 {
		return errors.Errorf("reference height must be positive, got %v", ref.HeightM)
	}
	return nil
}
