package models

import "math"

// MgdlPerMmol converts between the two glucose concentration scales.
// mmol/L is the canonical unit for storage and computation; mg/dL values
// are derived for display and export.
const MgdlPerMmol = 18.0

// MmolToMgdl converts a canonical mmol/L value to mg/dL.
func MmolToMgdl(mmol float64) float64 {
	return mmol * MgdlPerMmol
}

// MgdlToMmol converts a mg/dL value to the canonical mmol/L scale.
func MgdlToMmol(mgdl float64) float64 {
	return mgdl / MgdlPerMmol
}

// DisplayMgdl rounds a converted mg/dL value to the nearest integer.
// The rounding is display-only: converting the integer back to mmol/L
// does not reproduce the original reading.
func DisplayMgdl(mmol float64) int {
	return int(math.Round(MmolToMgdl(mmol)))
}
