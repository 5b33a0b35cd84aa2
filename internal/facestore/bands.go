package facestore

// BandDef is one fixed confidence band of the similarity distribution.
// Bands are half-open [Low, next.Low) except the top band which includes 1.0.
type BandDef struct {
	Label string
	Low   float64
}

// Bands lists the five fixed confidence bands, highest first. The labels
// match the dashboard contract and must not change without coordinating
// with the analytics consumers.
var Bands = []BandDef{
	{Label: "0.90-1.00", Low: 0.90},
	{Label: "0.70-0.89", Low: 0.70},
	{Label: "0.50-0.69", Low: 0.50},
	{Label: "0.40-0.49", Low: 0.40},
	{Label: "0.00-0.39", Low: 0.00},
}

// BandIndex returns the index into Bands for a similarity score.
func BandIndex(similarity float64) int {
	for i, b := range Bands {
		if similarity >= b.Low {
			return i
		}
	}
	return len(Bands) - 1
}
