package market

// PricePoint is one simulated price sample inside a candle.
type PricePoint struct {
	Offset int     // ordinal position within the path
	Price  float64
}

// Path is the synthesized tick sequence for exactly one candle. A valid path
// starts at the candle open, ends at the close, touches both the high and the
// low, and never leaves [low, high]. Paths are immutable after generation.
type Path []PricePoint

// MinPrice returns the lowest price on the path. Zero for an empty path.
func (p Path) MinPrice() float64 {
	if len(p) == 0 {
		return 0
	}
	min := p[0].Price
	for _, pt := range p[1:] {
		if pt.Price < min {
			min = pt.Price
		}
	}
	return min
}

// MaxPrice returns the highest price on the path. Zero for an empty path.
func (p Path) MaxPrice() float64 {
	if len(p) == 0 {
		return 0
	}
	max := p[0].Price
	for _, pt := range p[1:] {
		if pt.Price > max {
			max = pt.Price
		}
	}
	return max
}
