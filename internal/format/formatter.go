package format

import "ektifabot/internal/domain"

const defaultMaxUnitLen = 4000

// Formatter converts a reply body (plus optional image reference) into
// transport-sized delivery units.
type Formatter struct {
	maxUnitLen int // max characters per text unit
}

func New(maxUnitLen int) *Formatter {
	if maxUnitLen <= 0 {
		maxUnitLen = defaultMaxUnitLen
	}
	return &Formatter{maxUnitLen: maxUnitLen}
}

// Format splits body into contiguous text units of at most maxUnitLen
// characters. Lengths are counted in runes so a multi-byte sequence is never
// split. When imageRef is non-empty the sequence begins with a photo unit.
// Concatenating all text unit payloads in order reproduces body exactly.
func (f *Formatter) Format(body, imageRef string) []domain.DeliveryUnit {
	var units []domain.DeliveryUnit
	if imageRef != "" {
		units = append(units, domain.DeliveryUnit{Kind: domain.UnitPhoto, Payload: imageRef})
	}

	runes := []rune(body)
	for start := 0; start < len(runes); start += f.maxUnitLen {
		end := start + f.maxUnitLen
		if end > len(runes) {
			end = len(runes)
		}
		units = append(units, domain.DeliveryUnit{
			Kind:    domain.UnitText,
			Payload: string(runes[start:end]),
		})
	}
	return units
}
