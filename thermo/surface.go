package thermo

import "fmt"

// SurfSpecies describes one adsorbed surface species.
type SurfSpecies struct {
	Name string
	// Size is the number of sites the species occupies.
	Size float64
}

// SurfPhase represents a two-dimensional phase of adsorbed species on a
// reactor wall. Its state is a vector of site coverages; the temperature
// is slaved to the bulk phase of the reactor the surface is attached to.
type SurfPhase struct {
	name        string
	species     []SurfSpecies
	index       map[string]int
	siteDensity float64 // kmol of sites per m^2
	coverages   []float64
	temp        float64
}

// NewSurfPhase creates a surface phase with the whole site pool assigned
// to the first species.
func NewSurfPhase(name string, siteDensity float64, species []SurfSpecies) *SurfPhase {
	s := &SurfPhase{
		name:        name,
		species:     species,
		index:       make(map[string]int, len(species)),
		siteDensity: siteDensity,
		coverages:   make([]float64, len(species)),
		temp:        300.0,
	}
	for k, sp := range species {
		s.index[sp.Name] = k
	}
	if len(s.coverages) > 0 {
		s.coverages[0] = 1.0
	}
	return s
}

func (s *SurfPhase) Name() string  { return s.name }
func (s *SurfPhase) NSpecies() int { return len(s.species) }

func (s *SurfPhase) SpeciesName(k int) string {
	if k < 0 || k >= len(s.species) {
		return ""
	}
	return s.species[k].Name
}

func (s *SurfPhase) SpeciesIndex(name string) int {
	if k, ok := s.index[name]; ok {
		return k
	}
	return -1
}

// SiteDensity returns the total site density in kmol/m^2.
func (s *SurfPhase) SiteDensity() float64 { return s.siteDensity }

// Size returns the number of sites occupied by species k.
func (s *SurfPhase) Size(k int) float64 {
	if k < 0 || k >= len(s.species) {
		return 1
	}
	return s.species[k].Size
}

func (s *SurfPhase) Temperature() float64     { return s.temp }
func (s *SurfPhase) SetTemperature(t float64) { s.temp = t }

func (s *SurfPhase) GetCoverages(theta []float64) { copy(theta, s.coverages) }

// SetCoveragesNoNorm sets coverages without renormalizing the site sum.
// Trial coverages from the integrator need not sum to one.
func (s *SurfPhase) SetCoveragesNoNorm(theta []float64) error {
	if len(theta) != len(s.coverages) {
		return fmt.Errorf("%w: got %d coverages for %d surface species",
			ErrStateSize, len(theta), len(s.coverages))
	}
	copy(s.coverages, theta)
	return nil
}

func (s *SurfPhase) Coverages() []float64 { return s.coverages }

// Concentration returns the surface concentration of species k in kmol/m^2.
func (s *SurfPhase) Concentration(k int) float64 {
	return s.siteDensity * s.coverages[k] / s.Size(k)
}
