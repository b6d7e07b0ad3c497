package reactor

import (
	"errors"
	"fmt"
	"math"
)

// Temperature recovery: given trial total internal energy, mass and
// volume, find the temperature at which the phase's specific internal
// energy times mass matches the trial energy, at fixed density. The
// search runs in three stages: bracket-and-solve expansion around the
// previous temperature, full-range bisection as a fallback, and
// restore-last-good-and-fail if both stages come up empty.

const (
	// bracketFactor is the geometric expansion applied per step while
	// hunting for a sign change around the previous temperature.
	bracketFactor = 1.2
	// rootMaxIter caps the iteration count of each root-finding stage.
	rootMaxIter = 100
	// rootEps is the bracketing tolerance, 48 significant bits.
	rootEps = 1.0 / (1 << 47)
	// rootRtol is the acceptance check on the final bracket width.
	rootRtol = 1e-7
)

var (
	errNoBracket = errors.New("could not bracket the root")
	errSameSign  = errors.New("no sign change over the valid temperature range")
)

// solveTemperature recovers the phase temperature for trial energy u and
// density mass/vol. On total failure the phase is restored to the last
// good temperature before the error is returned; note that the trial mass
// and volume are retained, so the restored state is consistent only in
// temperature.
func (b *base) solveTemperature(u, mass, vol float64) error {
	rho := mass / vol
	uErr := func(t float64) (float64, error) {
		if err := b.phase.SetStateTD(t, rho); err != nil {
			return 0, err
		}
		return b.phase.IntEnergyMass()*mass - u, nil
	}

	t0 := b.phase.Temperature()
	lo, hi, err := bracketAndSolve(uErr, t0, b.phase.MinTemp(), b.phase.MaxTemp())
	if err != nil {
		// Bracketing can fail near the temperature limits of the
		// phase's equation of state; retry once with full-range
		// bisection before giving up.
		lo, hi, err = bisect(uErr, b.phase.MinTemp(), b.phase.MaxTemp())
		if err != nil {
			b.phase.SetStateTD(t0, rho)
			return fmt.Errorf("%w: reactor %q at U=%g, rho=%g: %v",
				ErrTemperatureRecovery, b.name, u, rho, err)
		}
	}
	if math.Abs(lo-hi) > rootRtol*lo {
		return fmt.Errorf("%w: reactor %q: [%g, %g]",
			ErrTemperatureRecovery, b.name, lo, hi)
	}
	return b.phase.SetStateTD(hi, rho)
}

// bracketAndSolve expands a bracket geometrically around guess until the
// rising function f changes sign, then bisects it down to rootEps. The
// search never probes outside [tmin, tmax].
func bracketAndSolve(f func(float64) (float64, error), guess, tmin, tmax float64) (float64, float64, error) {
	fg, err := f(guess)
	if err != nil {
		return 0, 0, err
	}
	if fg == 0 {
		return guess, guess, nil
	}

	var lo, hi, flo, fhi float64
	if fg > 0 {
		// Root lies below the guess.
		hi, fhi = guess, fg
		lo = guess / bracketFactor
		for i := 0; ; i++ {
			if i >= rootMaxIter || lo < tmin {
				return 0, 0, fmt.Errorf("%w below T=%g", errNoBracket, guess)
			}
			if flo, err = f(lo); err != nil {
				return 0, 0, err
			}
			if flo <= 0 {
				break
			}
			hi, fhi = lo, flo
			lo /= bracketFactor
		}
	} else {
		// Root lies above the guess.
		lo, flo = guess, fg
		hi = guess * bracketFactor
		for i := 0; ; i++ {
			if i >= rootMaxIter || hi > tmax {
				return 0, 0, fmt.Errorf("%w above T=%g", errNoBracket, guess)
			}
			if fhi, err = f(hi); err != nil {
				return 0, 0, err
			}
			if fhi >= 0 {
				break
			}
			lo, flo = hi, fhi
			hi *= bracketFactor
		}
	}
	return shrinkBracket(f, lo, hi, flo, fhi)
}

// bisect finds a sign change over [tmin, tmax] and shrinks it to rootEps.
func bisect(f func(float64) (float64, error), tmin, tmax float64) (float64, float64, error) {
	flo, err := f(tmin)
	if err != nil {
		return 0, 0, err
	}
	fhi, err := f(tmax)
	if err != nil {
		return 0, 0, err
	}
	if flo == 0 {
		return tmin, tmin, nil
	}
	if fhi == 0 {
		return tmax, tmax, nil
	}
	if (flo > 0) == (fhi > 0) {
		return 0, 0, fmt.Errorf("%w: [%g, %g]", errSameSign, tmin, tmax)
	}
	return shrinkBracket(f, tmin, tmax, flo, fhi)
}

// shrinkBracket bisects a sign-changing bracket to relative width rootEps.
func shrinkBracket(f func(float64) (float64, error), lo, hi, flo, fhi float64) (float64, float64, error) {
	for i := 0; i < rootMaxIter; i++ {
		if hi-lo <= rootEps*math.Min(math.Abs(lo), math.Abs(hi)) {
			return lo, hi, nil
		}
		mid := 0.5 * (lo + hi)
		if mid == lo || mid == hi {
			return lo, hi, nil
		}
		fm, err := f(mid)
		if err != nil {
			return 0, 0, err
		}
		if fm == 0 {
			return mid, mid, nil
		}
		if (fm > 0) == (fhi > 0) {
			hi, fhi = mid, fm
		} else {
			lo, flo = mid, fm
		}
	}
	return lo, hi, nil
}
