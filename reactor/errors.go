package reactor

import "errors"

var (
	// Configuration errors.
	ErrEmptyReactor       = errors.New("reactor: contents not set")
	ErrNotInNetwork       = errors.New("reactor: reactor is not part of a network")
	ErrChemistryDisabled  = errors.New("reactor: chemistry is disabled")
	ErrSteadyEnergy       = errors.New("reactor: steady solver requires the energy equation to be enabled")
	ErrSteadySurfaces     = errors.New("reactor: steady solver cannot be used with reactor surfaces")
	ErrSteadyUnsupported  = errors.New("reactor: steady solver not supported for this reactor type")
	ErrSurfaceUnsupported = errors.New("reactor: surfaces are not supported for this reactor type")
	ErrNotODE             = errors.New("reactor: reactor does not provide an ODE right-hand side")
	ErrNotDAE             = errors.New("reactor: reactor does not provide a DAE residual")
	ErrDeviceNotReady     = errors.New("reactor: flow device is not ready; some parameters have not been set")

	// Index/range errors. These are raised before any state is mutated.
	ErrComponentBounds  = errors.New("reactor: component index out of range")
	ErrNoComponent      = errors.New("reactor: no such component")
	ErrSensitivityRange = errors.New("reactor: sensitivity target out of range")

	// Numerical recovery failure. The reactor restores its last good
	// temperature before this is returned.
	ErrTemperatureRecovery = errors.New("reactor: temperature recovery failed")
)

const (
	// BigNumber bounds otherwise unbounded state components.
	BigNumber = 1e300
	// Tiny is the slack allowed below zero for species components.
	Tiny = 1e-20
)
