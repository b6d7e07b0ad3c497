package network

import "errors"

var (
	ErrNoReactors      = errors.New("network: no reactors in network")
	ErrMixedSystems    = errors.New("network: cannot mix reactors governed by ODEs and DAEs")
	ErrMixedVariables  = errors.New("network: cannot mix reactors using time and distance as independent variables")
	ErrFlowAlone       = errors.New("network: flow reactors must be used alone")
	ErrNotTime         = errors.New("network: time is not the independent variable for this network")
	ErrNotDistance     = errors.New("network: distance is not the independent variable for this network")
	ErrNotFinite       = errors.New("network: non-finite value")
	ErrSensFrozen      = errors.New("network: sensitivity parameters cannot be added after the integrator has been initialized")
	ErrSensIndex       = errors.New("network: sensitivity parameter index out of range")
	ErrNoSensitivities = errors.New("network: integrator does not carry sensitivities")
	ErrIndexBounds     = errors.New("network: component index out of bounds")
	ErrNoPrecon        = errors.New("network: preconditioning requires mole-based reactors")
	ErrDAELimits       = errors.New("network: advance limits are not supported for DAE networks")
)

// SmallNumber guards divisions by near-zero solution components.
const SmallNumber = 1e-300
