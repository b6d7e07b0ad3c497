// Package trajectory records reactor network solutions over time and
// reads and writes them as CSV or JSONL files.
package trajectory

import (
	"errors"
	"fmt"

	"github.com/LostSunset/cantera/network"
)

var (
	ErrNoSamples      = errors.New("trajectory: no samples recorded")
	ErrColumnMismatch = errors.New("trajectory: sample length does not match columns")
	ErrUnknownColumn  = errors.New("trajectory: unknown column")
)

// Sample is the network state at one value of the independent variable.
type Sample struct {
	Time   float64
	Values []float64
}

// Trajectory is an ordered series of samples sharing one column layout.
type Trajectory struct {
	Columns []string
	Samples []Sample
}

// NumSamples returns the number of recorded samples.
func (tr *Trajectory) NumSamples() int { return len(tr.Samples) }

// Times returns the sample times.
func (tr *Trajectory) Times() []float64 {
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Time
	}
	return out
}

// Variable extracts the series of the named column.
func (tr *Trajectory) Variable(name string) ([]float64, error) {
	col := -1
	for i, c := range tr.Columns {
		if c == name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]float64, len(tr.Samples))
	for i, s := range tr.Samples {
		out[i] = s.Values[col]
	}
	return out, nil
}

// Final returns the last sample.
func (tr *Trajectory) Final() (Sample, error) {
	if len(tr.Samples) == 0 {
		return Sample{}, ErrNoSamples
	}
	return tr.Samples[len(tr.Samples)-1], nil
}

// Recorder samples the full state vector of a network.
type Recorder struct {
	net  *network.ReactorNet
	traj *Trajectory
	buf  []float64
}

// NewRecorder creates a recorder over an initialized network, naming
// columns "reactor: component".
func NewRecorder(net *network.ReactorNet) (*Recorder, error) {
	if net.NEq() == 0 {
		if err := net.Initialize(); err != nil {
			return nil, err
		}
	}
	nv := net.NEq()
	cols := make([]string, nv)
	for i := 0; i < nv; i++ {
		name, err := net.ComponentName(i)
		if err != nil {
			return nil, err
		}
		cols[i] = name
	}
	return &Recorder{
		net:  net,
		traj: &Trajectory{Columns: cols},
		buf:  make([]float64, nv),
	}, nil
}

// Sample appends the network's current state to the trajectory.
func (r *Recorder) Sample() error {
	if err := r.net.GetState(r.buf); err != nil {
		return err
	}
	r.traj.Samples = append(r.traj.Samples, Sample{
		Time:   r.net.SimTime(),
		Values: append([]float64(nil), r.buf...),
	})
	return nil
}

// RecordUntil samples the initial state and then advances the network in
// increments of dt until t, sampling after each advance.
func (r *Recorder) RecordUntil(t, dt float64) error {
	if len(r.traj.Samples) == 0 {
		if err := r.Sample(); err != nil {
			return err
		}
	}
	for r.net.SimTime() < t {
		next := r.net.SimTime() + dt
		if next > t {
			next = t
		}
		if err := r.net.Advance(next); err != nil {
			return err
		}
		if err := r.Sample(); err != nil {
			return err
		}
	}
	return nil
}

// Trajectory returns the recorded series.
func (r *Recorder) Trajectory() *Trajectory { return r.traj }
