// Package workflow drives the list volumes → probe → select → kill → re-probe
// cycle as a small state machine a CLI or any other front end can step
// through.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/terminate"
	"github.com/sigreer/devolume/internal/volume"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the current state.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrUnknownVolume means no listed volume matched the path or name.
	ErrUnknownVolume = errors.New("no such external volume")
	// ErrUnknownProcess means the PID is not in the current process list.
	ErrUnknownProcess = errors.New("no such process in current list")
)

// State is a step of the workflow.
type State int

const (
	StateIdle State = iota
	StateVolumesListed
	StateProcessesListed
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVolumesListed:
		return "volumes-listed"
	case StateProcessesListed:
		return "processes-listed"
	case StateTerminating:
		return "terminating"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// VolumeLister lists external volumes.
type VolumeLister interface {
	List(ctx context.Context) ([]volume.Volume, error)
}

// HandleProber lists processes holding handles under a path.
type HandleProber interface {
	Probe(ctx context.Context, path string) ([]handles.ProcessInfo, error)
}

// Terminator kills a PID set.
type Terminator interface {
	Terminate(ctx context.Context, pids []int) terminate.Outcome
}

// Batch describes one completed termination pass.
type Batch struct {
	Volume    volume.Volume
	Processes []handles.ProcessInfo
	Outcome   terminate.Outcome
	StartedAt time.Time
	EndedAt   time.Time
}

// Recorder persists completed batches.
type Recorder interface {
	RecordBatch(ctx context.Context, b Batch) error
}

// Session holds one user's walk through the workflow. It is not safe for
// concurrent use.
type Session struct {
	lister     VolumeLister
	prober     HandleProber
	terminator Terminator
	recorder   Recorder

	state     State
	volumes   []volume.Volume
	volume    volume.Volume
	processes []handles.ProcessInfo
}

// NewSession creates an idle session.
func NewSession(lister VolumeLister, prober HandleProber, terminator Terminator) *Session {
	return &Session{
		lister:     lister,
		prober:     prober,
		terminator: terminator,
	}
}

// SetRecorder attaches an audit recorder; nil disables recording.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

func (s *Session) State() State { return s.state }

// Volumes returns the last listed volumes.
func (s *Session) Volumes() []volume.Volume {
	return append([]volume.Volume(nil), s.volumes...)
}

// Volume returns the selected volume; only meaningful once processes are
// listed.
func (s *Session) Volume() volume.Volume { return s.volume }

// Processes returns a copy of the current process list.
func (s *Session) Processes() []handles.ProcessInfo {
	return append([]handles.ProcessInfo(nil), s.processes...)
}

// ListVolumes enumerates volumes and moves to VolumesListed from any state
// except Terminating, discarding any selected volume. A listing error is a
// diagnostic: the session still moves on, with no volumes.
func (s *Session) ListVolumes(ctx context.Context) ([]volume.Volume, error) {
	if s.state == StateTerminating {
		return nil, fmt.Errorf("%w: cannot list volumes while %s", ErrInvalidState, s.state)
	}

	volumes, err := s.lister.List(ctx)
	s.volumes = volumes
	s.volume = volume.Volume{}
	s.processes = nil
	s.state = StateVolumesListed
	return s.Volumes(), err
}

// SelectVolume picks a listed volume by path or, failing that, by display
// name, and probes it. A probe error is returned alongside the (empty)
// process list; the session still reaches ProcessesListed.
func (s *Session) SelectVolume(ctx context.Context, key string) ([]handles.ProcessInfo, error) {
	if s.state != StateVolumesListed {
		return nil, fmt.Errorf("%w: select volume requires %s, have %s", ErrInvalidState, StateVolumesListed, s.state)
	}

	v, ok := s.findVolume(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVolume, key)
	}

	s.volume = v
	s.state = StateProcessesListed
	return s.probe(ctx)
}

func (s *Session) findVolume(key string) (volume.Volume, bool) {
	for _, v := range s.volumes {
		if v.Path == key {
			return v, true
		}
	}
	for _, v := range s.volumes {
		if v.Name == key {
			return v, true
		}
	}
	return volume.Volume{}, false
}

// Refresh re-probes the selected volume. Selections made on PIDs that are
// still present are kept.
func (s *Session) Refresh(ctx context.Context) ([]handles.ProcessInfo, error) {
	if s.state != StateProcessesListed {
		return nil, fmt.Errorf("%w: refresh requires %s, have %s", ErrInvalidState, StateProcessesListed, s.state)
	}
	return s.probe(ctx)
}

func (s *Session) probe(ctx context.Context) ([]handles.ProcessInfo, error) {
	previous := make(map[int]bool, len(s.processes))
	for _, p := range s.processes {
		previous[p.PID] = p.Selected
	}

	processes, err := s.prober.Probe(ctx, s.volume.Path)
	for i := range processes {
		if selected, ok := previous[processes[i].PID]; ok {
			processes[i].Selected = selected
		}
	}
	s.processes = processes
	return s.Processes(), err
}

// Toggle flips the selection of pid.
func (s *Session) Toggle(pid int) error {
	p, err := s.lookup(pid)
	if err != nil {
		return err
	}
	p.Selected = !p.Selected
	return nil
}

// SetSelected sets the selection of pid.
func (s *Session) SetSelected(pid int, selected bool) error {
	p, err := s.lookup(pid)
	if err != nil {
		return err
	}
	p.Selected = selected
	return nil
}

// SelectAll sets every process's selection.
func (s *Session) SelectAll(selected bool) error {
	if s.state != StateProcessesListed {
		return fmt.Errorf("%w: selection requires %s, have %s", ErrInvalidState, StateProcessesListed, s.state)
	}
	for i := range s.processes {
		s.processes[i].Selected = selected
	}
	return nil
}

func (s *Session) lookup(pid int) (*handles.ProcessInfo, error) {
	if s.state != StateProcessesListed {
		return nil, fmt.Errorf("%w: selection requires %s, have %s", ErrInvalidState, StateProcessesListed, s.state)
	}
	for i := range s.processes {
		if s.processes[i].PID == pid {
			return &s.processes[i], nil
		}
	}
	return nil, fmt.Errorf("%w: pid %d", ErrUnknownProcess, pid)
}

// SelectedPIDs returns the PIDs currently marked for termination.
func (s *Session) SelectedPIDs() []int {
	var pids []int
	for _, p := range s.processes {
		if p.Selected {
			pids = append(pids, p.PID)
		}
	}
	return pids
}

// Terminate kills the selected processes and then always re-probes the same
// volume. The outcome is returned together with the refreshed list; err
// carries only the re-probe diagnostic.
func (s *Session) Terminate(ctx context.Context) (terminate.Outcome, []handles.ProcessInfo, error) {
	if s.state != StateProcessesListed {
		return terminate.Outcome{}, nil, fmt.Errorf("%w: terminate requires %s, have %s", ErrInvalidState, StateProcessesListed, s.state)
	}

	var targets []handles.ProcessInfo
	for _, p := range s.processes {
		if p.Selected {
			targets = append(targets, p)
		}
	}

	s.state = StateTerminating
	started := time.Now()
	outcome := s.terminator.Terminate(ctx, s.SelectedPIDs())
	ended := time.Now()

	log.Info().
		Str("volume", s.volume.Path).
		Int("succeeded", outcome.SuccessCount).
		Int("failed", outcome.FailCount).
		Msg("termination pass complete")

	if s.recorder != nil && len(targets) > 0 {
		batch := Batch{
			Volume:    s.volume,
			Processes: targets,
			Outcome:   outcome,
			StartedAt: started,
			EndedAt:   ended,
		}
		if err := s.recorder.RecordBatch(ctx, batch); err != nil {
			log.Warn().Err(err).Msg("failed to record termination batch")
		}
	}

	// Killed PIDs are gone; anything that survives keeps its selection.
	s.state = StateProcessesListed
	processes, err := s.probe(ctx)
	return outcome, processes, err
}

// Back returns to the volume list, dropping the process list.
func (s *Session) Back() error {
	if s.state != StateProcessesListed {
		return fmt.Errorf("%w: back requires %s, have %s", ErrInvalidState, StateProcessesListed, s.state)
	}
	s.processes = nil
	s.volume = volume.Volume{}
	s.state = StateVolumesListed
	return nil
}
