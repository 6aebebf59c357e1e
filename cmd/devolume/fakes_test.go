package main

import (
	"context"
	"slices"
	"strings"

	"github.com/sigreer/devolume/internal/handles"
	"github.com/sigreer/devolume/internal/terminate"
	"github.com/sigreer/devolume/internal/volume"
	"github.com/sigreer/devolume/internal/workflow"
)

var backup = volume.Volume{Name: "Backup", Path: "/Volumes/Backup"}

type staticLister []volume.Volume

func (l staticLister) List(context.Context) ([]volume.Volume, error) {
	return append([]volume.Volume{}, l...), nil
}

// liveProber reports the processes in alive that hold path.
type liveProber struct {
	alive map[int]string
}

func (p *liveProber) Probe(context.Context, string) ([]handles.ProcessInfo, error) {
	procs := []handles.ProcessInfo{}
	for pid, name := range p.alive {
		procs = append(procs, handles.ProcessInfo{Name: name, PID: pid, Selected: true})
	}
	slices.SortFunc(procs, func(a, b handles.ProcessInfo) int { return a.PID - b.PID })
	return procs, nil
}

// dropKiller removes killed PIDs from the prober's live set; PIDs in
// stubborn fail with ErrPermission.
type dropKiller struct {
	prober   *liveProber
	stubborn map[int]bool
	killed   []int
}

func (k *dropKiller) Kill(_ context.Context, pid int) error {
	if k.stubborn[pid] {
		return terminate.ErrPermission
	}
	k.killed = append(k.killed, pid)
	delete(k.prober.alive, pid)
	return nil
}

func newFixture(alive map[int]string, stubborn ...int) (*workflow.Session, *dropKiller) {
	prober := &liveProber{alive: alive}
	killer := &dropKiller{prober: prober, stubborn: map[int]bool{}}
	for _, pid := range stubborn {
		killer.stubborn[pid] = true
	}
	s := workflow.NewSession(staticLister{backup}, prober, terminate.NewExecutor(killer))
	return s, killer
}

func input(lines ...string) *prompter {
	return newPrompter(strings.NewReader(strings.Join(lines, "\n")+"\n"), &strings.Builder{})
}
