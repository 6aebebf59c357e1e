package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sigreer/devolume/internal/workflow"
)

// parsePIDs parses a comma separated PID list such as "501, 900".
func parsePIDs(s string) ([]int, error) {
	var pids []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pid, err := strconv.Atoi(field)
		if err != nil || pid <= 0 {
			return nil, fmt.Errorf("invalid pid %q", field)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// applySelection narrows the session's selection. A non-empty only list
// selects exactly those PIDs; exclude then deselects. PIDs that are not
// in the process list are returned.
func applySelection(s *workflow.Session, only, exclude []int) ([]int, error) {
	var missing []int
	set := func(pid int, selected bool) error {
		err := s.SetSelected(pid, selected)
		if errors.Is(err, workflow.ErrUnknownProcess) {
			missing = append(missing, pid)
			return nil
		}
		return err
	}

	if len(only) > 0 {
		if err := s.SelectAll(false); err != nil {
			return nil, err
		}
		for _, pid := range only {
			if err := set(pid, true); err != nil {
				return nil, err
			}
		}
	}
	for _, pid := range exclude {
		if err := set(pid, false); err != nil {
			return nil, err
		}
	}
	return missing, nil
}
