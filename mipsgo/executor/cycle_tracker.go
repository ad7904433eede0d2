package executor

import (
	"strings"
)

type cycleTrackerKind int

const (
	cycleTrackerStart cycleTrackerKind = iota
	cycleTrackerEnd
	cycleTrackerReportStart
	cycleTrackerReportEnd
)

var cycleTrackerKinds = map[string]cycleTrackerKind{
	"cycle-tracker-start":        cycleTrackerStart,
	"cycle-tracker-end":          cycleTrackerEnd,
	"cycle-tracker-report-start": cycleTrackerReportStart,
	"cycle-tracker-report-end":   cycleTrackerReportEnd,
}

type cycleTrackerCommand struct {
	kind cycleTrackerKind
	name string
}

// parseCycleTrackerCommand recognizes guest stdout writes of the form
// "cycle-tracker-start: name".
func parseCycleTrackerCommand(s string) (cycleTrackerCommand, bool) {
	command, name, ok := strings.Cut(s, ":")
	if !ok {
		return cycleTrackerCommand{}, false
	}
	kind, ok := cycleTrackerKinds[command]
	if !ok {
		return cycleTrackerCommand{}, false
	}
	return cycleTrackerCommand{kind: kind, name: strings.TrimSpace(name)}, true
}

func (e *Executor) handleCycleTrackerCommand(cmd cycleTrackerCommand) {
	switch cmd.kind {
	case cycleTrackerStart, cycleTrackerReportStart:
		e.startCycleTracker(cmd.name)
	case cycleTrackerEnd:
		e.endCycleTracker(cmd.name)
	case cycleTrackerReportEnd:
		if total, ok := e.endCycleTracker(cmd.name); ok {
			e.report.CycleTracker[cmd.name] += total
		}
	}
}

func (e *Executor) startCycleTracker(name string) {
	depth := len(e.cycleTracker)
	e.cycleTracker[name] = cycleSpan{start: e.globalClk, depth: depth}
	e.log.Info(strings.Repeat("│ ", depth) + "┌╴" + name)
}

// endCycleTracker closes a span and returns the instructions it covered.
func (e *Executor) endCycleTracker(name string) (uint64, bool) {
	span, ok := e.cycleTracker[name]
	if !ok {
		e.log.Warn("Cycle tracker span was never started", "name", name)
		return 0, false
	}
	delete(e.cycleTracker, name)
	total := e.globalClk - span.start
	e.log.Info(strings.Repeat("│ ", span.depth)+"└╴"+name, "cycles", total)
	return total, true
}
