package workflow

import (
	"log/slog"

	"sift/internal/queue"
	"sift/internal/stage"
)

// StageSet bundles the concrete workflow handlers the manager orchestrates.
type StageSet struct {
	Extractor  stage.Handler
	Classifier stage.Handler
	Scorer     stage.Handler
	Router     stage.Handler
	Executor   stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatuses    []queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

type laneKind string

const (
	laneTriage   laneKind = "triage"
	laneDispatch laneKind = "dispatch"
)

type laneState struct {
	kind               laneKind
	name               string
	stages             []pipelineStage
	statusOrder        []queue.Status
	stageByStart       map[queue.Status]pipelineStage
	processingStatuses []queue.Status
	logger             *slog.Logger
	runReclaimer       bool
}

func (l *laneState) finalize() {
	if l == nil {
		return
	}
	l.stageByStart = make(map[queue.Status]pipelineStage, len(l.stages))
	l.statusOrder = make([]queue.Status, 0, len(l.stages))
	seenProcessing := make(map[queue.Status]struct{})
	for _, stg := range l.stages {
		for _, start := range stg.startStatuses {
			l.stageByStart[start] = stg
			l.statusOrder = append(l.statusOrder, start)
		}
		if stg.processingStatus != "" {
			if _, ok := seenProcessing[stg.processingStatus]; !ok {
				l.processingStatuses = append(l.processingStatuses, stg.processingStatus)
				seenProcessing[stg.processingStatus] = struct{}{}
			}
		}
	}
}

func (l *laneState) stageForStatus(status queue.Status) (pipelineStage, bool) {
	if l == nil {
		return pipelineStage{}, false
	}
	stg, ok := l.stageByStart[status]
	return stg, ok
}
