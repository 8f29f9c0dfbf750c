package workflow

import "sift/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	triage := &laneState{kind: laneTriage, name: "triage"}
	dispatch := &laneState{kind: laneDispatch, name: "dispatch"}

	if set.Extractor != nil {
		triage.stages = append(triage.stages, pipelineStage{
			name:             "extract",
			handler:          set.Extractor,
			startStatuses:    []queue.Status{queue.StatusReceived},
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusContextExtracted,
		})
	}
	if set.Classifier != nil {
		triage.stages = append(triage.stages, pipelineStage{
			name:             "classify",
			handler:          set.Classifier,
			startStatuses:    []queue.Status{queue.StatusContextExtracted},
			processingStatus: queue.StatusClassifying,
			doneStatus:       queue.StatusClassified,
		})
	}
	if set.Scorer != nil {
		triage.stages = append(triage.stages, pipelineStage{
			name:             "score",
			handler:          set.Scorer,
			startStatuses:    []queue.Status{queue.StatusClassified},
			processingStatus: queue.StatusScoring,
			doneStatus:       queue.StatusScored,
		})
	}
	if set.Router != nil {
		triage.stages = append(triage.stages, pipelineStage{
			name:             "notify",
			handler:          set.Router,
			startStatuses:    []queue.Status{queue.StatusScored},
			processingStatus: queue.StatusNotifying,
			doneStatus:       queue.StatusAwaitingApproval,
		})
	}
	if set.Executor != nil {
		dispatch.stages = append(dispatch.stages, pipelineStage{
			name:             "execute",
			handler:          set.Executor,
			startStatuses:    []queue.Status{queue.StatusApproved, queue.StatusRejected},
			processingStatus: queue.StatusExecuting,
			doneStatus:       queue.StatusCompleted,
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(triage.stages) > 0 {
		triage.finalize()
		lanes[triage.kind] = triage
		order = append(order, triage.kind)
	}
	if len(dispatch.stages) > 0 {
		dispatch.finalize()
		lanes[dispatch.kind] = dispatch
		order = append(order, dispatch.kind)
	}

	for _, lane := range lanes {
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
