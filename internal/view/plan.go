package view

import "github.com/nurdwerks/jules-interface/internal/types"

type PlanDecision string

const (
	PlanProposed PlanDecision = "PROPOSED"
	PlanApproved PlanDecision = "APPROVED"
	PlanRejected PlanDecision = "REJECTED"
)

// PlanState pairs a generated plan with its decision, if one arrived.
type PlanState struct {
	Plan     *types.Activity
	Decision PlanDecision
}

// LatestPlan returns the state of the most recent PLAN activity in the
// timeline, or nil when no plan was generated. Only decisions arriving
// after that plan can pair with it: a decision pairs by plan id, and an
// approval without an id decides the plan it follows. Decisions that
// predate the latest plan belong to an earlier plan and never carry
// over, so a re-plan always starts out proposed.
func LatestPlan(activities []*types.Activity) *PlanState {
	planIdx := -1
	for i, activity := range activities {
		if activity.Kind() == types.ActivityKindPlan {
			planIdx = i
		}
	}
	if planIdx < 0 {
		return nil
	}
	plan := activities[planIdx]
	state := &PlanState{Plan: plan, Decision: PlanProposed}
	planID := ""
	if plan.PlanGenerated != nil && plan.PlanGenerated.Plan != nil {
		planID = plan.PlanGenerated.Plan.ID
	}
	for _, activity := range activities[planIdx+1:] {
		switch {
		case activity.PlanApproved != nil:
			if decides(activity.PlanApproved.PlanID, planID) {
				state.Decision = PlanApproved
			}
		case activity.PlanRejected != nil:
			if decides(activity.PlanRejected.PlanID, planID) {
				state.Decision = PlanRejected
			}
		}
	}
	return state
}

func decides(decisionID, planID string) bool {
	return decisionID == "" || decisionID == planID
}

// ApprovalVisible reports whether the approve affordance should be shown:
// exactly when the latest plan is still awaiting a decision.
func ApprovalVisible(activities []*types.Activity) bool {
	state := LatestPlan(activities)
	return state != nil && state.Decision == PlanProposed
}
