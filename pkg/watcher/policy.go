package watcher

import "github.com/agenshield/skillcore/pkg/types"

// decideAction picks the watcher's response to a detected integrity
// violation (spec §4.7): if both modification/unexpected-file evidence and
// missing-file evidence are present, the stricter of onModified/onDeleted
// wins (quarantine > reinstall). Otherwise the single relevant lever
// applies.
func decideAction(policy types.Policy, hasModifiedOrUnexpected, hasMissing bool) types.PolicyAction {
	switch {
	case hasModifiedOrUnexpected && hasMissing:
		return stricter(policy.OnModified, policy.OnDeleted)
	case hasMissing:
		return policy.OnDeleted
	default:
		return policy.OnModified
	}
}

func stricter(a, b types.PolicyAction) types.PolicyAction {
	if a == types.ActionQuarantine || b == types.ActionQuarantine {
		return types.ActionQuarantine
	}
	return types.ActionReinstall
}
