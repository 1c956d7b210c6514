package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenshield/skillcore/pkg/types"
)

func TestDecideAction_ModifiedOnly(t *testing.T) {
	policy := types.Policy{OnModified: types.ActionReinstall, OnDeleted: types.ActionQuarantine}
	assert.Equal(t, types.ActionReinstall, decideAction(policy, true, false))
}

func TestDecideAction_MissingOnly(t *testing.T) {
	policy := types.Policy{OnModified: types.ActionReinstall, OnDeleted: types.ActionQuarantine}
	assert.Equal(t, types.ActionQuarantine, decideAction(policy, false, true))
}

func TestDecideAction_BothStricterWins(t *testing.T) {
	policy := types.Policy{OnModified: types.ActionReinstall, OnDeleted: types.ActionQuarantine}
	assert.Equal(t, types.ActionQuarantine, decideAction(policy, true, true))
}

func TestDecideAction_BothButNeitherIsQuarantine(t *testing.T) {
	policy := types.Policy{OnModified: types.ActionReinstall, OnDeleted: types.ActionReinstall}
	assert.Equal(t, types.ActionReinstall, decideAction(policy, true, true))
}

func TestStricter_QuarantineAlwaysWins(t *testing.T) {
	assert.Equal(t, types.ActionQuarantine, stricter(types.ActionQuarantine, types.ActionReinstall))
	assert.Equal(t, types.ActionQuarantine, stricter(types.ActionReinstall, types.ActionQuarantine))
	assert.Equal(t, types.ActionReinstall, stricter(types.ActionReinstall, types.ActionReinstall))
}
