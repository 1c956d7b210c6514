package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agenshield/skillcore/pkg/types"
)

func TestComputeContentHash_OrderIndependent(t *testing.T) {
	a := []types.SkillFile{
		{RelativePath: "b.md", FileHash: "bbbb"},
		{RelativePath: "a.md", FileHash: "aaaa"},
	}
	b := []types.SkillFile{
		{RelativePath: "a.md", FileHash: "aaaa"},
		{RelativePath: "b.md", FileHash: "bbbb"},
	}
	assert.Equal(t, computeContentHash(a), computeContentHash(b))
}

func TestComputeContentHash_ChangesOnRename(t *testing.T) {
	original := []types.SkillFile{
		{RelativePath: "a.md", FileHash: "aaaa"},
		{RelativePath: "b.md", FileHash: "bbbb"},
	}
	renamed := []types.SkillFile{
		{RelativePath: "c.md", FileHash: "aaaa"},
		{RelativePath: "b.md", FileHash: "bbbb"},
	}
	assert.NotEqual(t, computeContentHash(original), computeContentHash(renamed))
}

func TestComputeContentHash_ChangesOnAddOrRemove(t *testing.T) {
	one := []types.SkillFile{{RelativePath: "a.md", FileHash: "aaaa"}}
	two := []types.SkillFile{
		{RelativePath: "a.md", FileHash: "aaaa"},
		{RelativePath: "b.md", FileHash: "bbbb"},
	}
	assert.NotEqual(t, computeContentHash(one), computeContentHash(two))
}

func TestComputeContentHash_Deterministic(t *testing.T) {
	files := []types.SkillFile{
		{RelativePath: "SKILL.md", FileHash: "aaaa"},
		{RelativePath: "scripts/run.sh", FileHash: "bbbb"},
		{RelativePath: "README.md", FileHash: "cccc"},
	}
	assert.Equal(t, computeContentHash(files), computeContentHash(files))
	assert.Len(t, computeContentHash(files), 64)
}

func TestHashBytes(t *testing.T) {
	h1 := hashBytes([]byte("hello"))
	h2 := hashBytes([]byte("hello"))
	h3 := hashBytes([]byte("world"))
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
