package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hrsync/internal/ir"
)

func TestCheckCandidate_FirstBadFieldIsStable(t *testing.T) {
	attrs := ir.IRObject{
		ir.AttrName:  ir.IRInt(1),
		ir.AttrEmail: ir.IRInt(2),
		ir.AttrStage: ir.IRBool(true),
		ir.AttrJobID: ir.IRInt(3),
	}
	for range 50 {
		_, err := checkCandidate("createEntity", attrs)
		require.Error(t, err)
		assert.True(t, ir.IsValidation(err))
		assert.Equal(t, ir.AttrName, irError(t, err).Field)
	}

	delete(attrs, ir.AttrName)
	_, err := checkCandidate("createEntity", attrs)
	assert.Equal(t, ir.AttrEmail, irError(t, err).Field)
}
