package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkFSMOrder_Additive(t *testing.T) {
	v := LineValues{FSMOrderIDs: []string{"fo-1"}}

	v.LinkFSMOrder("fo-2")
	v.LinkFSMOrder("fo-2")
	v.LinkFSMOrder("")

	assert.Equal(t, []string{"fo-1", "fo-2"}, v.FSMOrderIDs)
}

func TestOptions(t *testing.T) {
	var v LineValues
	for _, opt := range []Option{WithAccount("acc-400"), WithSequence(7)} {
		opt(&v)
	}

	assert.Equal(t, "acc-400", v.AccountID)
	assert.Equal(t, 7, v.Sequence)
}
