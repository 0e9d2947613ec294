package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towow-net/towow/pkg/models"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := New()
	s := models.NewSession(&models.DemandSnapshot{RawIntent: "x"})

	reg.Register(s)

	assert.Equal(t, 1, reg.Len())
	assert.Same(t, s, reg.Get(s.NegotiationID))
	assert.Nil(t, reg.Get("missing"))
}

func TestRegistry_ParentChildLinkage(t *testing.T) {
	reg := New()
	parent := models.NewSession(&models.DemandSnapshot{RawIntent: "parent"})
	child1 := models.NewSubSession(parent, "gap one")
	child2 := models.NewSubSession(parent, "gap two")

	reg.Register(parent)
	reg.Register(child1)
	reg.Register(child2)

	children := reg.Children(parent.NegotiationID)
	require.Len(t, children, 2)
	assert.Equal(t, child1.NegotiationID, children[0])
	assert.Equal(t, child2.NegotiationID, children[1])
	assert.Empty(t, reg.Children(child1.NegotiationID))
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	reg := New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Register(models.NewSession(&models.DemandSnapshot{RawIntent: "x"}))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, reg.Len())
	assert.Len(t, reg.List(), 50)
}
