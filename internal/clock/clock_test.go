package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystem_Ticker(t *testing.T) {
	var c Clock = System{}
	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()

	select {
	case at := <-tk.C():
		assert.False(t, at.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no tick within a second")
	}
	assert.WithinDuration(t, time.Now(), c.Now(), time.Second)
}
