package queue

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskPriority(t *testing.T) {
	assert.Equal(t, uint8(1), taskPriority(map[string]interface{}{}))
	assert.Equal(t, uint8(1), taskPriority(map[string]interface{}{"priority": "high"}))
	assert.Equal(t, uint8(3), taskPriority(map[string]interface{}{"priority": 3}))
	assert.Equal(t, uint8(0), taskPriority(map[string]interface{}{"priority": -4}))
	assert.Equal(t, uint8(10), taskPriority(map[string]interface{}{"priority": 42}))
}

func TestShouldRequeue(t *testing.T) {
	transient := errors.New("redis down")
	assert.True(t, shouldRequeue(false, transient))
	assert.False(t, shouldRequeue(true, transient))

	invalid := fmt.Errorf("%w: missing owner_id", ErrUnprocessable)
	assert.False(t, shouldRequeue(false, invalid))
}
