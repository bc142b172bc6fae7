package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/fedcomp/internal/types"
)

func TestNewComputation(t *testing.T) {
	c := sampleComputation(t)

	assert.Equal(t, "sum", c.Name())
	assert.Equal(t, "x", c.ParameterName())
	assert.Equal(t, StrategyFederated, c.Strategy())
	assert.Equal(t, "({int32}@CLIENTS -> int32@SERVER)", c.Type().String())
	assert.Equal(t, "(x -> federated_sum(x))", c.String())
}

func TestNewComputationErrors(t *testing.T) {
	body := mustData(t, "d", i32)

	_, err := NewComputation("c", "", nil, nil, StrategyLocal)
	assert.ErrorContains(t, err, "body")

	_, err = NewComputation("c", "x", nil, body, StrategyLocal)
	assert.ErrorContains(t, err, "both set or both absent")

	_, err = NewComputation("c", "", nil, body, Strategy("remote"))
	assert.ErrorContains(t, err, "unknown strategy")
}

func TestAsLambdaIsFresh(t *testing.T) {
	c := sampleComputation(t)

	l1 := c.AsLambda()
	l2 := c.AsLambda()

	assert.NotSame(t, l1, l2)
	assert.NotSame(t, l1.Result(), l2.Result())
	assert.NotSame(t, c.Body(), l1.Result())
	assert.True(t, Equal(l1, l2))
	assert.True(t, types.Equal(c.Type(), l1.Type()))
	assert.Equal(t, "x", l1.ParameterName())
}

func TestStrategyIsValid(t *testing.T) {
	assert.True(t, StrategyFederated.IsValid())
	assert.True(t, StrategyLocal.IsValid())
	assert.False(t, Strategy("").IsValid())
}
