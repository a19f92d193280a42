package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateAPREmpty(t *testing.T) {
	assert.Equal(t, 0.0, EstimateAPR(nil))
	assert.Equal(t, 0.0, EstimateAPR([]float64{}))
}

func TestEstimateAPRConstantRate(t *testing.T) {
	r := 0.0001
	rates := []float64{r, r, r, r, r, r}
	want := math.Pow(1+r, 1095) - 1
	assert.InDelta(t, want, EstimateAPR(rates), 1e-12)
}

func TestEstimateAPRUsesMean(t *testing.T) {
	got := EstimateAPR([]float64{0.0001, 0.0003})
	assert.InDelta(t, math.Pow(1.0002, 1095)-1, got, 1e-12)
}
