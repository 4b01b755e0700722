package trafficlight_test

import (
	"testing"

	"github.com/fujiwara/trafficlight"
	"github.com/stretchr/testify/assert"
)

func TestParsePhase(t *testing.T) {
	testCases := []struct {
		name    string
		in      string
		want    trafficlight.Phase
		wantErr error
	}{
		{name: "red", in: "red", want: trafficlight.PhaseRed},
		{name: "green", in: "green", want: trafficlight.PhaseGreen},
		{name: "case and space", in: " Green ", want: trafficlight.PhaseGreen},
		{name: "yellow", in: "yellow", wantErr: trafficlight.ErrInvalidPhase},
		{name: "empty", in: "", wantErr: trafficlight.ErrInvalidPhase},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := trafficlight.ParsePhase(tc.in)
			assert.ErrorIs(t, err, tc.wantErr)
			if err != nil {
				return
			}
			assert.Equal(t, tc.want, p)
		})
	}
}

func TestPhase_Next(t *testing.T) {
	assert.Equal(t, trafficlight.PhaseGreen, trafficlight.PhaseRed.Next())
	assert.Equal(t, trafficlight.PhaseRed, trafficlight.PhaseGreen.Next())
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "red", trafficlight.PhaseRed.String())
	assert.Equal(t, "green", trafficlight.PhaseGreen.String())
	assert.Equal(t, "Phase(7)", trafficlight.Phase(7).String())
}
