package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDestinationNotifiable(t *testing.T) {
	tests := []struct {
		name string
		dest Destination
		want bool
	}{
		{"enabled with channel", Destination{Enabled: true, ChannelID: "chan-1"}, true},
		{"disabled", Destination{Enabled: false, ChannelID: "chan-1"}, false},
		{"no channel bound", Destination{Enabled: true}, false},
		{"fresh destination", Destination{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dest.Notifiable())
		})
	}
}
