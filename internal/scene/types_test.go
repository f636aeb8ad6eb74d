package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptor_ResolvedSource(t *testing.T) {
	d := Descriptor{SourceText: "authored", LoweredText: ""}
	assert.Equal(t, "authored", d.ResolvedSource())

	// Pre-lowered form wins when both are present.
	d.LoweredText = "lowered"
	assert.Equal(t, "lowered", d.ResolvedSource())
}

func TestDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr bool
	}{
		{
			name:    "valid authored scene",
			desc:    Descriptor{ID: "a", DurationFrames: 10, SourceText: "scene: {}"},
			wantErr: false,
		},
		{
			name:    "valid prelowered scene",
			desc:    Descriptor{ID: "a", DurationFrames: 10, LoweredText: "#A: {}"},
			wantErr: false,
		},
		{
			name:    "missing id",
			desc:    Descriptor{DurationFrames: 10, SourceText: "scene: {}"},
			wantErr: true,
		},
		{
			name:    "nonpositive duration",
			desc:    Descriptor{ID: "a", DurationFrames: 0, SourceText: "scene: {}"},
			wantErr: true,
		},
		{
			name:    "no source at all",
			desc:    Descriptor{ID: "a", DurationFrames: 10},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAudioOverlay_Validate(t *testing.T) {
	valid := AudioOverlay{URL: "u", Volume: 0.5, StartTimeSec: 1, EndTimeSec: 5}
	assert.NoError(t, valid.Validate())

	inverted := valid
	inverted.StartTimeSec, inverted.EndTimeSec = 5, 1
	assert.Error(t, inverted.Validate(), "trim start must precede trim end")

	loud := valid
	loud.Volume = 1.5
	assert.Error(t, loud.Validate())
}

func TestAudioOverlay_RateDefaultsToOne(t *testing.T) {
	assert.Equal(t, 1.0, AudioOverlay{}.Rate())
	assert.Equal(t, 1.0, AudioOverlay{PlaybackRate: -2}.Rate())
	assert.Equal(t, 1.5, AudioOverlay{PlaybackRate: 1.5}.Rate())
}

func TestChannelNotifier_DropsWhenFull(t *testing.T) {
	n := NewChannelNotifier(1)
	n.SceneRecovered("a")
	n.SceneRecovered("b") // buffer full - dropped, must not block

	e := <-n.C
	assert.Equal(t, EventSceneRecovered, e.Kind)
	assert.Equal(t, "a", e.SceneID)
	assert.Empty(t, n.C)
}
