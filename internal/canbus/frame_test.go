package canbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_MarshalBinary(t *testing.T) {
	f := Frame{ID: 0x001, Len: 3, Data: []byte{0x30, 0x31, 0x62}}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, 16)
	assert.Equal(t, []byte{0x01, 0, 0, 0}, b[0:4])
	assert.Equal(t, byte(3), b[4])
	assert.Equal(t, []byte{0x30, 0x31, 0x62, 0, 0, 0, 0, 0}, b[8:])

	var got Frame
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Data, got.Data)
	assert.False(t, got.Extended)
}

func TestFrame_ExtendedAndRemoteFlags(t *testing.T) {
	f := Frame{ID: 0x18FF0001, Extended: true, RTR: true, Data: []byte{}}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, byte(0xC0|0x18), b[3])

	var got Frame
	require.NoError(t, got.UnmarshalBinary(b))
	assert.True(t, got.Extended)
	assert.True(t, got.RTR)
	assert.Equal(t, uint32(0x18FF0001), got.ID)
	assert.Equal(t, 0, got.Len)
}

func TestFrame_UnmarshalErrors(t *testing.T) {
	var f Frame
	assert.ErrorIs(t, f.UnmarshalBinary(make([]byte, 8)), ErrShortWire)

	errFrame := make([]byte, 16)
	errFrame[3] = 0x20
	assert.ErrorIs(t, f.UnmarshalBinary(errFrame), ErrInvalidID)

	badLen := make([]byte, 16)
	badLen[4] = 9
	assert.ErrorIs(t, f.UnmarshalBinary(badLen), ErrInvalidLen)
}

func TestFrame_Validate(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  error
	}{
		{"标准帧", Frame{ID: 0x7FF, Len: 1, Data: []byte{1}}, nil},
		{"标准帧ID越界", Frame{ID: 0x800, Len: 1, Data: []byte{1}}, ErrInvalidID},
		{"扩展帧", Frame{ID: 0x800, Extended: true, Len: 1, Data: []byte{1}}, nil},
		{"长度超过8", Frame{ID: 1, Len: 9, Data: make([]byte, 9)}, ErrInvalidLen},
		{"长度大于数据", Frame{ID: 1, Len: 4, Data: []byte{1}}, ErrInvalidLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestFilter_Match(t *testing.T) {
	f := Frame{Bus: 1, ID: 0x012}

	assert.True(t, AcceptAll.Match(f))
	assert.True(t, Filter{Bus: 1}.Match(f))
	assert.False(t, Filter{Bus: 0}.Match(f))
	assert.True(t, Filter{Bus: -1, ID: 0x010, Mask: 0x7F0}.Match(f))
	assert.False(t, Filter{Bus: -1, ID: 0x020, Mask: 0x7F0}.Match(f))
	assert.True(t, Filter{Bus: -1, ID: 0x012, Mask: 0x7FF}.Match(f))
}
