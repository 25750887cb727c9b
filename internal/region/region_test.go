package region

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromXYWH(t *testing.T) {
	r := FromXYWH(10, 20, 30, 40)
	assert.Equal(t, Region{XMin: 10, YMin: 20, XMax: 40, YMax: 60}, r)
	assert.Equal(t, 30, r.Width())
	assert.Equal(t, 40, r.Height())
	assert.Equal(t, image.Rect(10, 20, 40, 60), r.Rect())
}

func TestPadAndClamp(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	r := Region{XMin: 2, YMin: 50, XMax: 98, YMax: 60}.Pad(5)

	assert.Equal(t, Region{XMin: -3, YMin: 45, XMax: 103, YMax: 65}, r)
	assert.Equal(t, Region{XMin: 0, YMin: 45, XMax: 100, YMax: 65}, r.Clamp(bounds))
}

func TestEmpty(t *testing.T) {
	assert.True(t, Region{}.Empty())
	assert.True(t, Region{XMin: 5, YMin: 5, XMax: 5, YMax: 10}.Empty())
	assert.False(t, FromXYWH(0, 0, 1, 1).Empty())

	outside := FromXYWH(200, 200, 10, 10).Clamp(image.Rect(0, 0, 100, 100))
	assert.True(t, outside.Empty())
}

func TestEqual(t *testing.T) {
	a := []Region{FromXYWH(0, 0, 5, 5), FromXYWH(10, 10, 5, 5)}
	b := []Region{FromXYWH(0, 0, 5, 5), FromXYWH(10, 10, 5, 5)}
	reversed := []Region{b[1], b[0]}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, reversed))
	assert.False(t, Equal(a, a[:1]))
}
