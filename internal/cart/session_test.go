package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/pkg/models"
)

func TestSession_PutRemove(t *testing.T) {
	s := NewSession("c1", "")
	s.Put(models.CartLine{ProductID: "tee", Size: models.SizeL, Quantity: 1, UnitPrice: 100})
	s.Put(models.CartLine{ProductID: "tee", Size: models.SizeM, Quantity: 2, UnitPrice: 100})
	s.Put(models.CartLine{ProductID: "tee", Size: models.SizeL, Quantity: 3, UnitPrice: 100})

	require.Len(t, s.Lines, 2)
	assert.Equal(t, 5, s.ItemCount())
	assert.Equal(t, int64(500), s.Subtotal())

	assert.True(t, s.Remove("tee", models.SizeM))
	assert.False(t, s.Remove("tee", models.SizeM))
	assert.Equal(t, 3, s.ItemCount())

	s.Clear()
	assert.Empty(t, s.Lines)
}

func TestMarshalSession_roundTrip(t *testing.T) {
	s := NewSession("c1", "u1")
	s.UpdatedAt = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	s.Put(models.CartLine{ProductID: "cap", Name: "Logo Cap", Size: models.SizeFree, Quantity: 1, UnitPrice: 90000})

	data, err := MarshalSession(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v":1`)

	back, err := UnmarshalSession(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestUnmarshalSession_rejectsUnknownShapes(t *testing.T) {
	for _, raw := range []string{`{`, `{"v":99,"session":{"id":"x"}}`, `{"v":1}`} {
		_, err := UnmarshalSession([]byte(raw))
		assert.Error(t, err, raw)
	}
}
