package rowbinary

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValueEqualScalars(t *testing.T) {
	assert.True(t, UInt8(5).Equal(UInt8(5)))
	assert.False(t, UInt8(5).Equal(UInt8(6)))
	assert.True(t, StringFrom("abc").Equal(String([]byte("abc"))))
	assert.False(t, StringFrom("abc").Equal(StringFrom("abd")))
}

func TestValueEqualNullable(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(NotNull(UInt8(1))))
	assert.True(t, NotNull(UInt8(1)).Equal(NotNull(UInt8(1))))
	assert.False(t, NotNull(UInt8(1)).Equal(NotNull(UInt8(2))))
}

func TestValueEqualArray(t *testing.T) {
	a := Array([]Value{UInt8(1), UInt8(2)})
	b := Array([]Value{UInt8(1), UInt8(2)})
	c := Array([]Value{UInt8(1), UInt8(3)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestValueEqualUUID(t *testing.T) {
	id := uuid.New()
	assert.True(t, UUID(id).Equal(UUID(id)))
	assert.False(t, UUID(id).Equal(UUID(uuid.New())))
}

func TestValueTypeNameLeaves(t *testing.T) {
	assert.Equal(t, "UInt8", UInt8(1).TypeName())
	assert.Equal(t, "Nullable", Null().TypeName())
	assert.Equal(t, "Array", Array(nil).TypeName())
}
