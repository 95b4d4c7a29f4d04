package contacts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVCF = `BEGIN:VCARD
VERSION:4.0
FN:Asha Patel
TEL;TYPE=cell:+91 98765 43210
TEL;TYPE=home:+91 11 2345 6789
END:VCARD
BEGIN:VCARD
VERSION:4.0
FN:Ravi Kumar
TEL:+915550001111
END:VCARD
BEGIN:VCARD
VERSION:4.0
FN:No Phone
END:VCARD
`

func TestVCardDirectoryResolveName(t *testing.T) {
	dir, err := decodeVCards(strings.NewReader(sampleVCF))
	require.NoError(t, err)

	ctx := context.Background()

	name, err := dir.ResolveName(ctx, "+919876543210")
	require.NoError(t, err)
	assert.Equal(t, "Asha Patel", name)

	// Same contact via the second TEL property.
	name, err = dir.ResolveName(ctx, "01123456789")
	require.NoError(t, err)
	assert.Equal(t, "Asha Patel", name)

	name, err = dir.ResolveName(ctx, "5550001111")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Kumar", name)

	_, err = dir.ResolveName(ctx, "+911111111111")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = dir.ResolveName(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 3, dir.Len())
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"9876543210": "Asha Patel"}

	name, err := r.ResolveName(context.Background(), "+91 98765 43210")
	require.NoError(t, err)
	assert.Equal(t, "Asha Patel", name)

	_, err = r.ResolveName(context.Background(), "5550001111")
	assert.ErrorIs(t, err, ErrNotFound)
}
