package panel

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParquet_PreservesOrderAndGaps(t *testing.T) {
	nan := math.NaN()
	p, err := New(
		[]time.Time{day("2024-01-02"), day("2024-01-03")},
		[]string{"ZZZ", "AAA", "MMM"},
		[][]float64{{1, nan, 3}, {4, 5, nan}},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeParquet(&buf, p))

	got, err := DecodeParquet(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, p.Assets(), got.Assets(), "column order must survive the cache")
	require.Equal(t, p.Len(), got.Len())
	for i := 0; i < p.Len(); i++ {
		assert.True(t, p.Date(i).Equal(got.Date(i)))
		for j := 0; j < p.Width(); j++ {
			want, have := p.At(i, j), got.At(i, j)
			if IsMissing(want) {
				assert.True(t, IsMissing(have), "cell %d,%d", i, j)
				continue
			}
			assert.Equal(t, want, have, "cell %d,%d", i, j)
		}
	}
}

func TestDecodeParquet_Garbage(t *testing.T) {
	_, err := DecodeParquet([]byte("not parquet"))
	assert.Error(t, err)
}
