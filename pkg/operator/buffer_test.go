package operator_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcore/reactor/internal/testutil"
	"github.com/fluxcore/reactor/pkg/operator"
	"github.com/fluxcore/reactor/pkg/reactive"
	"github.com/fluxcore/reactor/pkg/source"
)

func values(windows []operator.Container[int64]) [][]int64 {
	out := make([][]int64, len(windows))
	for i, w := range windows {
		out[i] = w.(*operator.SliceContainer[int64]).Values
	}
	return out
}

// TestBufferNormalExact mirrors FluxBufferTest's normal/bufferWillRerouteAsManyElementAsSpecified:
// size == skip partitions the source into disjoint, equal windows.
func TestBufferNormalExact(t *testing.T) {
	pub, err := operator.Buffer[int64](source.Range(1, 10), 2, 2, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}}, values(rec.Values()))
	assert.True(t, rec.Completed())
}

// TestBufferNormalExactBackpressured mirrors normalExactBackpressured: the
// operator must not over-request upstream beyond what outstanding window
// demand justifies.
func TestBufferNormalExactBackpressured(t *testing.T) {
	pub, err := operator.Buffer[int64](source.Range(1, 10), 2, 2, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)
	assert.Empty(t, rec.Values())

	rec.Request(2)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}}, values(rec.Values()))
	assert.False(t, rec.Completed())

	rec.Request(3)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4}, {5, 6}, {7, 8}, {9, 10}}, values(rec.Values()))
	assert.True(t, rec.Completed())
}

// TestBufferLargerSkipOpensGaps mirrors largerSkip(Even): skip > size
// discards values between windows.
func TestBufferLargerSkipOpensGaps(t *testing.T) {
	pub, err := operator.Buffer[int64](source.Range(1, 8), 2, 3, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	assert.Equal(t, [][]int64{{1, 2}, {4, 5}, {7, 8}}, values(rec.Values()))
	assert.True(t, rec.Completed())
}

// TestBufferLargerSkipBackpressured mirrors largerSkipEvenBackpressured.
func TestBufferLargerSkipBackpressured(t *testing.T) {
	pub, err := operator.Buffer[int64](source.Range(1, 8), 2, 3, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	rec.Request(2)
	assert.Equal(t, [][]int64{{1, 2}, {4, 5}}, values(rec.Values()))
	assert.False(t, rec.Completed())

	rec.Request(2)
	assert.Equal(t, [][]int64{{1, 2}, {4, 5}, {7, 8}}, values(rec.Values()))
	assert.True(t, rec.Completed())
}

// TestBufferSmallerSkipOverlaps mirrors smallerSkip: skip < size produces
// sliding, overlapping windows, with a final short window flushed on
// completion per the completion policy.
func TestBufferSmallerSkipOverlaps(t *testing.T) {
	pub, err := operator.Buffer[int64](source.Range(1, 5), 2, 1, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	assert.Equal(t, [][]int64{{1, 2}, {2, 3}, {3, 4}, {4, 5}, {5}}, values(rec.Values()))
	assert.True(t, rec.Completed())
}

// TestBufferSmallerSkipOverlapsBackpressured mirrors smallerSkip3Backpressured:
// with size > skip, closing the first two overlapping windows needs
// size+(2-1)*skip items, not outstanding*skip, since each new window opens
// one item after the last rather than a full window apart.
func TestBufferSmallerSkipOverlapsBackpressured(t *testing.T) {
	pub, err := operator.Buffer[int64](source.Range(1, 6), 3, 1, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)
	assert.Empty(t, rec.Values())

	rec.Request(2)
	assert.Equal(t, [][]int64{{1, 2, 3}, {2, 3, 4}}, values(rec.Values()))
	assert.False(t, rec.Completed())

	rec.Request(2)
	assert.Equal(t, [][]int64{{1, 2, 3}, {2, 3, 4}, {3, 4, 5}, {4, 5, 6}}, values(rec.Values()))
	assert.False(t, rec.Completed())
}

// TestBufferErrorDiscardsOpenWindows mirrors the error policy: an upstream
// error discards every open window and forwards immediately, bypassing
// demand.
func TestBufferErrorDiscardsOpenWindows(t *testing.T) {
	upstream := &concatThenError[int64]{values: []int64{1, 2, 3}, err: errors.New("boom")}
	pub, err := operator.Buffer[int64](upstream, 2, 2, operator.NewSliceContainerFactory[int64]())
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	assert.Equal(t, [][]int64{{1, 2}}, values(rec.Values()))
	assert.False(t, rec.Completed())
	require.Error(t, rec.Err())
	kind, ok := reactive.KindOf(rec.Err())
	require.True(t, ok)
	assert.Equal(t, reactive.UpstreamError, kind)
}

func TestBufferFactoryReturningNilIsNullArgument(t *testing.T) {
	factory := func() (operator.Container[int64], error) { return nil, nil }
	pub, err := operator.Buffer[int64](source.Range(1, 3), 2, 2, factory)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	require.Error(t, rec.Err())
	kind, ok := reactive.KindOf(rec.Err())
	require.True(t, ok)
	assert.Equal(t, reactive.NullArgument, kind)
}

func TestBufferFactoryPanicBecomesOperatorError(t *testing.T) {
	factory := func() (operator.Container[int64], error) { panic("kaboom") }
	pub, err := operator.Buffer[int64](source.Range(1, 3), 2, 2, factory)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[operator.Container[int64]]()
	pub.Subscribe(rec)

	require.Error(t, rec.Err())
	kind, ok := reactive.KindOf(rec.Err())
	require.True(t, ok)
	assert.Equal(t, reactive.OperatorError, kind)
}

func TestBufferRejectsZeroSizeOrSkip(t *testing.T) {
	_, err := operator.Buffer[int64](source.Range(1, 3), 0, 2, operator.NewSliceContainerFactory[int64]())
	require.Error(t, err)
	kind, ok := reactive.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, reactive.IllegalArgument, kind)

	_, err = operator.Buffer[int64](source.Range(1, 3), 2, 0, operator.NewSliceContainerFactory[int64]())
	require.Error(t, err)
	kind, ok = reactive.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, reactive.IllegalArgument, kind)
}

func TestBufferRejectsNilFactory(t *testing.T) {
	_, err := operator.Buffer[int64](source.Range(1, 3), 2, 2, nil)
	require.Error(t, err)
	kind, ok := reactive.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, reactive.NullArgument, kind)
}
