package operator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcore/reactor/internal/testutil"
	"github.com/fluxcore/reactor/pkg/operator"
	"github.com/fluxcore/reactor/pkg/reactive"
	"github.com/fluxcore/reactor/pkg/source"
)

// concatThenError is a small test-only upstream: it emits values in order,
// then an error instead of completing, used to mirror
// FluxMapSignalTest's flatMapSignalError scenario (Flux.just(...).concatWith(Flux.error(...))).
type concatThenError[T any] struct {
	values []T
	err    error
}

func (p *concatThenError[T]) Subscribe(s reactive.Subscriber[T]) {
	sub := &concatThenErrorSub[T]{consumer: s, values: p.values, err: p.err}
	s.OnSubscribe(sub)
}

type concatThenErrorSub[T any] struct {
	consumer reactive.Subscriber[T]
	values   []T
	err      error
	emitted  int
	done     bool
}

func (s *concatThenErrorSub[T]) Request(n uint64) {
	if s.done {
		return
	}
	for s.emitted < len(s.values) {
		v := s.values[s.emitted]
		s.emitted++
		s.consumer.OnNext(v)
		if s.done {
			return
		}
	}
	s.done = true
	s.consumer.OnError(s.err)
}

func (s *concatThenErrorSub[T]) Cancel() {
	s.done = true
}

// TestFlatMapSignalOrdersInnersStrictly mirrors FluxMapSignalTest's
// flatMapSignal: each value's inner is fully drained before the next
// value's inner is subscribed.
func TestFlatMapSignalOrdersInnersStrictly(t *testing.T) {
	pub, err := operator.FlatMapSignal[int64, int64](source.Range(1, 3),
		func(v int64) (reactive.Publisher[int64], error) { return source.Just(v * 2), nil },
		nil, nil,
	)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[int64]()
	pub.Subscribe(rec)

	assert.Equal(t, []int64{2, 4, 6}, rec.Values())
	assert.True(t, rec.Completed())
}

// TestFlatMapSignalErrorAbsorbedByTerminalHook mirrors flatMapSignalError:
// the upstream's error is absorbed by fE into one final inner, whose
// completion becomes the stream's OnComplete, not OnError.
func TestFlatMapSignalErrorAbsorbedByTerminalHook(t *testing.T) {
	boom := assert.AnError
	upstream := &concatThenError[int64]{values: []int64{1, 2, 3}, err: boom}

	pub, err := operator.FlatMapSignal[int64, int64](upstream,
		func(v int64) (reactive.Publisher[int64], error) { return source.Just(v * 2), nil },
		func(error) (reactive.Publisher[int64], error) { return source.Just[int64](99), nil },
		nil,
	)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[int64]()
	pub.Subscribe(rec)

	assert.Equal(t, []int64{2, 4, 6, 99}, rec.Values())
	assert.True(t, rec.Completed())
	assert.NoError(t, rec.Err())
}

// TestFlatMapSignalCompletionHookRunsAfterValues mirrors flatMapSignal2:
// fC's inner runs strictly after every value-derived inner has terminated.
func TestFlatMapSignalCompletionHookRunsAfterValues(t *testing.T) {
	pub, err := operator.FlatMapSignal[int64, int64](source.Just[int64](1),
		func(v int64) (reactive.Publisher[int64], error) { return source.Just(v * 2), nil },
		func(error) (reactive.Publisher[int64], error) { return source.Just[int64](99), nil },
		func() (reactive.Publisher[int64], error) { return source.Just[int64](10), nil },
	)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[int64]()
	pub.Subscribe(rec)

	assert.Equal(t, []int64{2, 10}, rec.Values())
	assert.True(t, rec.Completed())
}

func TestFlatMapSignalInnerErrorBecomesInnerError(t *testing.T) {
	boom := assert.AnError
	pub, err := operator.FlatMapSignal[int64, int64](source.Range(1, 1),
		func(v int64) (reactive.Publisher[int64], error) { return source.Error[int64](boom), nil },
		nil, nil,
	)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[int64]()
	pub.Subscribe(rec)

	require.Error(t, rec.Err())
	kind, ok := reactive.KindOf(rec.Err())
	require.True(t, ok)
	assert.Equal(t, reactive.InnerError, kind)
}

func TestFlatMapSignalNilInnerIsNullArgument(t *testing.T) {
	pub, err := operator.FlatMapSignal[int64, int64](source.Range(1, 1),
		func(v int64) (reactive.Publisher[int64], error) { return nil, nil },
		nil, nil,
	)
	require.NoError(t, err)

	rec := testutil.NewUnboundedRecorder[int64]()
	pub.Subscribe(rec)

	require.Error(t, rec.Err())
	kind, ok := reactive.KindOf(rec.Err())
	require.True(t, ok)
	assert.Equal(t, reactive.NullArgument, kind)
}
