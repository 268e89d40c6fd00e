// Command tck is a smoke-test driver: it wires the scheduler, the range
// source, and the map-signal and buffer operators together against a
// small script file, driving this module's in-process runtime end to end.
//
// Script lines take the form:
//
//	range%%<start>%%<count>
//	buffer%%<size>%%<skip>
//	mapdouble
//
// Each line appends one stage; the pipeline runs to completion and prints
// every value received along with the terminal signal.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fluxcore/reactor/pkg/operator"
	"github.com/fluxcore/reactor/pkg/reactive"
	"github.com/fluxcore/reactor/pkg/source"
)

var file string

func init() {
	flag.StringVar(&file, "file", "", "path to script file to run")
}

func main() {
	flag.Parse()
	log := reactive.NewLogger(zerolog.New(os.Stderr).With().Timestamp().Logger()).WithComponent("tck")

	if file == "" {
		log.Error().Msg("missing -file")
		os.Exit(1)
	}

	f, err := os.Open(file)
	if err != nil {
		log.Error().Err(err).Msg("failed to open script")
		os.Exit(1)
	}
	defer f.Close()

	pub, err := buildPipeline(f, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build pipeline")
		os.Exit(1)
	}

	run(pub, log)
}

func buildPipeline(f *os.File, log reactive.Logger) (reactive.Publisher[int64], error) {
	var pub reactive.Publisher[int64]

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, "%%")
		log.Info().Str("stage", parts[0]).Msg("wiring stage")

		switch parts[0] {
		case "range":
			start, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return nil, err
			}
			count, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				return nil, err
			}
			pub = source.Range(start, count)
		case "mapdouble":
			if pub == nil {
				return nil, reactive.Newf(reactive.IllegalArgument, "mapdouble: no upstream stage yet")
			}
			doubled, err := operator.MapSignal(pub,
				func(v int64) (int64, error) { return v * 2, nil },
				nil, nil,
			)
			if err != nil {
				return nil, err
			}
			pub = doubled
		case "buffer":
			if pub == nil {
				return nil, reactive.Newf(reactive.IllegalArgument, "buffer: no upstream stage yet")
			}
			size, err := strconv.ParseUint(parts[1], 10, 32)
			if err != nil {
				return nil, err
			}
			skip, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return nil, err
			}
			windows, err := operator.Buffer(pub, uint32(size), uint32(skip), operator.NewSliceContainerFactory[int64]())
			if err != nil {
				return nil, err
			}
			// Flatten each window back to int64 for a uniform pipeline type,
			// summing it — a stand-in downstream reduction so the smoke
			// driver stays single-typed end to end.
			summed, err := operator.MapSignal[operator.Container[int64], int64](windows,
				func(c operator.Container[int64]) (int64, error) {
					sc := c.(*operator.SliceContainer[int64])
					var sum int64
					for _, v := range sc.Values {
						sum += v
					}
					return sum, nil
				}, nil, nil,
			)
			if err != nil {
				return nil, err
			}
			pub = summed
		default:
			return nil, reactive.Newf(reactive.IllegalArgument, "unknown tck stage: "+parts[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pub, nil
}

func run(pub reactive.Publisher[int64], log reactive.Logger) {
	scheduler := reactive.NewGoroutineScheduler(log)
	defer scheduler.Dispose()

	done := make(chan struct{})
	consumer := (&reactive.ConsumerParts[int64]{
		OnSubscribe: func(s reactive.Subscription) { s.Request(reactive.Unbounded) },
		OnNext: func(v int64) {
			fmt.Println(v)
		},
		OnComplete: func() {
			log.Info().Msg("complete")
			close(done)
		},
		OnError: func(e error) {
			log.Error().Err(e).Msg("error")
			close(done)
		},
	}).Build()

	scheduler.Schedule(func() { pub.Subscribe(consumer) })
	<-done
}
