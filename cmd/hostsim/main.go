// Command hostsim runs the kernel's keyboard, mouse, timer and executor
// packages as an ordinary process. Goroutines play the part of interrupt
// sources: the terminal (or a script) drives the keyboard and mouse and a
// ticker drives the timer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/finnmattis/finn-os/device/ps2/keyboard"
	"github.com/finnmattis/finn-os/device/ps2/mouse"
	"github.com/finnmattis/finn-os/kernel/kfmt"
	"github.com/finnmattis/finn-os/kernel/task"
	"github.com/finnmattis/finn-os/kernel/timer"
)

type options struct {
	tick      time.Duration
	ticks     uint64
	logPrefix string
	script    string
	step      int
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[hostsim] error: %s\n", err.Error())
	os.Exit(1)
}

func main() {
	var opts options
	flag.DurationVar(&opts.tick, "tick", timer.NanosPerTick*time.Nanosecond, "timer interrupt period")
	flag.Uint64Var(&opts.ticks, "ticks", 0, "stop after this many timer ticks (0 runs until Ctrl-C)")
	flag.StringVar(&opts.logPrefix, "log-prefix", "", "prefix for every line of kernel output")
	flag.StringVar(&opts.script, "script", "", "play a scripted input sequence instead of reading the terminal")
	flag.IntVar(&opts.step, "step", 1, "pointer cells moved per arrow key")
	flag.Parse()

	if opts.tick <= 0 {
		exit(errors.New("-tick must be positive"))
	}

	// kfmt.Panic halts the CPU, which a user process cannot do.
	kfmt.SetPanicHook(func() { os.Exit(2) })

	if err := run(context.Background(), os.Stdout, opts); err != nil && !errors.Is(err, errQuit) {
		exit(err)
	}
}

func run(ctx context.Context, out io.Writer, opts options) error {
	var actions []action
	if opts.script != "" {
		var err error
		if actions, err = parseScript(opts.script); err != nil {
			return err
		}
	}

	kfmt.SetOutputSink(&kfmt.PrefixWriter{Sink: out, Prefix: []byte(opts.logPrefix)})
	defer kfmt.SetOutputSink(nil)

	// The host masker stays installed after run returns; the default one
	// executes CLI, which a user process may not do.
	m := newMachine()
	mouse.SetInterruptMasker(m.withoutInterrupts)

	printKeypresses, kerr := keyboard.PrintKeypresses()
	if kerr != nil {
		return kerr
	}

	width, height := screenSize(int(os.Stdout.Fd()))
	executor := task.NewExecutor(m)
	executor.Spawn(task.New(printKeypresses))
	executor.Spawn(task.New(mouse.TrackPointer(&mouse.Pointer{
		X: width / 2, Y: height / 2,
		Width: width, Height: height,
	})))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.runExecutor(gctx, executor)
	})
	g.Go(func() error {
		return m.runTimer(gctx, opts.tick, opts.ticks, cancel)
	})
	g.Go(func() error {
		if actions == nil {
			return m.readTerminal(gctx, newTerminalDecoder(opts.step))
		}

		if err := m.play(gctx, actions, buildKeymap(), opts.tick/4); err != nil {
			return err
		}

		// Give the executor a couple of ticks to drain the input.
		if err := waitTicks(gctx, 2, opts.tick/4); err != nil {
			return nil
		}
		cancel()
		return nil
	})

	err := g.Wait()
	kfmt.Logf("hostsim", "stopped after %d ticks", timer.Ticks())
	return err
}

// runExecutor polls ready tasks until ctx is done, sleeping until the next
// interrupt whenever no task is ready. Unlike Executor.Run it can be stopped,
// so run does not return while a task may still be polled.
func (m *machine) runExecutor(ctx context.Context, executor *task.Executor) error {
	for {
		executor.RunOnce()

		select {
		case <-ctx.Done():
			return nil
		case <-m.wake:
		}
	}
}

// runTimer raises a timer interrupt every period. After limit ticks (0 means
// no limit) it calls onLimit and returns.
func (m *machine) runTimer(ctx context.Context, period time.Duration, limit uint64, onLimit func()) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for n := uint64(0); limit == 0 || n < limit; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.timerInterrupt()
		}
	}

	onLimit()
	return nil
}
