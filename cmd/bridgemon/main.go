package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

func main() {
	var (
		workers     = flag.Int("workers", 4, "Number of worker goroutines")
		interval    = flag.Duration("interval", 5*time.Millisecond, "Delay between sends per worker")
		duration    = flag.Duration("duration", 10*time.Second, "How long to run in plain mode")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *workers < 1 {
		fmt.Fprintln(os.Stderr, "Usage: bridgemon [-workers n] [-interval d] [-duration d] [-i]")
		os.Exit(1)
	}

	if *interactive && term.IsTerminal(int(os.Stdout.Fd())) {
		if err := runMonitor(*workers, *interval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	runPlain(*workers, *interval, *duration)
}

func runPlain(workers int, interval, duration time.Duration) {
	d := startDemo(workers, interval)
	defer d.shutdown()

	fmt.Printf("bridgemon: %d workers, one send every %v, running for %v\n", workers, interval, duration)

	deadline := time.After(duration)
	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-tick.C:
			printSnapshot(d.snapshot())
		case <-deadline:
			final := d.snapshot()
			fmt.Println("final:")
			printSnapshot(final)
			return
		}
	}
}

func printSnapshot(s snapshot) {
	fmt.Printf("instance %d [%s]  sent=%d completed=%d discarded=%d queued=%d  refs=%d drops=%d uncaught=%d\n",
		s.Instance.ID, s.Instance.State,
		s.Channel.Sent, s.Channel.Completed, s.Channel.Discarded, s.Channel.Queued,
		s.LiveRefs, s.Instance.PendingDrops, s.Uncaught)
}
