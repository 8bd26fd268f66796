package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"go-metronome/audio"
	"go-metronome/midi"
	"go-metronome/sequencer"
	"go-metronome/tempo"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	defer midi.CloseDriver()

	switch os.Args[1] {
	case "list":
		listPorts()
	case "click":
		if len(os.Args) < 3 {
			usage()
			return
		}
		testClick(os.Args[2])
	case "tap":
		if len(os.Args) < 3 {
			usage()
			return
		}
		testTap(os.Args[2])
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list          - List all MIDI ports")
	fmt.Println("  click <port>  - Play two bars of clicks on an output port")
	fmt.Println("  tap <port>    - Print tap tempo from note-ons on an input port")
	fmt.Println("  poll          - Poll for device changes")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins, outs []string
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.InPortNames(), outs: midi.OutPortNames()}
	}()

	select {
	case r := <-ch:
		for i, name := range r.ins {
			fmt.Printf("  %d: %s\n", i, name)
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, name := range r.outs {
			fmt.Printf("  %d: %s\n", i, name)
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

// wallClock stands in for the audio clock when no mixer is running
type wallClock struct{ start time.Time }

func (c wallClock) Now() float64 { return time.Since(c.start).Seconds() }

func testClick(port string) {
	clock := wallClock{start: time.Now()}
	out, err := midi.OpenClickOutput(port, clock, midi.DefaultClickConfig)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Printf("Playing 8 clicks at 120bpm on %s\n", port)
	done := make(chan struct{}, 8)
	for i := 0; i < 8; i++ {
		id := sequencer.SoundNormal
		if i%4 == 0 {
			id = sequencer.SoundAccent
		}
		ev := audio.Event{FireTime: 0.1 + 0.5*float64(i), SoundID: id, Gain: 1}
		if _, err := out.Schedule(ev, func(audio.Handle) { done <- struct{}{} }); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
	}
	for i := 0; i < 8; i++ {
		<-done
		fmt.Print(".")
	}
	fmt.Println("\nDone!")
}

func testTap(port string) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	dm := midi.NewDeviceManager(port)
	go dm.Run(ctx)

	tracker := tempo.NewTracker(tempo.DefaultTrackerConfig)
	start := time.Now()
	taps := make(chan struct{}, 16)

	fmt.Printf("Waiting for an input matching %q. Ctrl+C to exit.\n", port)
	for {
		select {
		case ev, ok := <-dm.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case midi.DeviceConnected:
				fmt.Printf("Connected: %s - tap away\n", ev.ID)
				go func() {
					for range ev.Controller.NoteEvents() {
						taps <- struct{}{}
					}
				}()
			case midi.DeviceDisconnected:
				fmt.Printf("Disconnected: %s\n", ev.ID)
			}
		case <-taps:
			if bpm, ok := tracker.RecordTap(time.Since(start).Milliseconds()); ok {
				fmt.Printf("  %d bpm\n", bpm)
			} else {
				fmt.Println("  tap")
			}
		}
	}
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect devices to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		inNames := midi.InPortNames()
		outNames := midi.OutPortNames()

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
