package download

import (
	"testing"

	"localwhisper/events"
)

func TestTrackerFiltersByModel(t *testing.T) {
	bus := events.NewBus()
	var got []events.DownloadProgress
	tr, err := Track(bus, "base", func(p events.DownloadProgress) { got = append(got, p) })
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	if _, ok := tr.Latest(); ok {
		t.Fatal("Latest reported a snapshot before any event")
	}

	bus.Emit(events.DownloadProgressName, events.DownloadProgress{ModelID: "small", DownloadedBytes: 5, TotalBytes: 10, Percent: 50})
	if len(got) != 0 {
		t.Fatalf("snapshot for another model republished: %v", got)
	}

	want := events.DownloadProgress{ModelID: "base", DownloadedBytes: 1_234_567, TotalBytes: 147_000_000, Percent: 0.84}
	bus.Emit(events.DownloadProgressName, want)
	if len(got) != 1 || got[0] != want {
		t.Fatalf("got %v, want [%v]", got, want)
	}
	if latest, ok := tr.Latest(); !ok || latest != want {
		t.Errorf("Latest = %v, %v", latest, ok)
	}
}

func TestTrackerOverwritesOutOfOrder(t *testing.T) {
	bus := events.NewBus()
	tr, _ := Track(bus, "base", nil)
	defer tr.Close()

	bus.Emit(events.DownloadProgressName, events.DownloadProgress{ModelID: "base", DownloadedBytes: 80, TotalBytes: 100, Percent: 80})
	bus.Emit(events.DownloadProgressName, events.DownloadProgress{ModelID: "base", DownloadedBytes: 60, TotalBytes: 100, Percent: 60})

	latest, _ := tr.Latest()
	if latest.DownloadedBytes != 60 {
		t.Errorf("latest = %v, want the last snapshot received", latest)
	}
}

func TestTrackerClose(t *testing.T) {
	bus := events.NewBus()
	n := 0
	tr, _ := Track(bus, "base", func(events.DownloadProgress) { n++ })
	tr.Close()
	tr.Close()
	bus.Emit(events.DownloadProgressName, events.DownloadProgress{ModelID: "base"})
	if n != 0 {
		t.Errorf("handler called after Close")
	}
}

func TestDescribe(t *testing.T) {
	p := events.DownloadProgress{ModelID: "base", DownloadedBytes: 12_340_000, TotalBytes: 147_000_000, Percent: 8.4}
	if got := Describe(p, "Mo"); got != "12.3 / 147.0 Mo (8%)" {
		t.Errorf("got %q", got)
	}
	if got := Percent(events.DownloadProgress{Percent: 99.5}); got != 100 {
		t.Errorf("Percent(99.5) = %d", got)
	}
}
