package discovery

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestDatagram_RoundTrip(t *testing.T) {
	data := Datagram("DESK1", "ws://10.0.0.5:8181")
	if string(data) != "MOB_CONTROL_SERVER|DESK1|ws://10.0.0.5:8181" {
		t.Errorf("datagram = %q", data)
	}

	record, err := parseDatagram(data)
	if err != nil {
		t.Fatalf("parseDatagram failed: %v", err)
	}
	if record.Name != "DESK1" || record.Endpoint != "ws://10.0.0.5:8181" {
		t.Errorf("record = %+v", record)
	}
}

func TestParseDatagram_RejectsMalformed(t *testing.T) {
	cases := []string{
		"OTHER_SERVER|DESK1|ws://10.0.0.5:8181",
		"MOB_CONTROL_SERVER|DESK1",
		"MOB_CONTROL_SERVER|DESK1|ws://x|extra",
		"",
		"garbage",
	}
	for _, c := range cases {
		if _, err := parseDatagram([]byte(c)); err == nil {
			t.Errorf("parseDatagram(%q) should fail", c)
		}
	}
}

func TestListener_DedupFirstSeenWins(t *testing.T) {
	l := NewListener(0, clockwork.NewFakeClock())
	l.Scan(5 * time.Second)

	for i := 0; i < 3; i++ {
		l.add(Record{Name: "DESK1", Endpoint: "ws://10.0.0.5:8181"})
	}
	l.add(Record{Name: "DESK-RENAMED", Endpoint: "ws://10.0.0.5:8181"})

	records := l.Records()
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Name != "DESK1" {
		t.Errorf("name = %q, want first-seen DESK1", records[0].Name)
	}
}

func TestListener_ScanWindowCloses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewListener(0, clock)

	l.Scan(4 * time.Second)
	if !l.Scanning() {
		t.Fatal("scan window should be open")
	}

	l.add(Record{Name: "DESK1", Endpoint: "ws://10.0.0.5:8181"})
	clock.Advance(4 * time.Second)

	if l.Scanning() {
		t.Error("scan window should have closed")
	}
	if len(l.Records()) != 1 {
		t.Error("records must stay visible after the window closes")
	}

	// Datagrams arriving after the window are not collected.
	l.add(Record{Name: "LATE", Endpoint: "ws://10.0.0.9:8181"})
	if len(l.Records()) != 1 {
		t.Error("post-window datagram should be dropped")
	}
}

func TestListener_RescanClearsSet(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewListener(0, clock)

	l.Scan(4 * time.Second)
	l.add(Record{Name: "DESK1", Endpoint: "ws://10.0.0.5:8181"})

	l.Scan(4 * time.Second)
	if len(l.Records()) != 0 {
		t.Error("rescan should clear the discovered set")
	}
	if !l.Scanning() {
		t.Error("rescan should reopen the window")
	}
}

func TestListener_RescanExtendsWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := NewListener(0, clock)

	l.Scan(4 * time.Second)
	clock.Advance(3 * time.Second)
	l.Scan(4 * time.Second)

	// The first window's expiry must not close the second window.
	clock.Advance(1 * time.Second)
	if !l.Scanning() {
		t.Error("stale window expiry closed a fresh scan")
	}
	clock.Advance(3 * time.Second)
	if l.Scanning() {
		t.Error("second window should have closed")
	}
}

func TestListener_ReceivesDatagramOverUDP(t *testing.T) {
	clock := clockwork.NewFakeClock()

	// Bind an ephemeral port first so the test does not depend on 15000
	// being free.
	probe, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("could not bind probe socket: %v", err)
	}
	port := probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	l := NewListener(port, clock)
	if err := l.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer l.Stop()
	l.Scan(5 * time.Second)

	sender, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("could not dial listener: %v", err)
	}
	defer sender.Close()

	payload := Datagram("DESK1", "ws://10.0.0.5:8181")
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := sender.Write(payload); err != nil {
			t.Fatalf("send failed: %v", err)
		}
		sender.Write([]byte("not|a|discovery|datagram"))
		if records := l.Records(); len(records) == 1 {
			if records[0].Name != "DESK1" {
				t.Errorf("record = %+v", records[0])
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("listener never collected the datagram")
}

func TestListener_StartStopCycles(t *testing.T) {
	probe, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("could not bind probe socket: %v", err)
	}
	port := probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	l := NewListener(port, clockwork.NewFakeClock())
	for i := 0; i < 3; i++ {
		if err := l.Start(); err != nil {
			t.Fatalf("Start cycle %d failed: %v", i, err)
		}
		l.Stop()
	}
	l.Stop() // extra Stop must be harmless
}

func TestBroadcaster_SendsOnLoop(t *testing.T) {
	// Broadcast datagrams do not reliably loop back in CI networks, so this
	// covers construction and the payload only.
	b, err := NewBroadcaster("DESK1", "ws://10.0.0.5:8181", DefaultPort, 3*time.Second, clockwork.NewFakeClock())
	if err != nil {
		t.Skipf("broadcast socket unavailable: %v", err)
	}
	defer b.Close()

	want := fmt.Sprintf("%s|DESK1|ws://10.0.0.5:8181", Marker)
	if string(b.payload) != want {
		t.Errorf("payload = %q, want %q", b.payload, want)
	}
}
