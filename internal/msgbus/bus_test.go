package msgbus

import (
	"bytes"
	"testing"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	first, cancelFirst := bus.Subscribe(4)
	defer cancelFirst()
	second, cancelSecond := bus.Subscribe(4)
	defer cancelSecond()

	if bus.Subscribers() != 2 {
		t.Fatalf("subscribers: got %d, want 2", bus.Subscribers())
	}

	for i := 0; i < 3; i++ {
		bus.Publish(Message{Node: 100, Stream: 0, Data: []byte{byte(i)}})
	}

	for name, ch := range map[string]<-chan Message{"first": first, "second": second} {
		for i := 0; i < 3; i++ {
			m := <-ch
			if m.Node != 100 || m.Stream != 0 {
				t.Errorf("%s subscriber: message %d addressed %d/%d", name, i, m.Node, m.Stream)
			}
			if len(m.Data) != 1 || m.Data[0] != byte(i) {
				t.Errorf("%s subscriber: message %d payload %v", name, i, m.Data)
			}
		}
	}
	if bus.Drops() != 0 {
		t.Errorf("drops: got %d, want 0", bus.Drops())
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	for i := 0; i < 3; i++ {
		bus.Publish(Message{Data: []byte{byte(i)}})
	}

	if bus.Drops() != 2 {
		t.Errorf("drops: got %d, want 2", bus.Drops())
	}
	m := <-ch
	if m.Data[0] != 0 {
		t.Errorf("survivor: got payload %v, want the first message", m.Data)
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()

	if bus.Subscribers() != 0 {
		t.Errorf("subscribers after cancel: got %d, want 0", bus.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Publishing to an empty bus neither blocks nor counts drops.
	bus.Publish(Message{Data: []byte{1}})
	if bus.Drops() != 0 {
		t.Errorf("drops after cancel: got %d, want 0", bus.Drops())
	}
}

func TestBusSubscribeClampsBuffer(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(0)
	defer cancel()
	if cap(ch) != DefaultSubscriberBuffer {
		t.Errorf("buffer: got %d, want %d", cap(ch), DefaultSubscriberBuffer)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	messages := []Message{
		{Node: 100, Stream: 0, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{Node: 105, Stream: 2, Data: nil},
		{Node: 1, Stream: 65535, Data: []byte{0x00}},
	}
	for _, m := range messages {
		if err := WriteMessage(&buf, m); err != nil {
			t.Fatalf("WriteMessage failed: %v", err)
		}
	}

	for i, want := range messages {
		got, err := ReadMessage(&buf)
		if err != nil {
			t.Fatalf("ReadMessage %d failed: %v", i, err)
		}
		if got.Node != want.Node || got.Stream != want.Stream {
			t.Errorf("frame %d: addressed %d/%d, want %d/%d", i, got.Node, got.Stream, want.Node, want.Stream)
		}
		if !bytes.Equal(got.Data, want.Data) {
			t.Errorf("frame %d: payload %v, want %v", i, got.Data, want.Data)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes left after reading all frames", buf.Len())
	}
}

func TestFrameRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, Message{Data: []byte{1}}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	raw := buf.Bytes()
	raw[0] = 0x7F

	if _, err := ReadMessage(bytes.NewReader(raw)); err == nil {
		t.Error("bad magic accepted")
	}
}

func TestFrameRejectsOversize(t *testing.T) {
	if err := WriteMessage(&bytes.Buffer{}, Message{Data: make([]byte, MaxPayload+1)}); err == nil {
		t.Error("oversize payload written")
	}

	var buf bytes.Buffer
	if err := WriteMessage(&buf, Message{Data: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	raw := buf.Bytes()
	raw[5] = 0xFF
	raw[6] = 0xFF
	raw[7] = 0xFF
	raw[8] = 0xFF
	if _, err := ReadMessage(bytes.NewReader(raw)); err == nil {
		t.Error("oversize length field accepted")
	}
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, Message{Node: 9, Data: []byte{1, 2, 3, 4}}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	raw := buf.Bytes()

	for _, cut := range []int{0, 1, frameHeaderSize - 1, frameHeaderSize + 2, len(raw) - 1} {
		if _, err := ReadMessage(bytes.NewReader(raw[:cut])); err == nil {
			t.Errorf("truncation at %d accepted", cut)
		}
	}
}
