package frame

import "testing"

func TestEncodeDecodeBLEFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
	}{
		{"empty payload", Frame{TimestampTicks: 1234, EventCtr: 5, RSSI: -70, Channel: 7, Phy: PHY1M}},
		{"with payload and direction", Frame{
			TimestampTicks: 0xDEADBEEF,
			EventCtr:       99,
			RSSI:           -40,
			Channel:        37,
			Phy:            PHYCodedS8,
			Direction:      true,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.f
			f.SetData([]byte{1, 2, 3, 4, 5})

			encoded := f.EncodeBLEFrame()
			got, ok := DecodeBLEFrame(encoded)
			if !ok {
				t.Fatalf("decode failed")
			}

			if got.TimestampTicks != f.TimestampTicks {
				t.Errorf("timestamp: got %d want %d", got.TimestampTicks, f.TimestampTicks)
			}
			if got.Length != f.Length {
				t.Errorf("length: got %d want %d", got.Length, f.Length)
			}
			if got.Direction != f.Direction {
				t.Errorf("direction: got %v want %v", got.Direction, f.Direction)
			}
			if got.EventCtr != f.EventCtr {
				t.Errorf("eventCtr: got %d want %d", got.EventCtr, f.EventCtr)
			}
			if got.RSSI != f.RSSI {
				t.Errorf("rssi: got %d want %d", got.RSSI, f.RSSI)
			}
			if got.Channel != f.Channel {
				t.Errorf("channel: got %d want %d", got.Channel, f.Channel)
			}
			if got.Phy != f.Phy {
				t.Errorf("phy: got %v want %v", got.Phy, f.Phy)
			}
			if string(got.Payload()) != string(f.Payload()) {
				t.Errorf("payload: got %v want %v", got.Payload(), f.Payload())
			}
		})
	}
}

func TestDecodeBLEFrameTooShort(t *testing.T) {
	if _, ok := DecodeBLEFrame(make([]byte, 9)); ok {
		t.Fatalf("expected decode failure on short buffer")
	}
}

func TestIsAdvertisingAndOutOfBand(t *testing.T) {
	f := Frame{Channel: 38}
	if !f.IsAdvertising() {
		t.Error("channel 38 should be advertising")
	}
	f.Channel = 10
	if f.IsAdvertising() {
		t.Error("channel 10 should not be advertising")
	}
	f.Channel = ChanMeasure
	if !f.IsOutOfBand() {
		t.Error("ChanMeasure should be out-of-band")
	}
}
