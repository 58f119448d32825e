// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

/*
Packet layout (BigEndian):

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Bar Count   |          Bars           |
|      (uint32)     |  (int64, unix nanos)  |   (uint16)    |      (N * float32)      |
+-------------------+-----------------------+---------------+-------------------------+
*/

// HeaderSize is the number of bytes before the bar payload.
const HeaderSize = 4 + 8 + 2

// MaxBars is the most bars a single packet can carry.
const MaxBars = math.MaxUint16

// Packet is a decoded datagram.
type Packet struct {
	Seq       uint32
	Timestamp time.Time
	Bars      []float32
}

// Publisher packs each rendered frame into one datagram.
type Publisher struct {
	sender *Sender
	now    func() time.Time

	seq    uint32
	f32    []float32
	packet bytes.Buffer
}

// NewPublisher wraps sender. The publisher owns it and closes it on Close.
func NewPublisher(sender *Sender) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDP sender cannot be nil")
	}
	return &Publisher{sender: sender, now: time.Now}, nil
}

// Dial is NewSender followed by NewPublisher.
func Dial(targetAddress string) (*Publisher, error) {
	sender, err := NewSender(targetAddress)
	if err != nil {
		return nil, err
	}
	return NewPublisher(sender)
}

// Render sends bars as the next packet.
func (p *Publisher) Render(bars []float64) error {
	if len(bars) > MaxBars {
		return fmt.Errorf("%d bars exceed packet limit of %d", len(bars), MaxBars)
	}

	if cap(p.f32) < len(bars) {
		p.f32 = make([]float32, len(bars))
	}
	p.f32 = p.f32[:len(bars)]
	for i, v := range bars {
		p.f32[i] = float32(v)
	}

	p.seq++
	p.packet.Reset()
	p.packet.Grow(HeaderSize + 4*len(bars))

	// Writes to a bytes.Buffer cannot fail.
	binary.Write(&p.packet, binary.BigEndian, p.seq)
	binary.Write(&p.packet, binary.BigEndian, p.now().UnixNano())
	binary.Write(&p.packet, binary.BigEndian, uint16(len(bars)))
	binary.Write(&p.packet, binary.BigEndian, p.f32)

	if err := p.sender.Send(p.packet.Bytes()); err != nil {
		return err
	}
	logger.Debugf("sent packet %d (%d bytes)", p.seq, p.packet.Len())
	return nil
}

// Close closes the underlying sender.
func (p *Publisher) Close() error {
	return p.sender.Close()
}

// Decode parses a datagram produced by Publisher.
func Decode(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("short packet: %d bytes", len(data))
	}
	seq := binary.BigEndian.Uint32(data[0:4])
	nanos := int64(binary.BigEndian.Uint64(data[4:12]))
	count := int(binary.BigEndian.Uint16(data[12:14]))

	payload := data[HeaderSize:]
	if len(payload) != 4*count {
		return Packet{}, fmt.Errorf("packet declares %d bars but carries %d bytes", count, len(payload))
	}

	bars := make([]float32, count)
	for i := range bars {
		bars[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return Packet{Seq: seq, Timestamp: time.Unix(0, nanos), Bars: bars}, nil
}
