package capture

import (
	"context"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/pkg/errors"
)

// pcapBPFFilter restricts capture to TCP only — the magic gate and
// framing already discard everything else, but filtering in the
// kernel avoids copying irrelevant packets across the syscall
// boundary at all.
const pcapBPFFilter = "tcp"

// PcapSource captures via libpcap/npcap, mirroring the teacher's
// gopacket-based capture pipeline: OpenLive a device, apply a BPF
// filter, and decode each packet's TCP layer for its port pair and
// payload.
type PcapSource struct {
	handle *pcap.Handle
}

// OpenPcapSource opens iface ("" selects the first device pcap
// reports) in promiscuous mode with a 1 MiB snap length.
func OpenPcapSource(iface string) (*PcapSource, error) {
	if iface == "" {
		devices, err := pcap.FindAllDevs()
		if err != nil {
			return nil, errors.Wrap(err, "capture: enumerate devices")
		}
		if len(devices) == 0 {
			return nil, errors.New("capture: no pcap devices found")
		}
		iface = devices[0].Name
	}

	handle, err := pcap.OpenLive(iface, 1<<20, true, pcap.BlockForever)
	if err != nil {
		return nil, errors.Wrapf(err, "capture: open device %q", iface)
	}

	if err := handle.SetBPFFilter(pcapBPFFilter); err != nil {
		handle.Close()
		return nil, errors.Wrap(err, "capture: set BPF filter")
	}

	return &PcapSource{handle: handle}, nil
}

// Run decodes packets until ctx is cancelled or the handle errors out.
func (s *PcapSource) Run(ctx context.Context, onPayload func(Payload)) error {
	src := gopacket.NewPacketSource(s.handle, s.handle.LinkType())
	packets := src.Packets()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-packets:
			if !ok {
				return errors.New("capture: packet source closed")
			}

			tcpLayer := pkt.Layer(layers.LayerTypeTCP)
			if tcpLayer == nil {
				continue
			}
			tcp, ok := tcpLayer.(*layers.TCP)
			if !ok || len(tcp.Payload) == 0 {
				continue
			}

			onPayload(Payload{
				SrcPort: uint16(tcp.SrcPort),
				DstPort: uint16(tcp.DstPort),
				Data:    append([]byte(nil), tcp.Payload...),
			})
		}
	}
}

// Close releases the pcap handle.
func (s *PcapSource) Close() error {
	s.handle.Close()
	return nil
}
