// Command quicaccept-server wires the connection-candidate admission
// pipeline behind a UDP socket: a fixed-size pool of receive loops reads
// datagrams from the shared socket, candidates accumulate CRYPTO
// bytes keyed on (remote address, original DCID), and a ticker-driven
// sweep evicts idle or terminal candidates. It is not a full QUIC server,
// since there is no TLS engine and no post-handshake connection; it exists
// to exercise the admission pipeline end to end.
package main

import (
	"context"
	"flag"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xtls/quicaccept/amplification"
	"github.com/xtls/quicaccept/candidate"
	"github.com/xtls/quicaccept/internal/netaddr"
	"github.com/xtls/quicaccept/internal/xlog"
	"github.com/xtls/quicaccept/serverconfig"
)

const (
	workerCount   = 4
	recvBufSize   = 2 * 1024 * 1024
	sweepInterval = 1 * time.Second
)

// connectionPromoter is the concrete candidate.Promoter for this binary.
// A full server would hand PromotionInfo to a connection factory that
// resumes the TLS handshake and begins the QUIC transport state machine;
// this stand-in only logs the event and frees the candidate's budget,
// since the post-handshake connection is out of this pipeline's scope.
type connectionPromoter struct {
	log    *xlog.Logger
	filter *amplification.Filter
}

func (p *connectionPromoter) Promote(info candidate.PromotionInfo) error {
	p.log.Infof("promoted dcid=%x scid=%x remote=%s client_hello_bytes=%d trailing_bytes=%d",
		info.DCID, info.SCID, info.Remote, len(info.ClientHello), len(info.Trailing))
	p.filter.Validate(info.Remote)
	return nil
}

func main() {
	addr := flag.String("listen", "0.0.0.0:4433", "UDP address to listen on")
	flag.Parse()

	log := xlog.New(xlog.LevelInfo)
	cfg := serverconfig.DefaultConfig()
	cfg.Validate()

	udpAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		log.Errorf("resolve %s: %v", *addr, err)
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		log.Errorf("listen udp %s: %v", udpAddr, err)
		os.Exit(1)
	}
	defer conn.Close()

	conn.SetReadBuffer(recvBufSize)
	conn.SetWriteBuffer(recvBufSize)

	filter := amplification.New(cfg.AntiAmplificationRatio)
	registry := candidate.NewRegistry(cfg.MaxCandidates, cfg.CandidateIdleTimeout, log)
	promoter := &connectionPromoter{log: log, filter: filter}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < workerCount; i++ {
		g.Go(func() error {
			return receiveLoop(gctx, conn, registry, filter, promoter, log)
		})
	}

	g.Go(func() error {
		return sweepLoop(gctx, registry, sweepInterval)
	})

	log.Infof("listening on %s", conn.LocalAddr())

	<-gctx.Done()
	conn.Close()
	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Errorf("worker exited: %v", err)
	}
}

// receiveLoop is one of workerCount goroutines sharing the same UDP
// socket; concurrent ReadFromUDP calls on one *net.UDPConn are safe and
// the kernel fans datagrams out across the waiting readers, giving the
// "parallel worker threads ... single shared executor" scheduling model
// without an explicit work queue.
func receiveLoop(ctx context.Context, conn *net.UDPConn, registry *candidate.Registry, filter *amplification.Filter, promoter candidate.Promoter, log *xlog.Logger) error {
	buf := make([]byte, 65535)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, remoteAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if n == 0 {
			continue
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])

		remote, ok := netaddr.FromUDPAddr(remoteAddr)
		if !ok {
			continue
		}

		handleDatagram(datagram, remote, registry, filter, promoter, log)
	}
}

func handleDatagram(datagram []byte, remote netip.AddrPort, registry *candidate.Registry, filter *amplification.Filter, promoter candidate.Promoter, log *xlog.Logger) {
	filter.On(remote, len(datagram))

	if len(datagram) < 7 {
		return
	}
	dcid, ok := peekDCID(datagram)
	if !ok {
		return
	}

	now := time.Now()
	c := registry.GetOrCreate(dcid, func() *candidate.Candidate {
		return candidate.New(dcid, promoter, now)
	})
	if c == nil {
		log.Warnf("dropping datagram from %s: candidate registry full", remote)
		return
	}

	c.OnDatagram(datagram, remote, now)
	if c.IsTerminal() {
		registry.Remove(dcid)
		filter.Forget(remote)
	}
}

// peekDCID extracts just the destination connection id from a long-header
// packet's first byte and fixed-position fields, without deriving keys or
// validating the rest of the header; enough to route the datagram to a
// candidate, since the candidate itself performs full header parsing.
func peekDCID(datagram []byte) ([]byte, bool) {
	if datagram[0]&0x80 == 0 {
		return nil, false
	}
	if len(datagram) < 6 {
		return nil, false
	}
	dcidLen := int(datagram[5])
	if len(datagram) < 6+dcidLen {
		return nil, false
	}
	return append([]byte(nil), datagram[6:6+dcidLen]...), true
}

func sweepLoop(ctx context.Context, registry *candidate.Registry, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			registry.Sweep(ctx, now)
		}
	}
}
