package controller

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/angeloszaimis/sdn-lb/internal/datapath"
	"github.com/angeloszaimis/sdn-lb/internal/metrics"
	"github.com/angeloszaimis/sdn-lb/internal/openflow"
	"github.com/angeloszaimis/sdn-lb/internal/registry"
	"github.com/angeloszaimis/sdn-lb/internal/selector"
)

const (
	// defaultRulePriority is the table-miss rule; flow rules sit above it.
	defaultRulePriority = 0
	flowRulePriority    = 10

	// backendPort is the switch port facing the backend pool.
	backendPort = 2
)

// Controller consumes switch-connect and packet-arrival events, asks the
// selector for a backend on each new flow to the virtual address, and
// programs the switch with the matching forward and reverse rules.
type Controller struct {
	logger    *slog.Logger
	selector  *selector.Selector
	collector *metrics.Collector
	virtualIP net.IP

	mutex  sync.Mutex
	steady map[uint64]bool
}

func New(logger *slog.Logger, sel *selector.Selector, collector *metrics.Collector, virtualIP net.IP) *Controller {
	return &Controller{
		logger:    logger,
		selector:  sel,
		collector: collector,
		virtualIP: virtualIP,
		steady:    make(map[uint64]bool),
	}
}

// HandleSwitchFeatures installs the table-miss rule that sends unmatched
// packets to the controller, moving the switch into steady operation.
func (c *Controller) HandleSwitchFeatures(dp datapath.Datapath, features *openflow.FeaturesReply) {
	mod := &openflow.FlowMod{
		Priority: defaultRulePriority,
		Match:    openflow.Match{},
		Actions: []openflow.Action{
			openflow.OutputAction(openflow.PortController),
		},
	}

	if err := dp.Send(mod); err != nil {
		c.logger.Error("Failed to install table-miss rule",
			slog.Uint64("datapath", features.DatapathID),
			slog.Any("err", err))
		return
	}

	c.mutex.Lock()
	c.steady[features.DatapathID] = true
	c.mutex.Unlock()

	c.logger.Info("Switch connected", slog.Uint64("datapath", features.DatapathID))
}

// HandlePacketIn processes a data-plane miss: topology-discovery frames are
// ignored, packets for the virtual address trigger backend selection and
// rule installation, and the triggering packet is always flooded afterwards
// so the client's first packet is not lost while rules take effect.
func (c *Controller) HandlePacketIn(dp datapath.Datapath, pkt *openflow.PacketIn) {
	c.mutex.Lock()
	steady := c.steady[dp.ID()]
	c.mutex.Unlock()

	if !steady {
		return
	}

	frame, err := openflow.ParseEthernet(pkt.Frame)
	if err != nil {
		c.logger.Debug("Dropping unparseable frame", slog.Any("err", err))
		return
	}

	if frame.IsLLDP() {
		return
	}

	if frame.EthType == openflow.EthTypeIPv4 {
		if ip, err := openflow.ParseIPv4(frame.Payload); err == nil && ip.Dst.Equal(c.virtualIP) {
			c.routeFlow(dp, pkt.InPort, ip.Src)
		}
	}

	c.flood(dp, pkt)
}

// routeFlow picks a backend for a new client flow and installs the flow
// pair. Selection failure is not an error condition: the packet falls
// through to flooding.
func (c *Controller) routeFlow(dp datapath.Datapath, inPort uint32, clientIP net.IP) {
	srv, err := c.selector.Select()
	if err != nil {
		if errors.Is(err, selector.ErrNoHealthyBackend) {
			c.logger.Warn("No healthy servers available")
			return
		}
		c.logger.Error("Backend selection failed", slog.Any("err", err))
		return
	}

	c.installFlowPair(dp, inPort, clientIP, srv)

	c.collector.Emit(metrics.Event{
		Type:      metrics.EventRequestRouted,
		Timestamp: time.Now(),
		ServerID:  srv.ID(),
		Algorithm: c.selector.Policy(),
	})

	c.logger.Info("Routing request",
		slog.String("client", clientIP.String()),
		slog.String("server", srv.ID()))
}

// installFlowPair programs the forward rule (client to backend, destination
// rewritten) and the reverse rule (backend to client, source rewritten back
// to the virtual address). Installation is fire-and-forget; a failed install
// is logged and the flow keeps flooding until a later packet re-triggers
// selection.
func (c *Controller) installFlowPair(dp datapath.Datapath, inPort uint32, clientIP net.IP, srv *registry.Server) {
	serverIP := net.ParseIP(srv.Host())
	if serverIP == nil {
		c.logger.Error("Backend host is not an IP address, cannot program switch",
			slog.String("server", srv.ID()))
		return
	}

	forward := &openflow.FlowMod{
		Priority: flowRulePriority,
		Match: openflow.Match{
			InPort:  inPort,
			EthType: openflow.EthTypeIPv4,
			IPv4Src: clientIP,
			IPv4Dst: c.virtualIP,
		},
		Actions: []openflow.Action{
			openflow.SetIPv4DstAction(serverIP),
			openflow.OutputAction(backendPort),
		},
	}

	reverse := &openflow.FlowMod{
		Priority: flowRulePriority,
		Match: openflow.Match{
			InPort:  backendPort,
			EthType: openflow.EthTypeIPv4,
			IPv4Src: serverIP,
			IPv4Dst: clientIP,
		},
		Actions: []openflow.Action{
			openflow.SetIPv4SrcAction(c.virtualIP),
			openflow.OutputAction(inPort),
		},
	}

	if err := dp.Send(forward); err != nil {
		c.logger.Error("Failed to install forward rule",
			slog.String("server", srv.ID()),
			slog.Any("err", err))
		return
	}

	if err := dp.Send(reverse); err != nil {
		c.logger.Error("Failed to install reverse rule",
			slog.String("server", srv.ID()),
			slog.Any("err", err))
	}
}

func (c *Controller) flood(dp datapath.Datapath, pkt *openflow.PacketIn) {
	out := &openflow.PacketOut{
		BufferID: pkt.BufferID,
		InPort:   pkt.InPort,
		Actions: []openflow.Action{
			openflow.OutputAction(openflow.PortFlood),
		},
		Frame: pkt.Frame,
	}

	if err := dp.Send(out); err != nil {
		c.logger.Warn("Failed to forward packet", slog.Any("err", err))
	}
}
