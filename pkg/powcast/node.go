package powcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jabolina/go-powcast/pkg/powcast/core"
	"github.com/jabolina/go-powcast/pkg/powcast/helper"
	"github.com/jabolina/go-powcast/pkg/powcast/metric"
	"github.com/jabolina/go-powcast/pkg/powcast/types"
)

// Holds information for shutting down the whole node.
type poweroff struct {
	shutdown bool
	mutex    *sync.Mutex
}

// Node is one member of the cohort. A single logical actor, every
// phase transition and every message handler runs on the dispatcher
// goroutine that drains the transport. The controller issues its
// challenges from a delayed goroutine, writing through the locked
// ledger.
type Node struct {
	// Local identity.
	id types.ClientID

	// Holds configuration about the node, cohort size, broker,
	// logger utilities, protocol intervals.
	configuration *types.Configuration

	// Resolved topic names.
	topics types.Topics

	// Transport layer for communication.
	transport core.Transport

	// Used to spawn and control all go routines.
	invoker core.Invoker

	// Current phase, Init on a successful connection. Written by
	// the dispatcher, read from outside, so it is stored atomically.
	phase uint32

	// Membership accumulated during init.
	registry *core.Registry

	// Ballot accumulation, created on election entry.
	election *core.Election

	// The ledger, authoritative on the controller, best effort
	// on the miners.
	ledger *types.Ledger

	// Role attached after the election, exactly one is non-nil
	// once the node is running.
	controller *core.Controller
	miner      *core.Miner

	// Whether this node won the election, readable from outside.
	elected uint32

	// The periodic re-announcer of the current phase.
	announcer *core.Announcer

	// Node instrumentation.
	metrics *metric.NodeMetrics

	// Node logger.
	log types.Logger

	// The node cancellable context.
	context context.Context

	// A cancel function to finish the node processing.
	finish context.CancelFunc

	// Shutdown guard to prevent concurrent exits.
	off poweroff
}

// NewNode connects the transport and assembles a node ready to
// Start. A broker connection failure is returned to the caller,
// there is no retry.
func NewNode(configuration *types.Configuration) (*Node, error) {
	logger := configuration.Logger
	transport, err := core.NewMQTTTransport(configuration, logger)
	if err != nil {
		return nil, err
	}
	return newNodeWithTransport(configuration, transport), nil
}

// NewNodeOverBus assembles a node attached to an in-process bus.
// Used for local simulation and by the cluster tests.
func NewNodeOverBus(configuration *types.Configuration, bus *core.LoopbackBus) *Node {
	return newNodeWithTransport(configuration, bus.Join())
}

func newNodeWithTransport(configuration *types.Configuration, transport core.Transport) *Node {
	ctx, done := context.WithCancel(context.Background())
	return &Node{
		id:            configuration.ClientID,
		configuration: configuration,
		topics:        types.NewTopics(configuration.TopicPrefix),
		transport:     transport,
		invoker:       core.NewInvoker(),
		phase:         uint32(types.Init),
		registry:      core.NewRegistry(configuration.ClientID, configuration.Cohort, configuration.Logger),
		ledger:        types.NewLedger(configuration.Storage),
		metrics:       metric.NewNodeMetrics(configuration.Registry),
		log:           configuration.Logger,
		context:       ctx,
		finish:        done,
		off:           poweroff{mutex: &sync.Mutex{}},
	}
}

// Start enters the init phase and begins draining the transport.
func (n *Node) Start() {
	n.log.Infof("node %d joining a cohort of %d", n.id, n.configuration.Cohort)
	n.setPhase(types.Init)
	n.announcer = core.NewAnnouncer(n.context, n.configuration.AnnounceInterval, n.announceIdentity, n.invoker)
	n.invoker.Spawn(n.poll)
}

// ID of this node.
func (n *Node) ID() types.ClientID {
	return n.id
}

// Phase the node currently is in. Only the dispatcher mutates it.
func (n *Node) Phase() types.Phase {
	return types.Phase(atomic.LoadUint32(&n.phase))
}

func (n *Node) setPhase(phase types.Phase) {
	atomic.StoreUint32(&n.phase, uint32(phase))
	n.metrics.Phase.Set(float64(phase))
}

// Elected reports whether this node won the election.
func (n *Node) Elected() bool {
	return atomic.LoadUint32(&n.elected) == 1
}

// Ledger view of this node.
func (n *Node) Ledger() *types.Ledger {
	return n.ledger
}

// Shutdown stops the announcer, the active worker, the dispatcher
// and the transport. Safe to call more than once.
func (n *Node) Shutdown() {
	n.off.mutex.Lock()
	defer n.off.mutex.Unlock()

	if n.off.shutdown {
		return
	}
	n.off.shutdown = true
	n.finish()
	n.transport.Close()
	n.invoker.Stop()
	n.log.Infof("node %d stopped", n.id)
}

// The dispatcher. Every inbound message is processed sequentially
// here, handlers mutate node state without further synchronization.
func (n *Node) poll() {
	for {
		select {
		case <-n.context.Done():
			return
		case in, ok := <-n.transport.Listen():
			if !ok {
				return
			}
			n.process(in)
		}
	}
}

// Route one inbound message by topic and phase. Messages arriving in
// the wrong phase are stragglers from an earlier phase, dropped
// silently. No failure may escape a handler, a malformed payload
// must never stop the dispatcher.
func (n *Node) process(in core.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Errorf("recovered handler failure on %s. %v", in.Topic, r)
		}
	}()
	n.metrics.Inbound.WithLabelValues(in.Topic).Inc()

	switch in.Topic {
	case n.topics.Init:
		if n.Phase() != types.Init {
			n.drop("out-of-phase")
			return
		}
		n.handleInit(in.Payload)
	case n.topics.Voting:
		if n.Phase() != types.Election {
			n.drop("out-of-phase")
			return
		}
		n.handleBallot(in.Payload)
	case n.topics.Challenge:
		// The controller hears its own challenges back, they carry
		// no information for it.
		if n.Phase() != types.Running || n.miner == nil {
			n.drop("out-of-phase")
			return
		}
		n.handleChallenge(in.Payload)
	case n.topics.Solution:
		if n.Phase() != types.Running || n.controller == nil {
			n.drop("out-of-phase")
			return
		}
		n.handleSolution(in.Payload)
	case n.topics.Result:
		if n.Phase() != types.Running || n.miner == nil {
			n.drop("out-of-phase")
			return
		}
		n.handleResult(in.Payload)
	default:
		n.drop("unknown-topic")
	}
}

func (n *Node) drop(reason string) {
	n.metrics.Dropped.WithLabelValues(reason).Inc()
}

func (n *Node) handleInit(payload []byte) {
	announce, err := types.ParseInitAnnounce(payload)
	if err != nil {
		n.log.Warnf("dropping malformed init payload. %v", err)
		n.drop("malformed")
		return
	}
	n.registry.Observe(announce.ClientID)
	if n.registry.Complete() {
		// A node that converges first would stop announcing while
		// slower peers still need to discover it, so it signs off
		// with a short best-effort burst.
		n.announcer.Burst(3, n.configuration.BurstSpacing)
		n.announcer.Stop()
		n.enterElection()
	}
}

func (n *Node) enterElection() {
	n.setPhase(types.Election)
	ballot := types.Ballot{ClientID: n.id, VoteID: types.VoteID(helper.DrawID())}
	n.election = core.NewElection(ballot, n.configuration.Cohort, n.log)
	n.log.Infof("cohort discovered, node %d voting %d", n.id, n.election.Ballot().VoteID)
	n.announcer = core.NewAnnouncer(n.context, n.configuration.AnnounceInterval, n.announceBallot, n.invoker)
}

func (n *Node) handleBallot(payload []byte) {
	ballot, err := types.ParseBallot(payload)
	if err != nil {
		n.log.Warnf("dropping malformed ballot payload. %v", err)
		n.drop("malformed")
		return
	}
	if _, err := n.election.Observe(ballot); err != nil {
		// Another node drew our ClientID, or a peer is announcing
		// two different ballots. The cohort cannot converge.
		n.log.Fatalf("ballot conflict on client %d. %v", ballot.ClientID, err)
		return
	}
	if n.election.Complete() {
		n.announcer.Stop()
		n.enterRunning()
	}
}

func (n *Node) enterRunning() {
	leader := n.election.Leader()
	if leader == n.id {
		n.controller = core.NewController(n.context, n.configuration, n.transport, n.ledger, n.invoker, n.metrics, n.log)
		atomic.StoreUint32(&n.elected, 1)
		n.setPhase(types.Running)
		n.controller.Start()
		return
	}
	n.log.Infof("node %d mining for controller %d", n.id, leader)
	n.miner = core.NewMiner(n.context, n.configuration, n.transport, n.ledger, n.invoker, n.metrics, n.log)
	n.setPhase(types.Running)
}

func (n *Node) handleChallenge(payload []byte) {
	challenge, err := types.ParseChallengeAnnounce(payload)
	if err != nil {
		n.log.Warnf("dropping malformed challenge payload. %v", err)
		n.drop("malformed")
		return
	}
	n.miner.OnChallenge(challenge)
}

func (n *Node) handleSolution(payload []byte) {
	submit, err := types.ParseSolutionSubmit(payload)
	if err != nil {
		n.log.Warnf("dropping malformed solution payload. %v", err)
		n.drop("malformed")
		return
	}
	n.controller.OnSolution(submit)
}

func (n *Node) handleResult(payload []byte) {
	result, err := types.ParseResultAnnounce(payload)
	if err != nil {
		n.log.Warnf("dropping malformed result payload. %v", err)
		n.drop("malformed")
		return
	}
	n.miner.OnResult(result)
}

func (n *Node) announceIdentity() {
	payload, err := types.Encode(types.InitAnnounce{ClientID: n.id})
	if err != nil {
		n.log.Errorf("failed encoding identity. %v", err)
		return
	}
	if err := n.transport.Publish(n.topics.Init, payload); err != nil {
		n.log.Errorf("failed announcing identity. %v", err)
	}
}

func (n *Node) announceBallot() {
	payload, err := types.Encode(n.election.Ballot())
	if err != nil {
		n.log.Errorf("failed encoding ballot. %v", err)
		return
	}
	if err := n.transport.Publish(n.topics.Voting, payload); err != nil {
		n.log.Errorf("failed announcing ballot. %v", err)
	}
}
