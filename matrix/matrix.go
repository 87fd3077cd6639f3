package matrix

import (
	"sync"
	"time"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/logging"
	"github.com/hupe1980/agentmatrix/model"
)

// Config defines tuning parameters for the matrix.
type Config struct {
	// RoomMessageLimit caps each room's message log; oldest entries are
	// evicted first.
	RoomMessageLimit int

	// DefaultTimeout bounds an agent inference call when the agent config
	// does not set its own timeout.
	DefaultTimeout time.Duration

	// DeliveryQueueSize is the buffer of the process-wide delivery channel.
	// Sends never block: when the buffer is full the delivery copy is
	// dropped (room log and subscriber fan-out are unaffected).
	DeliveryQueueSize int

	// RecentMessageWindow is how many room messages are included when
	// assembling an agent prompt.
	RecentMessageWindow int
}

// DefaultConfig provides safe defaults for local development and tests.
var DefaultConfig = Config{
	RoomMessageLimit:    core.DefaultRoomMessageLimit,
	DefaultTimeout:      30 * time.Second,
	DeliveryQueueSize:   256,
	RecentMessageWindow: 10,
}

// Options configures a Matrix instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Clock drives cooldown checks; defaults to the system clock. Tests
	// inject a fake clock.
	Clock core.Clock

	// ActiveRoomName names the default collaboration room created at
	// construction.
	ActiveRoomName string
}

// Matrix owns the agent registry, the rooms and the message bus and runs
// trigger batches against the injected inference capability. All exported
// methods are safe for concurrent use.
type Matrix struct {
	cfg    Config
	model  model.Model
	clock  core.Clock
	logger logging.Logger

	mu         sync.RWMutex
	agents     map[string]*core.AgentInstance
	order      []string
	rooms      map[string]*core.Room
	activeRoom string

	subsMu sync.RWMutex
	subs   []func(core.Message)

	deliveries chan core.Message
}

// New creates a Matrix bound to an inference model. A default active room is
// created immediately so triggered agents always have a publish target.
func New(m model.Model, optFns ...func(o *Options)) *Matrix {
	opts := Options{
		Config:         DefaultConfig,
		Logger:         logging.NoOpLogger{},
		Clock:          core.SystemClock(),
		ActiveRoomName: "main",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config.RoomMessageLimit < 1 {
		opts.Config.RoomMessageLimit = core.DefaultRoomMessageLimit
	}
	if opts.Config.DeliveryQueueSize < 1 {
		opts.Config.DeliveryQueueSize = DefaultConfig.DeliveryQueueSize
	}
	if opts.Config.RecentMessageWindow < 1 {
		opts.Config.RecentMessageWindow = DefaultConfig.RecentMessageWindow
	}

	mx := &Matrix{
		cfg:        opts.Config,
		model:      m,
		clock:      opts.Clock,
		logger:     opts.Logger,
		agents:     make(map[string]*core.AgentInstance),
		rooms:      make(map[string]*core.Room),
		deliveries: make(chan core.Message, opts.Config.DeliveryQueueSize),
	}

	room := core.NewRoom(core.NewID(), opts.ActiveRoomName, nil, map[string]any{"session_id": core.NewID()})
	room.SetMessageLimit(mx.cfg.RoomMessageLimit)
	mx.rooms[room.ID] = room
	mx.activeRoom = room.ID

	return mx
}

// Model returns the injected inference capability.
func (m *Matrix) Model() model.Model { return m.model }
