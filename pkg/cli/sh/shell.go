package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/panel.go/pkg/env"
	fx "github.com/robotalks/panel.go/pkg/framework"
	"github.com/robotalks/panel.go/pkg/link"
	"github.com/robotalks/panel.go/pkg/protocol"
	"github.com/robotalks/panel.go/pkg/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	WaitAck     bool

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Conn

	monitor int32
}

// Conn is a running link to a panel.
type Conn struct {
	Ctx    context.Context
	Cancel func()
	URL    string
	Client *link.Client

	done chan struct{}
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	waitAck    bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
		&MonitorCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.BoolVar(&waitAck, "ack", waitAck, "Wait for Ack/Nack of commands.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		WaitAck:     waitAck,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// MessageJSON is the JSON form of a message.
type MessageJSON struct {
	Type    string           `json:"type"`
	Message protocol.Message `json:"message"`
}

// FormatMessage prints a message for display.
func (s *Shell) FormatMessage(msg protocol.Message) string {
	if !s.OutputJSON {
		return msg.String()
	}
	out, err := json.Marshal(&MessageJSON{Type: protocol.TypeName(msg.Type()), Message: msg})
	if err != nil {
		return msg.String()
	}
	return string(out)
}

// DoCommand sends a command, and waits for Ack/Nack if WaitAck is set.
func DoCommand(c *ishell.Context, msg protocol.Message) (err error) {
	s := ShellFrom(c)
	if s.Conn == nil {
		err = fmt.Errorf("not connected")
		c.Err(err)
		return
	}
	cmd := s.Conn.Client.Do(msg)
	if !s.WaitAck {
		select {
		case res := <-cmd.ResultChan():
			// failed to send.
			err = res.Err
			c.Err(err)
		default:
		}
		return
	}
	ctx, cancel := s.commandContext()
	defer cancel()
	if err = cmd.Wait(ctx); err != nil {
		c.Err(fmt.Errorf("%s (seq %d): %w", msg, cmd.Sequence(), err))
		return
	}
	c.Println("OK")
	return nil
}

// commandContext bounds waiting for a reply by CommandTimeout, 0 waits
// until the connection closes.
func (s *Shell) commandContext() (context.Context, context.CancelFunc) {
	if timeout := s.Config.CommandTimeout; timeout > 0 {
		return context.WithTimeout(s.Conn.Ctx, timeout)
	}
	return context.WithCancel(s.Conn.Ctx)
}

// SetMonitor turns printing of incoming messages on or off.
func (s *Shell) SetMonitor(on bool) {
	var val int32
	if on {
		val = 1
	}
	atomic.StoreInt32(&s.monitor, val)
}

// Monitoring indicates incoming messages are printed.
func (s *Shell) Monitoring() bool {
	return atomic.LoadInt32(&s.monitor) != 0
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Connect opens the panel at url.
// The current panel is disconnected first so the device is never opened twice.
func (s *Shell) Connect(url string) error {
	s.Disconnect()
	tc, err := transport.Open(url)
	if err != nil {
		return err
	}
	l := link.NewLink(tc)
	l.ReadTimeout = tc.ReadTimeout
	l.HeartbeatInterval = s.Config.HeartbeatInterval
	l.HeartbeatTimeout = s.Config.HeartbeatTimeout
	client := link.NewClient(l)
	client.Expiration = s.Config.CommandTimeout

	conn := &Conn{URL: tc.URL, Client: client, done: make(chan struct{})}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	s.Conn = conn
	go func() {
		defer close(conn.done)
		err := fx.RunWithContextCloser(conn.Ctx, tc, func() error {
			return client.Run(conn.Ctx)
		})
		if err != nil && conn.Ctx.Err() == nil {
			s.printf("link %s stopped: %v\n", conn.URL, err)
		}
	}()
	go s.printEvents(conn)
	s.setPrompt(fmt.Sprintf("%s > ", conn.URL))
	return nil
}

// Disconnect disconnects current panel.
func (s *Shell) Disconnect() {
	if conn := s.Conn; conn != nil {
		conn.Cancel()
		<-conn.done
		s.Conn = nil
		s.setPrompt(unconnectedPrompt)
	}
}

// setPrompt and printf are no-ops when no ishell is attached.
func (s *Shell) setPrompt(prompt string) {
	if s.Shell != nil {
		s.Shell.SetPrompt(prompt)
	}
}

func (s *Shell) printf(format string, args ...interface{}) {
	if s.Shell != nil {
		s.Shell.Printf(format, args...)
	}
}

func (s *Shell) printEvents(conn *Conn) {
	for {
		select {
		case <-conn.done:
			return
		case msg := <-conn.Client.EventChan():
			if s.Monitoring() {
				s.printf("%s\n", s.FormatMessage(msg))
			}
		case state := <-conn.Client.StateChan():
			if s.Monitoring() {
				s.printf("panel %s\n", state)
			}
		}
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.DeviceURL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.DeviceURL)
		}
		if err := s.Connect(s.Config.DeviceURL); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.DeviceURL, err)
		}
		defer s.Disconnect()
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.SetMonitor(true)
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a panel.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			url := s.Config.DeviceURL
			if len(c.Args) > 0 {
				url = c.Args[0]
			}
			if err := s.Connect(url); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current panel.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// MonitorCmd toggles printing of incoming messages.
	MonitorCmd = ishell.Cmd{
		Name:    "monitor",
		Aliases: []string{"m"},
		Help:    "[on|off]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				c.Printf("monitor %v\n", s.Monitoring())
				return
			}
			switch c.Args[0] {
			case "on":
				s.SetMonitor(true)
			case "off":
				s.SetMonitor(false)
			default:
				c.Err(fmt.Errorf("expect on or off"))
			}
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := env.NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	New(conf).WithAutoConnect(true).Run(flag.Args()...)
}
