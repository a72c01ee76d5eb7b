// Command raceboatd is a demo binary that wires a Manager to the
// in-memory loopback transport plugin, runs one dial/accept conduit
// exchange (SPEC_FULL.md scenario S3) to prove the wiring end to end, and
// then serves the read-only debug/introspection service (SPEC_FULL.md
// 6.1) until interrupted. It plays the role the teacher's
// cmd/main.go plays for its kernel: a small standalone process that
// stands up the core and an IPC sidecar, nothing more.
//
// Usage:
//
//	go run ./cmd/raceboatd                  # debug service on :50061
//	go run ./cmd/raceboatd -debug-addr :9090
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/race-boat/raceboat/config"
	"github.com/race-boat/raceboat/debugsvc"
	"github.com/race-boat/raceboat/observability"
	"github.com/race-boat/raceboat/testutil"
	"github.com/race-boat/raceboat/wire"
)

// stdLogger implements observability.Logger over the standard library
// log package, the same minimal-collaborator shape the teacher hands its
// gRPC server (coreengine/grpc's Logger interface).
type stdLogger struct {
	fields []any
}

func (l *stdLogger) log(level, msg string, args ...any) {
	all := append(append([]any{}, l.fields...), args...)
	log.Printf("[%s] %s %v", level, msg, all)
}

func (l *stdLogger) Debug(msg string, args ...any)   { l.log("DEBUG", msg, args...) }
func (l *stdLogger) Info(msg string, args ...any)    { l.log("INFO", msg, args...) }
func (l *stdLogger) Warning(msg string, args ...any) { l.log("WARN", msg, args...) }
func (l *stdLogger) Error(msg string, args ...any)   { l.log("ERROR", msg, args...) }
func (l *stdLogger) Bind(args ...any) observability.Logger {
	return &stdLogger{fields: append(append([]any{}, l.fields...), args...)}
}

func main() {
	debugAddr := flag.String("debug-addr", ":50061", "debugsvc gRPC listen address")
	flag.Parse()

	logger := &stdLogger{}
	logger.Info("raceboatd_starting", "debug_addr", *debugAddr)

	h := testutil.NewHarness(config.DefaultRaceConfig(), "demo")
	defer h.Close()

	if err := runDemoConduit(h); err != nil {
		logger.Error("demo_conduit_failed", "error", err.Error())
	} else {
		logger.Info("demo_conduit_ok")
	}

	debugServer := debugsvc.NewServer(h.Manager, logger)
	if err := debugServer.Start(*debugAddr); err != nil {
		log.Fatalf("raceboatd: %v", err)
	}
	logger.Info("raceboatd_ready", "debug_addr", debugServer.Addr().String())
	fmt.Printf("\nraceboatd running, debug service on %s\n", debugServer.Addr())
	fmt.Println("Press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown_signal_received", "signal", sig.String())

	debugServer.Stop()
	logger.Info("raceboatd_stopped")
}

// runDemoConduit exercises SPEC_FULL.md scenario S3 (long-lived conduit)
// end to end over the loopback plugin: listen, accept, dial with a hello
// payload, one write each way, then close.
func runDemoConduit(h *testutil.Harness) error {
	m := h.Manager

	status, addr, listenHandle := m.Listen(config.ListenOptions{
		SendChannel: "demo", RecvChannel: "demo",
		SendRole: "default", RecvRole: "default",
	})
	if status != wire.StatusOK {
		return fmt.Errorf("listen: %s", status)
	}
	defer m.CloseListen(listenHandle)

	type acceptResult struct {
		status  wire.ApiStatus
		conduit wire.RaceHandle
	}
	acceptDone := make(chan acceptResult, 1)
	go func() {
		status, conduit := m.Accept(listenHandle, 5000)
		acceptDone <- acceptResult{status, conduit}
	}()

	dialStatus, dialConduit := m.Dial(config.DialOptions{
		SendChannel: "demo", RecvChannel: "demo",
		SendRole: "default", RecvRole: "default",
		SendAddress: addr,
	}, []byte("Hello from client"))
	if dialStatus != wire.StatusOK {
		return fmt.Errorf("dial: %s", dialStatus)
	}
	defer m.CloseConduit(dialConduit)

	accepted := <-acceptDone
	if accepted.status != wire.StatusOK {
		return fmt.Errorf("accept: %s", accepted.status)
	}
	defer m.CloseConduit(accepted.conduit)

	status, helloBytes := m.ConduitRead(accepted.conduit, 2000)
	if status != wire.StatusOK {
		return fmt.Errorf("server read: %s", status)
	}
	log.Printf("server observed hello: %q", string(helloBytes))

	if status := m.ConduitWrite(accepted.conduit, []byte("Hello from server"), 2000); status != wire.StatusOK {
		return fmt.Errorf("server write: %s", status)
	}
	status, reply := m.ConduitRead(dialConduit, 2000)
	if status != wire.StatusOK {
		return fmt.Errorf("client read: %s", status)
	}
	log.Printf("client observed reply: %q", string(reply))

	if status := m.ConduitWrite(dialConduit, []byte("Hello from client message 2"), 2000); status != wire.StatusOK {
		return fmt.Errorf("client write: %s", status)
	}
	status, second := m.ConduitRead(accepted.conduit, 2000)
	if status != wire.StatusOK {
		return fmt.Errorf("server read: %s", status)
	}
	log.Printf("server observed: %q", string(second))
	return nil
}
