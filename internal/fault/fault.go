// Package fault implements the failure injector: an HTTP operation whose only
// effect is to kill the current process the way an unhandled fault would.
//
// Termination goes straight to os.Exit. Deferred functions do not run, open
// files and sockets are left to the kernel, buffered output is lost and the
// HTTP server is never shut down. Nothing here may be reused by the graceful
// shutdown path.
package fault

import (
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/loykin/selfheal/internal/instance"
)

// ExitCodeCrash is the exit status of an induced crash.
const ExitCodeCrash = 1

// Injector terminates the process on request.
type Injector struct {
	ExitCode int

	inst *instance.Instance
	log  *slog.Logger
	exit func(code int)
}

func NewInjector(inst *instance.Instance, log *slog.Logger) *Injector {
	if log == nil {
		log = slog.Default()
	}
	return &Injector{ExitCode: ExitCodeCrash, inst: inst, log: log, exit: os.Exit}
}

// WithExit returns a copy of the injector that calls fn instead of os.Exit.
// fn is expected not to return in production use.
func (inj *Injector) WithExit(fn func(code int)) *Injector {
	cp := *inj
	cp.exit = fn
	return &cp
}

// Handle serves the crash route. The connection is taken away from the HTTP
// server before exiting so the client sees a reset, never a response.
func (inj *Injector) Handle(c *gin.Context) {
	conn := detach(c)
	inj.Terminate()
	// only reached when exit was replaced
	drop(conn)
}

// Terminate marks the instance terminated and exits with ExitCode.
func (inj *Injector) Terminate() {
	inj.inst.MarkTerminated()
	inj.log.Warn("fault injected, terminating process", "exit_code", inj.ExitCode)
	inj.exit(inj.ExitCode)
}

// Abandon drops the connection behind c without writing a response.
// When the connection cannot be hijacked (HTTP/2, recorders) it panics with
// http.ErrAbortHandler so net/http resets the stream instead of completing
// the request; the router's recovery lets that value through.
func Abandon(c *gin.Context) {
	drop(detach(c))
}

func drop(conn net.Conn) {
	if conn == nil {
		panic(http.ErrAbortHandler)
	}
	_ = conn.Close()
}

// detach hijacks the client connection and arms it so that closing it, or the
// process dying, sends a TCP reset instead of an orderly FIN. It returns nil
// when the writer cannot be hijacked; the request is aborted either way.
func detach(c *gin.Context) (conn net.Conn) {
	c.Abort()
	// gin panics when the underlying writer is not an http.Hijacker
	defer func() {
		if recover() != nil {
			conn = nil
		}
	}()
	conn, _, err := c.Writer.Hijack()
	if err != nil {
		return nil
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetLinger(0)
	}
	return conn
}
