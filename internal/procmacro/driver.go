package procmacro

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/uri"

	"github.com/qryxip/equipgo/internal/equiplog"
)

// MacroPanic reports that a macro body panicked inside the host, carrying
// the host-supplied panic message (spec.md §4.6/§7).
type MacroPanic struct {
	MacroName string
	Message   string
}

func (e *MacroPanic) Error() string {
	return fmt.Sprintf("macro %q panicked: %s", e.MacroName, e.Message)
}

// HostError reports a JSON-RPC-level failure talking to the proc-macro
// host: a dead process, a malformed response, or the host itself erroring
// out (spec.md §4.6/§7). Per spec.md §5, there is no retry.
type HostError struct {
	Message string
	Cause   error
}

func (e *HostError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proc-macro host error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("proc-macro host error: %s", e.Message)
}

func (e *HostError) Unwrap() error { return e.Cause }

// Driver drives the external proc-macro host subprocess over a duplex
// JSON-RPC channel, per spec.md §4.6/§5: one long-running process, calls
// strictly sequential, responses matched to requests in FIFO order by the
// underlying jsonrpc2.Conn.
type Driver struct {
	cmd    *exec.Cmd
	conn   jsonrpc2.Conn
	logger equiplog.Logger

	derives   map[string]bool
	attrs     map[string]bool
	funcLikes map[string]bool
}

// Spawn starts the host executable, wires it over stdin/stdout with
// jsonrpc2, and waits for its startup "register" notification classifying
// every macro the loaded dylibs expose by kind.
//
// dylibPathsByPackage maps a proc-macro crate's package name to the path
// of its compiled dynamic library; the host is expected to load each one
// and report, via "register", which macro names it found.
func Spawn(ctx context.Context, executablePath string, dylibPathsByPackage map[string]string, logger equiplog.Logger) (*Driver, error) {
	if logger == nil {
		logger = equiplog.Nop{}
	}
	cmd := exec.CommandContext(ctx, executablePath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &HostError{Message: "failed to open host stdin", Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &HostError{Message: "failed to open host stdout", Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &HostError{Message: "failed to open host stderr", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &HostError{Message: "failed to start host process", Cause: err}
	}
	go logStderr(stderr, logger)

	rwc := newReadWriteCloser(stdin, stdout)
	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(rwc))

	d := &Driver{
		cmd:       cmd,
		conn:      conn,
		logger:    logger,
		derives:   map[string]bool{},
		attrs:     map[string]bool{},
		funcLikes: map[string]bool{},
	}

	registered := make(chan struct{}, 1)
	handler := jsonrpc2.ReplyHandler(func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if req.Method() != "register" {
			return reply(ctx, nil, nil)
		}
		var params RegisterParams
		if err := json.Unmarshal(req.Params(), &params); err != nil {
			logger.Warnf("proc-macro host sent malformed register params: %v", err)
			return reply(ctx, nil, nil)
		}
		for _, n := range params.Derives {
			d.derives[n] = true
		}
		for _, n := range params.Attrs {
			d.attrs[n] = true
		}
		for _, n := range params.FuncLikes {
			d.funcLikes[n] = true
		}
		select {
		case registered <- struct{}{}:
		default:
		}
		return reply(ctx, nil, nil)
	})
	conn.Go(ctx, handler)

	loadParams := map[string]interface{}{"dylibsByPackage": dylibPathsByPackage}
	if _, err := conn.Call(ctx, "load", loadParams, nil); err != nil {
		_ = d.Close(ctx)
		return nil, &HostError{Message: "host \"load\" call failed", Cause: err}
	}

	select {
	case <-registered:
	case <-ctx.Done():
		_ = d.Close(ctx)
		return nil, &HostError{Message: "host did not register before context cancellation", Cause: ctx.Err()}
	}

	return d, nil
}

func logStderr(stderr io.Reader, logger equiplog.Logger) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 4096), 1024*1024)
	for scanner.Scan() {
		logger.Debugf("proc-macro host stderr: %s", scanner.Text())
	}
}

// IsDerive reports whether name is a known derive macro.
func (d *Driver) IsDerive(name string) bool { return d.derives[name] }

// IsAttr reports whether name is a known attribute macro.
func (d *Driver) IsAttr(name string) bool { return d.attrs[name] }

// IsFuncLike reports whether name is a known function-like macro.
func (d *Driver) IsFuncLike(name string) bool { return d.funcLikes[name] }

// Expand sends one expansion request to the host and returns the expanded
// token tree, or a *MacroPanic / *HostError.
func (d *Driver) Expand(ctx context.Context, kind Kind, macroName string, body TokenTree, attr *TokenTree) (TokenTree, error) {
	params := ExpandParams{Kind: kind.String(), MacroName: macroName, Body: body, Attr: attr}
	var result ExpandResult
	if _, err := d.conn.Call(ctx, "expand", params, &result); err != nil {
		return TokenTree{}, &HostError{Message: fmt.Sprintf("expand(%s) call failed", macroName), Cause: err}
	}
	if result.Panic != "" {
		return TokenTree{}, &MacroPanic{MacroName: macroName, Message: result.Panic}
	}
	return result.Tokens, nil
}

// NotifyWorkspaceRoot tells the host which library root source file the
// subsequent Expand calls belong to, turning rootPath into the uri.URI the
// host expects (the same file-URI convention the teacher's gopls client
// uses for didOpen/didChange notifications).
func (d *Driver) NotifyWorkspaceRoot(ctx context.Context, rootPath string) error {
	params := map[string]interface{}{"root": uri.File(rootPath)}
	if err := d.conn.Notify(ctx, "workspaceRoot", params); err != nil {
		return &HostError{Message: "workspaceRoot notification failed", Cause: err}
	}
	return nil
}

// Close shuts the host down: a "shutdown" call, an "exit" notification,
// closing the connection, then waiting for the process to exit.
func (d *Driver) Close(ctx context.Context) error {
	if d.conn != nil {
		if _, err := d.conn.Call(ctx, "shutdown", nil, nil); err != nil {
			d.logger.Warnf("proc-macro host shutdown call failed: %v", err)
		}
		if err := d.conn.Notify(ctx, "exit", nil); err != nil {
			d.logger.Warnf("proc-macro host exit notification failed: %v", err)
		}
		if err := d.conn.Close(); err != nil {
			d.logger.Debugf("proc-macro host connection close error: %v", err)
		}
	}
	if d.cmd != nil && d.cmd.Process != nil {
		if err := d.cmd.Wait(); err != nil {
			d.logger.Debugf("proc-macro host process wait error: %v", err)
		}
	}
	return nil
}

// readWriteCloser combines the subprocess's separate stdin/stdout pipes
// into the single io.ReadWriteCloser jsonrpc2.NewStream expects, buffering
// writes and flushing after each one so requests are sent immediately.
type readWriteCloser struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
	writer *bufio.Writer
}

func newReadWriteCloser(stdin io.WriteCloser, stdout io.ReadCloser) *readWriteCloser {
	return &readWriteCloser{
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReaderSize(stdout, 32*1024),
		writer: bufio.NewWriterSize(stdin, 32*1024),
	}
}

func (rwc *readWriteCloser) Read(p []byte) (int, error) { return rwc.reader.Read(p) }

func (rwc *readWriteCloser) Write(p []byte) (int, error) {
	n, err := rwc.writer.Write(p)
	if err != nil {
		return n, err
	}
	return n, rwc.writer.Flush()
}

func (rwc *readWriteCloser) Close() error {
	_ = rwc.writer.Flush()
	err1 := rwc.stdin.Close()
	err2 := rwc.stdout.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
