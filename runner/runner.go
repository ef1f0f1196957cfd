// Package runner - Referenz-Engine fuer Skripte
//
// Enthaelt:
// - Execute: Einstiegspunkt des versteckten runner-Subkommandos
// - Server: zustandsbehaftete Engine mit gin-Routen /health und /execute
//
// Die Variablenumgebung lebt so lange wie der Prozess. Ein Laufzeitfehler
// bricht die Submission ab, ohne Bindungen zu uebernehmen, und wird als
// HTTP 422 mit dem Index des fehlgeschlagenen Statements gemeldet.
package runner

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sysds/sysds/api"
	"github.com/sysds/sysds/envconfig"
	"github.com/sysds/sysds/graph"
	"github.com/sysds/sysds/logutil"
	"github.com/sysds/sysds/ml"
)

// defaultPort ist der Standard-Port fuer den Runner
const defaultPort = 8765

// Options configures a Server.
type Options struct {
	WorkDir string
	// Memory is the largest matrix in bytes, 0 for no limit.
	Memory uint64
	// Stdout receives print output.
	Stdout io.Writer
	// AllowOrigins enables CORS for browser clients. Empty disables it.
	AllowOrigins []string
}

// Server is a stateful engine.
type Server struct {
	mu   sync.Mutex
	vars map[string]ml.Value
	busy atomic.Bool

	opts Options
}

func NewServer(opts Options) *Server {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Server{vars: make(map[string]ml.Value), opts: opts}
}

// Execute startet den Engine-Server
func Execute(args []string) error {
	fs := flag.NewFlagSet("runner", flag.ExitOnError)
	port := fs.Int("port", defaultPort, "Port to expose the server on")
	workdir := fs.String("workdir", "", "Directory for relative read and write paths")
	memory := fs.Uint64("memory", 0, "Largest matrix in bytes (default: no limit)")
	verbose := fs.Bool("verbose", false, "verbose output (default: disabled)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Runner usage\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := envconfig.LogLevel()
	if *verbose {
		level = min(level, slog.LevelDebug)
	}
	slog.SetDefault(logutil.NewLogger(os.Stderr, level))
	slog.Info("starting engine", "port", *port, "workdir", *workdir, "memory", *memory)

	gin.SetMode(gin.ReleaseMode)
	server := NewServer(Options{WorkDir: *workdir, Memory: *memory, AllowOrigins: envconfig.AllowedOrigins()})

	addr := "127.0.0.1:" + strconv.Itoa(*port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Println("Listen error:", err)
		return err
	}
	defer listener.Close()

	httpServer := http.Server{
		Handler: server.Handler(),
	}

	slog.Info("engine listening", "addr", addr)
	if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP routes of the engine.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), requestLogger())
	if len(s.opts.AllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowWildcard = true
		corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "User-Agent"}
		corsConfig.AllowOrigins = s.opts.AllowOrigins
		r.Use(cors.New(corsConfig))
	}

	r.GET("/health", s.health)
	r.POST("/execute", s.execute)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "duration", time.Since(start))
	}
}

// health ist der HTTP Handler fuer Health-Checks
func (s *Server) health(c *gin.Context) {
	status := api.ServerStatusReady
	if s.busy.Load() {
		status = api.ServerStatusBusy
	}

	var n int
	if s.mu.TryLock() {
		n = len(s.vars)
		s.mu.Unlock()
	}
	c.JSON(http.StatusOK, api.ServerStatusResponse{Status: status, Variables: n})
}

func kindType(k api.Kind) graph.ValueType {
	switch k {
	case api.KindMatrix:
		return graph.TypeMatrix
	case api.KindFrame:
		return graph.TypeFrame
	case api.KindScalar:
		return graph.TypeScalar
	case api.KindList:
		return graph.TypeList
	default:
		return graph.TypeNone
	}
}

func runtimeError(c *gin.Context, statement int, op string, err error) {
	resp := api.StatusError{ErrorMessage: err.Error(), Op: op}
	if statement >= 0 {
		resp.Statement = &statement
	}
	slog.Debug("execution failed", "statement", statement, "op", op, "error", err)
	c.JSON(http.StatusUnprocessableEntity, resp)
}

func (s *Server) execute(c *gin.Context) {
	var req api.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stmts, err := parse(req.Script)
	if err != nil {
		var pe *parseError
		if errors.As(err, &pe) {
			runtimeError(c, pe.statement, "", err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Statements) > 0 && len(req.Statements) != len(stmts) {
		slog.Warn("statement table does not match script", "statements", len(req.Statements), "parsed", len(stmts))
	}

	inputs := make(map[string]ml.Value, len(req.Inputs))
	for _, f := range req.Inputs {
		v, err := ml.Decode(f, kindType(f.Kind))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("input %s: %v", f.Name, err)})
			return
		}
		inputs[f.Name] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy.Store(true)
	defer s.busy.Store(false)

	in := &interp{
		vars:    s.vars,
		staged:  make(map[string]ml.Value),
		inputs:  inputs,
		stdout:  s.opts.Stdout,
		workdir: s.opts.WorkDir,
		memory:  s.opts.Memory,
	}

	start := time.Now()
	if err := in.run(stmts); err != nil {
		var ee *execError
		if errors.As(err, &ee) {
			runtimeError(c, ee.statement, ee.op, ee.err)
			return
		}
		runtimeError(c, -1, "", err)
		return
	}

	frames := make([]api.Frame, len(req.Outputs))
	for i, name := range req.Outputs {
		v, ok := in.lookup(name)
		if !ok {
			runtimeError(c, -1, "", fmt.Errorf("undefined variable %s", name))
			return
		}
		f, err := ml.Encode(v, ml.EncodeOptions{Compression: req.Compression, ForceDense: req.ForceDense})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("encode %s: %v", name, err)})
			return
		}
		f.Name = name
		frames[i] = f
	}
	if !req.Isolated {
		in.commit()
	}

	slog.Debug("program executed", "statements", len(stmts), "outputs", len(frames), "duration", time.Since(start))

	c.Header("Content-Type", api.ContentTypeFrames)
	c.Status(http.StatusOK)
	w := api.NewFrameWriter(c.Writer)
	for i := range frames {
		if err := w.Write(&frames[i]); err != nil {
			slog.Warn("failed to write result frame", "name", frames[i].Name, "error", err)
			return
		}
	}
}
