package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/net/http2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultIdleTimeout = 60 * time.Second
	shutdownTimeout    = 5 * time.Second
)

type Options struct {
	Addr      string
	TLSConfig *tls.Config
	// EnableTCP adds the HTTP/2 + HTTP/1.1 listener next to HTTP/3.
	EnableTCP   bool
	IdleTimeout time.Duration
}

func (o Options) Validate() error {
	return validation.ValidateStruct(&o,
		validation.Field(&o.Addr, validation.Required, validation.By(validateHost)),
		validation.Field(&o.TLSConfig, validation.NotNil),
	)
}

// Server owns the HTTP/3 server and the optional TCP fallback.
type Server struct {
	h3        *http3.Server
	tcp       *http.Server
	closed    chan struct{}
	closeOnce sync.Once
}

// New validates opts and prepares the listeners. Nothing is bound until
// Start.
func New(opts Options, handler http.Handler) (*Server, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = defaultIdleTimeout
	}

	srv := &Server{
		h3: &http3.Server{
			Addr:       opts.Addr,
			Handler:    handler,
			TLSConfig:  opts.TLSConfig.Clone(),
			QUICConfig: &quic.Config{MaxIdleTimeout: idle},
		},
		closed: make(chan struct{}),
	}

	if opts.EnableTCP {
		srv.tcp = &http.Server{
			Addr:              opts.Addr,
			Handler:           srv.advertiseHTTP3(handler),
			TLSConfig:         opts.TLSConfig.Clone(),
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       idle,
		}
		if err := http2.ConfigureServer(srv.tcp, &http2.Server{IdleTimeout: idle}); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
	}

	return srv, nil
}

// Start serves until Shutdown or until either listener fails. It returns nil
// after a clean shutdown.
func (s *Server) Start() error {
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		return serveErr("http3", s.h3.ListenAndServe())
	})

	if s.tcp != nil {
		g.Go(func() error {
			return serveErr("tcp", s.tcp.ListenAndServeTLS("", ""))
		})
	}

	g.Go(func() error {
		select {
		case <-ctx.Done():
			s.Shutdown(context.Background())
		case <-s.closed:
		}
		return nil
	})

	return g.Wait()
}

// Shutdown stops both listeners, giving in-flight requests on either up to
// five seconds before their connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	s.closeOnce.Do(func() {
		close(s.closed)

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if s.tcp != nil {
			if err := s.tcp.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.h3.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	})

	return errors.Join(errs...)
}

func (s *Server) advertiseHTTP3(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.h3.SetQUICHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

func serveErr(listener string, err error) error {
	if err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, quic.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("%s listener: %w", listener, err)
}

// LoadTLSConfig loads a PEM certificate and key.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func validateHost(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cant be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}
