// Command cv is a CLI client for the CV keeper service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/and161185/cv-keeper/internal/api/cvapi"
	grpcserver "github.com/and161185/cv-keeper/internal/server/grpc"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "cvkeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cvkeeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	_ = os.MkdirAll(cfgDir(), 0o700)
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run `cv token` first)")
	}
	return tf.AccessToken, nil
}

// mintToken signs a dev token for sub with the server's jwt key. The returned
// expiry is never later than the token's own.
func mintToken(key, sub string, ttl time.Duration) (string, time.Time, error) {
	exp := time.Now().UTC().Add(ttl)
	tok, err := grpcserver.IssueToken([]byte(key), sub, ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("need -key and -sub: %w", err)
	}
	return tok, exp, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token  string
	secure bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return b.secure }

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

type dialOptions struct {
	addr       string
	caPath     string
	skipVerify bool
	plaintext  bool
}

func dial(ctx context.Context, o dialOptions, bearer string) (*grpc.ClientConn, cvapi.CvServiceClient, error) {
	var opts []grpc.DialOption
	if o.plaintext {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		creds, err := loadTLS(o.caPath, o.skipVerify)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, grpc.WithTransportCredentials(creds))
	}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, secure: !o.plaintext}))
	}
	//nolint:staticcheck // DialContext is supported through 1.x; migrate when grpc.NewClient is stable
	cc, err := grpc.DialContext(ctx, o.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, cvapi.NewCvServiceClient(cc), nil
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage() {
	fmt.Fprintf(os.Stderr, `cv CLI
Usage:
  cv -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  token     -key <jwt key> -sub <user id> [-ttl 24h]   (saves token)
  create    -title <t> -template <id> [-id <cvId>]
  add       -cv <id> [-id <sectionId>] -title <t> (-content <c> | -file <path|->) [-type <t>] [-expect <ver>]
  update    -cv <id> -id <sectionId> [-title <t>] [-content <c> | -file <path|->] [-type <t>] [-expect <ver>]
  rm        -cv <id> -id <sectionId> [-expect <ver>]
  rename    -cv <id> -title <t> [-expect <ver>]
  template  -cv <id> -template <id> [-expect <ver>]
  undo      -cv <id>
  show      -cv <id>
  list
  history   -cv <id>
  at        -cv <id> -version <n>
`)
	os.Exit(2)
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	var o dialOptions
	flag.StringVar(&o.addr, "addr", "localhost:8443", "server addr")
	flag.StringVar(&o.caPath, "cacert", "", "CA cert (PEM)")
	flag.BoolVar(&o.skipVerify, "insecure", false, "skip cert verify (dev)")
	flag.BoolVar(&o.plaintext, "plaintext", false, "no TLS (dev server without certs)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	name := flag.Arg(0)
	args := flag.Args()[1:]

	switch name {
	case "version":
		fmt.Printf("cv %s (%s)\n", version, buildDate)
		return

	case "token":
		fs := flag.NewFlagSet("token", flag.ExitOnError)
		key := fs.String("key", os.Getenv("CV_JWT_KEY"), "server jwt key")
		sub := fs.String("sub", "", "user id")
		ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
		_ = fs.Parse(args)
		tok, exp, err := mintToken(*key, *sub, *ttl)
		if err != nil {
			fail(err)
		}
		if err := saveToken(tok, exp); err != nil {
			fail(err)
		}
		fmt.Println("ok")
		return
	}

	cmd, ok := commands[name]
	if !ok {
		usage()
	}

	token, err := loadToken()
	if err != nil {
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cc, cli, err := dial(ctx, o, token)
	if err != nil {
		fail(err)
	}
	defer cc.Close()

	out, err := cmd(ctx, cli, args)
	if err != nil {
		fail(err)
	}
	printJSON(os.Stdout, out)
}
