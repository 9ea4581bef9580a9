package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mcp_golang "github.com/metoro-io/mcp-golang"
	"github.com/metoro-io/mcp-golang/transport/stdio"
	"github.com/rs/zerolog"

	"github.com/kazuph/tab-transfer/internal/config"
	"github.com/kazuph/tab-transfer/internal/console"
	"github.com/kazuph/tab-transfer/internal/driver"
	"github.com/kazuph/tab-transfer/internal/format"
	"github.com/kazuph/tab-transfer/internal/logger"
	"github.com/kazuph/tab-transfer/internal/platform"
	"github.com/kazuph/tab-transfer/internal/service"
	"github.com/kazuph/tab-transfer/internal/tabs"
)

// CurrentTabsURI is the resource holding the last copied tab list
const CurrentTabsURI = "tabs://current"

// resourceFormat encodes the current_tabs resource
var resourceFormat = format.NewTabFormatter(format.FormatJSON)

// TabTransferServer implements MCP server for tab transfer functionality
type TabTransferServer struct {
	driverOpts []driver.Option
	now        func() time.Time
	log        zerolog.Logger

	mu      sync.Mutex
	current []tabs.Record
}

// NewTabTransferServer creates a new MCP server for tab transfer. The driver
// options are applied to every driver a tool creates.
func NewTabTransferServer(opts ...driver.Option) *TabTransferServer {
	return &TabTransferServer{
		driverOpts: opts,
		now:        time.Now,
		log:        logger.WithComponent("mcp"),
	}
}

// Start registers tools and resources and serves over stdio until the
// client disconnects
func (s *TabTransferServer) Start() error {
	server := mcp_golang.NewServer(stdio.NewStdioServerTransport())

	if err := s.register(server); err != nil {
		return err
	}

	s.log.Info().Msg("serving MCP over stdio")

	return server.Serve()
}

func (s *TabTransferServer) register(server *mcp_golang.Server) error {
	tools := []struct {
		name, description string
		handler           any
	}{
		{"copy_tabs", "Copy open browser tabs from an Android (ADB) or iOS (WebKit Debug Proxy) device", s.copyTabsTool},
		{"reopen_tabs", "Reopen saved tabs on an Android or iOS device", s.reopenTabsTool},
		{"check_environment", "Check system dependencies (ADB, iOS WebKit Debug Proxy)", s.checkEnvironmentTool},
	}

	for _, t := range tools {
		if err := server.RegisterTool(t.name, t.description, t.handler); err != nil {
			return fmt.Errorf("failed to register %s: %w", t.name, err)
		}
	}

	err := server.RegisterResource(CurrentTabsURI, "current_tabs", "Tabs copied by the last copy_tabs call", resourceFormat.MimeType(), s.currentTabsResource)
	if err != nil {
		return fmt.Errorf("failed to register current_tabs resource: %w", err)
	}

	return nil
}

// CopyTabsArgs represents arguments for tab copying
type CopyTabsArgs struct {
	Platform  string `json:"platform" jsonschema:"required,description=Source platform (android, iphone or legacy)"`
	Port      int    `json:"port" jsonschema:"description=Local port for the device endpoint (default: 9222)"`
	Timeout   int    `json:"timeout" jsonschema:"description=Network timeout in seconds (default and minimum: 10)"`
	SkipCheck bool   `json:"skipCheck" jsonschema:"description=Skip the environment check"`
	Serial    string `json:"serial" jsonschema:"description=ADB serial of the device to use"`
	Format    string `json:"format" jsonschema:"description=Output format (json, yaml or html, default: json)"`
	File      string `json:"file" jsonschema:"description=Also write the tabs to this file"`
}

// ReopenTabsArgs represents arguments for tab restoration
type ReopenTabsArgs struct {
	TabsJSON  string `json:"tabsJson" jsonschema:"required,description=JSON array of {title, url} objects to reopen"`
	Platform  string `json:"platform" jsonschema:"required,description=Target platform (android, iphone or legacy)"`
	Port      int    `json:"port" jsonschema:"description=Local port for the device endpoint (default: 9222)"`
	Timeout   int    `json:"timeout" jsonschema:"description=Network timeout in seconds (default and minimum: 10)"`
	SkipCheck bool   `json:"skipCheck" jsonschema:"description=Skip the environment check"`
}

// CheckEnvironmentArgs represents arguments for environment checking
type CheckEnvironmentArgs struct {
	Platform string `json:"platform" jsonschema:"description=Specific platform to check (android, iphone, or all)"`
}

// resolve maps tool arguments to a driver configuration. Zero values mean
// "not given" for MCP clients, so they select the defaults silently.
func (s *TabTransferServer) resolve(port, timeout int, skipCheck bool, serial string, out console.Output) config.DriverConfig {
	if port == 0 {
		port = config.DefaultPort
	}
	if timeout == 0 {
		timeout = int(config.DefaultTimeout.Seconds())
	}

	return config.Resolve(config.Options{
		Port:           port,
		TimeoutSeconds: timeout,
		SkipCheck:      skipCheck,
		Serial:         serial,
	}, s.now(), out)
}

func deadline(cfg config.DriverConfig) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), platform.ProbeTimeout+2*cfg.Timeout+10*time.Second)
}

// withWarnings prefixes text with the warnings recorded during a call
func withWarnings(out *console.Recorder, text string) string {
	var b strings.Builder
	for _, m := range out.Messages() {
		if m.Level == console.LevelWarning {
			fmt.Fprintf(&b, "Warning: %s\n", m.Text)
		}
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(text)

	return b.String()
}

func textResponse(text string) *mcp_golang.ToolResponse {
	return mcp_golang.NewToolResponse(mcp_golang.NewTextContent(text))
}

func (s *TabTransferServer) copyTabsTool(args CopyTabsArgs) (*mcp_golang.ToolResponse, error) {
	text, err := s.copyTabs(args)
	if err != nil {
		return nil, err
	}

	return textResponse(text), nil
}

func (s *TabTransferServer) copyTabs(args CopyTabsArgs) (string, error) {
	f := format.FormatJSON
	if args.Format != "" {
		parsed, err := format.ParseFormat(args.Format)
		if err != nil {
			return "", err
		}
		f = parsed
	}

	out := console.NewRecorder(false)
	cfg := s.resolve(args.Port, args.Timeout, args.SkipCheck, args.Serial, out)

	drv, err := driver.New(args.Platform, cfg, s.driverOpts...)
	if err != nil {
		return "", err
	}

	ctx, cancel := deadline(cfg)
	defer cancel()

	records, err := service.New(cfg, out).Run(ctx, drv)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.current = records
	s.mu.Unlock()

	formatter := format.NewTabFormatter(f)
	data, err := formatter.Encode(records)
	if err != nil {
		return "", err
	}

	text := fmt.Sprintf("Successfully copied %d tabs from %s device (%s):\n\n%s", len(records), drv.Name(), formatter.MimeType(), data)

	if args.File != "" {
		if err := format.WriteFile(args.File, records); err != nil {
			return "", err
		}
		text += fmt.Sprintf("\nSaved to %s", args.File)
	}

	return withWarnings(out, text), nil
}

func (s *TabTransferServer) reopenTabsTool(args ReopenTabsArgs) (*mcp_golang.ToolResponse, error) {
	text, err := s.reopenTabs(args)
	if err != nil {
		return nil, err
	}

	return textResponse(text), nil
}

func (s *TabTransferServer) reopenTabs(args ReopenTabsArgs) (string, error) {
	records, err := format.NewTabFormatter(format.FormatJSON).Decode([]byte(args.TabsJSON))
	if err != nil {
		return "", fmt.Errorf("failed to parse tabs JSON: %w", err)
	}

	out := console.NewRecorder(false)
	cfg := s.resolve(args.Port, args.Timeout, args.SkipCheck, "", out)

	drv, err := driver.New(args.Platform, cfg, s.driverOpts...)
	if err != nil {
		return "", err
	}

	ctx, cancel := deadline(cfg)
	defer cancel()

	result, err := service.New(cfg, out).Reopen(ctx, drv, records)
	if err != nil && len(result.Opened) == 0 {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reopened %d of %d tabs on %s device", len(result.Opened), len(records), drv.Name())
	for _, f := range result.Failed {
		fmt.Fprintf(&b, "\nFailed: %s: %v", f.Record, f.Err)
	}

	return b.String(), nil
}

func (s *TabTransferServer) checkEnvironmentTool(args CheckEnvironmentArgs) (*mcp_golang.ToolResponse, error) {
	text, err := s.checkEnvironment(args)
	if err != nil {
		return nil, err
	}

	return textResponse(text), nil
}

func (s *TabTransferServer) checkEnvironment(args CheckEnvironmentArgs) (string, error) {
	var names []string
	switch args.Platform {
	case "", "all":
		names = []string{"android", "iphone"}
	default:
		names = []string{args.Platform}
	}

	var b strings.Builder
	b.WriteString("Environment Check Results:\n\n")

	for _, name := range names {
		cfg := config.Default()
		drv, err := driver.New(name, cfg, s.driverOpts...)
		if err != nil {
			return "", err
		}

		res, err := service.New(cfg, console.Discard()).Check(context.Background(), drv)
		switch {
		case err == nil:
			fmt.Fprintf(&b, "%s: ok: %s\n", drv.Name(), res.Detail)
		case res.Detail != "":
			fmt.Fprintf(&b, "%s: not ready: %s\n", drv.Name(), res.Detail)
		default:
			fmt.Fprintf(&b, "%s: not ready: %v\n", drv.Name(), err)
		}
	}

	return b.String(), nil
}

func (s *TabTransferServer) currentTabs() ([]byte, error) {
	s.mu.Lock()
	records := s.current
	s.mu.Unlock()

	return resourceFormat.Encode(records)
}

func (s *TabTransferServer) currentTabsResource() (*mcp_golang.ResourceResponse, error) {
	data, err := s.currentTabs()
	if err != nil {
		return nil, err
	}

	resource := mcp_golang.NewTextEmbeddedResource(CurrentTabsURI, string(data), resourceFormat.MimeType())

	return mcp_golang.NewResourceResponse(resource), nil
}
