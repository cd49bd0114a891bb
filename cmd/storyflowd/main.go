// Command storyflowd is the reference host: it loads a project file, then
// either drives it on the console for local smoke-testing or serves the
// HTTP cursor API on the configured listen address, depending on the
// -console flag.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/storyflowrt/engine/internal/config"
	"github.com/storyflowrt/engine/internal/engine"
	"github.com/storyflowrt/engine/internal/httpapi"
	"github.com/storyflowrt/engine/internal/project"
	"github.com/storyflowrt/engine/internal/telemetry"
	"github.com/storyflowrt/engine/internal/walker"
)

func main() {
	projectPath := flag.String("project", "", "path to a project JSON file")
	flowName := flag.String("flow", "", "flow to start (default: project's default flow group)")
	console := flag.Bool("console", false, "drive the loaded project on the console instead of serving HTTP")
	configPath := flag.String("config", "", "path to a YAML config file (flags below override its values)")
	listenAddr := flag.String("listen", "", "override the config's listen address")
	flag.Parse()

	overrides := map[string]any{}
	if *listenAddr != "" {
		overrides["listen_addr"] = *listenAddr
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath, overrides)
	} else {
		cfg, err = config.Load(overrides)
	}
	if err != nil {
		log.Fatalf("storyflowd: load config: %v", err)
	}

	ctx := context.Background()
	tel, err := telemetry.Setup(ctx, "storyflowd", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("storyflowd: telemetry setup: %v", err)
	}
	defer tel.Shutdown(ctx)

	logger := tel.Logger
	slog.SetDefault(logger)

	if *console {
		if *projectPath == "" {
			log.Fatal("storyflowd: -project is required with -console")
		}
		runConsole(*projectPath, *flowName, cfg, logger)
		return
	}

	var rtOpts []engine.Option
	if cfg.SeedExplicit {
		rtOpts = append(rtOpts, engine.WithRNGSeed(cfg.RNGSeed))
	}
	srv := httpapi.New(logger, tel, rtOpts...)
	logger.Info("storyflowd listening", "addr", cfg.ListenAddr)
	if err := runHTTP(cfg.ListenAddr, srv); err != nil {
		log.Fatalf("storyflowd: serve: %v", err)
	}
}

func runConsole(projectPath, flowName string, cfg *config.Config, logger *slog.Logger) {
	data, err := os.ReadFile(projectPath)
	if err != nil {
		log.Fatalf("storyflowd: read project: %v", err)
	}

	rtOpts := []engine.Option{engine.WithLocale(cfg.Locale), engine.WithMaxDepth(cfg.RecursionDepth)}
	if cfg.SeedExplicit {
		rtOpts = append(rtOpts, engine.WithRNGSeed(cfg.RNGSeed))
	}
	rt := engine.New(rtOpts...)
	if err := rt.LoadFromSource(data, flowName); err != nil {
		log.Fatalf("storyflowd: load project: %v", err)
	}

	scanner := bufio.NewScanner(os.Stdin)
	elementID := ""
	for {
		out, err := rt.NextNode(elementID)
		if err != nil {
			logger.Error("next_node failed", "error", err)
			return
		}
		switch out.Kind {
		case walker.Ended:
			fmt.Println("-- THE END --")
			return
		case walker.BadJumpOutcome:
			logger.Error("bad jump", "node", out.NodeID)
			return
		}

		node, err := rt.GetNode(out.NodeID)
		if err != nil {
			logger.Error("node lookup failed", "node", out.NodeID, "error", err)
			return
		}

		elementID = ""
		if node.Type == project.NodeChoice {
			elementID = promptChoice(rt, scanner, out.NodeID)
		} else {
			printNode(rt, out.NodeID)
		}
	}
}

func promptChoice(rt *engine.Runtime, scanner *bufio.Scanner, nodeID string) string {
	choices, err := rt.GetAvailableChoices(nodeID)
	if err != nil || len(choices) == 0 {
		return ""
	}
	for i, c := range choices {
		text, _ := rt.GetParsedText(c.ID, false)
		fmt.Printf("  %d) %s\n", i+1, text)
	}
	fmt.Print("> ")
	if !scanner.Scan() {
		return ""
	}
	i, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || i < 1 || i > len(choices) {
		return choices[0].ID
	}
	return choices[i-1].ID
}

func runHTTP(addr string, srv *httpapi.Server) error {
	return http.ListenAndServe(addr, srv.Handler())
}

func printNode(rt *engine.Runtime, nodeID string) {
	node, err := rt.GetNode(nodeID)
	if err != nil {
		fmt.Printf("[missing node %s]\n", nodeID)
		return
	}
	for _, el := range node.Elements {
		text, err := rt.GetParsedText(el.ID, false)
		if err != nil {
			fmt.Printf("[error rendering %s: %v]\n", el.ID, err)
			continue
		}
		fmt.Println(text)
	}
}
